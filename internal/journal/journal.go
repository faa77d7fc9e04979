package journal

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/internal/model"
	"main/pkg/exception"
)

// Record is one persisted replication outcome.
type Record struct {
	ID            uint      `gorm:"primaryKey"`
	CreatedAt     time.Time `gorm:"index"`
	Source        string    `gorm:"index;size:64"`
	Symbol        string    `gorm:"index;size:32"`
	Side          string    `gorm:"size:8"`
	Quantity      string    `gorm:"size:32"`
	SourceOrderID int64     `gorm:"index"`
	MainOrderID   int64
	Status        string `gorm:"size:24"`
	Reason        string
}

const (
	statusSubmitted       = "submitted"
	statusFailedPermanent = "failed_permanent"
	statusFailedTransient = "failed_transient"
)

// Store persists replication outcomes to postgres. Write failures are
// logged and swallowed: the journal observes the flow, it never gates it.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, exception.ErrNilInstance
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, errors.Wrap(err, "migrate journal schema")
	}
	return &Store{db: db}, nil
}

// RecordSuccess persists a submitted replica order.
func (s *Store) RecordSuccess(ctx context.Context, order model.ReplicaOrder, result model.OrderResult) {
	s.insert(ctx, Record{
		Source:        order.Source,
		Symbol:        order.Symbol,
		Side:          order.Side.String(),
		Quantity:      order.Quantity.String(),
		SourceOrderID: order.SourceOrderID,
		MainOrderID:   result.OrderID,
		Status:        statusSubmitted,
	})
}

// RecordFailure persists a terminal submission failure.
func (s *Store) RecordFailure(ctx context.Context, order model.ReplicaOrder, reason string, permanent bool) {
	status := statusFailedTransient
	if permanent {
		status = statusFailedPermanent
	}
	s.insert(ctx, Record{
		Source:        order.Source,
		Symbol:        order.Symbol,
		Side:          order.Side.String(),
		Quantity:      order.Quantity.String(),
		SourceOrderID: order.SourceOrderID,
		Status:        status,
		Reason:        reason,
	})
}

// Recent returns the newest records, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []Record
	if err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "query journal records")
	}
	return records, nil
}

func (s *Store) insert(ctx context.Context, record Record) {
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		logs.Errorf("journal insert, source=%s source_order_id=%d, err: %+v",
			record.Source, record.SourceOrderID, err)
	}
}
