package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/pkg/exception"
)

// Submitter is the exchange order-submission collaborator for the main
// account.
type Submitter interface {
	SubmitMarketOrder(ctx context.Context, symbol string, side enum.OrderSide, quantity decimal.Decimal) (model.OrderResult, error)
}

// Recorder persists replication outcomes. Optional.
type Recorder interface {
	RecordSuccess(ctx context.Context, order model.ReplicaOrder, result model.OrderResult)
	RecordFailure(ctx context.Context, order model.ReplicaOrder, reason string, permanent bool)
}

// Config controls the submission worker pool.
type Config struct {
	Workers      int
	QueueSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return cfg
}

// Dispatcher submits replica orders to the main account with bounded retry
// on transient failure. Permanent failures are logged and surfaced to the
// recorder, never retried: a failed real-money order must not be silently
// re-issued under ambiguous partial-failure state.
type Dispatcher struct {
	cfg       Config
	submitter Submitter
	recorder  Recorder
	metrics   *obs.Metrics

	queue   chan model.ReplicaOrder
	running atomic.Bool
	wg      sync.WaitGroup
}

func New(cfg Config, submitter Submitter, recorder Recorder, metrics *obs.Metrics) (*Dispatcher, error) {
	if submitter == nil {
		return nil, exception.ErrNilInstance
	}
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:       cfg,
		submitter: submitter,
		recorder:  recorder,
		metrics:   metrics,
		queue:     make(chan model.ReplicaOrder, cfg.QueueSize),
	}, nil
}

// Enqueue hands a replica order to the worker pool without blocking.
func (d *Dispatcher) Enqueue(order model.ReplicaOrder) error {
	select {
	case d.queue <- order:
		return nil
	default:
		return exception.ErrOrderQueueFull
	}
}

// Run starts the workers. Idempotent.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.running.Swap(true) {
		return
	}
	for range d.cfg.Workers {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case order, ok := <-d.queue:
			if !ok {
				return
			}
			d.submit(ctx, order)
		case <-ctx.Done():
			return
		}
	}
}

// submit runs the bounded retry cycle for one order. The submission itself
// is shielded from cancellation so shutdown never abandons an order
// mid-flight with unknown exchange state.
func (d *Dispatcher) submit(ctx context.Context, order model.ReplicaOrder) {
	submitCtx := context.WithoutCancel(ctx)
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		result, err := d.submitter.SubmitMarketOrder(submitCtx, order.Symbol, order.Side, order.Quantity)
		if err == nil {
			d.metrics.IncOutcome(obs.OutcomeReplicated)
			d.metrics.ObserveDispatch(time.Since(start))
			logs.Infof("replica order submitted, source=%s symbol=%s side=%s qty=%s order_id=%d source_order_id=%d",
				order.Source, order.Symbol, order.Side, order.Quantity.String(), result.OrderID, order.SourceOrderID)
			if d.recorder != nil {
				d.recorder.RecordSuccess(submitCtx, order, result)
			}
			return
		}
		lastErr = err

		if !isTransient(err) {
			d.metrics.IncOutcome(obs.OutcomeFailedPermanent)
			logs.Errorf("replica order rejected permanently, source=%s symbol=%s side=%s qty=%s, err: %+v",
				order.Source, order.Symbol, order.Side, order.Quantity.String(), err)
			if d.recorder != nil {
				d.recorder.RecordFailure(submitCtx, order, err.Error(), true)
			}
			return
		}

		logs.Warnf("replica order submit failed, attempt=%d/%d, source=%s symbol=%s, err: %+v",
			attempt, d.cfg.MaxAttempts, order.Source, order.Symbol, err)
		if attempt < d.cfg.MaxAttempts {
			time.Sleep(d.cfg.RetryBackoff)
		}
	}

	d.metrics.IncOutcome(obs.OutcomeFailedTransient)
	logs.Errorf("replica order dropped after %d attempts, source=%s symbol=%s, err: %+v",
		d.cfg.MaxAttempts, order.Source, order.Symbol, lastErr)
	if d.recorder != nil {
		d.recorder.RecordFailure(submitCtx, order, lastErr.Error(), false)
	}
}

type transientError interface {
	Transient() bool
}

// isTransient treats exchange-classified transient errors and plain
// transport failures (timeouts, resets) as retryable.
func isTransient(err error) bool {
	var te transientError
	if errors.As(err, &te) {
		return te.Transient()
	}
	// Unclassified errors are transport-level; the retry stays bounded.
	return true
}
