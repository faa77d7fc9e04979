package replicate

import (
	"context"
	"sync/atomic"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/lot"
	"main/internal/model"
	"main/internal/obs"
	"main/pkg/exception"
)

// Dispatcher accepts a replica order for asynchronous submission. Enqueue
// must not block: a slow main-account submission must never stall event
// consumption for any source.
type Dispatcher interface {
	Enqueue(order model.ReplicaOrder) error
}

// Engine ties rule, dedup ledger and normalizer together per incoming fill.
// It is shared by every supervisor's consumer goroutine.
type Engine struct {
	rules      atomic.Value // Rules
	ledger     *Ledger
	normalizer *lot.Normalizer
	dispatcher Dispatcher
	metrics    *obs.Metrics
}

func NewEngine(rules Rules, ledger *Ledger, normalizer *lot.Normalizer, dispatcher Dispatcher, metrics *obs.Metrics) *Engine {
	e := &Engine{
		ledger:     ledger,
		normalizer: normalizer,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
	e.rules.Store(rules)
	return e
}

// UpdateRules atomically swaps in a new rule snapshot.
func (e *Engine) UpdateRules(rules Rules) {
	e.rules.Store(rules)
	logs.Infof("rules updated, version=%d", rules.Version)
}

// Handle processes one fill event. Expected business outcomes (disabled
// source, duplicate fill, below-minimum quantity) terminate silently here
// with an informational log; only the dispatch handoff touches the order
// path.
func (e *Engine) Handle(ctx context.Context, fill model.FillEvent) {
	rules := e.rules.Load().(Rules)
	rule, ok := rules.Lookup(fill.Source)
	if !ok {
		e.metrics.IncOutcome(obs.OutcomeDropNoRule)
		logs.Warnf("drop fill without rule, source=%s order_id=%d", fill.Source, fill.OrderID)
		return
	}
	if !rule.Enabled {
		e.metrics.IncOutcome(obs.OutcomeDropDisabled)
		logs.Debugf("drop fill from disabled source, source=%s order_id=%d", fill.Source, fill.OrderID)
		return
	}

	if !e.ledger.ShouldReplicate(fill.Source, fill.OrderID) {
		e.metrics.IncOutcome(obs.OutcomeDropDuplicate)
		logs.Infof("drop duplicate fill, source=%s order_id=%d symbol=%s", fill.Source, fill.OrderID, fill.Symbol)
		return
	}

	symbol, side, raw := rule.Apply(fill)

	normalized, err := e.normalizer.NormalizeQuantity(ctx, symbol, raw)
	if err != nil {
		if errors.Is(err, exception.ErrOrderBelowMinimum) {
			e.metrics.IncOutcome(obs.OutcomeDropBelowMinimum)
			logs.Infof("drop fill, quantity below exchange minimum, source=%s symbol=%s raw=%s",
				fill.Source, symbol, raw.String())
			return
		}
		e.metrics.IncOutcome(obs.OutcomeFailedTransient)
		logs.Errorf("resolve symbol constraint, source=%s symbol=%s, err: %+v", fill.Source, symbol, err)
		return
	}

	order := model.ReplicaOrder{
		Symbol:        symbol,
		Side:          side,
		Quantity:      normalized,
		Source:        fill.Source,
		SourceOrderID: fill.OrderID,
	}
	if err := e.dispatcher.Enqueue(order); err != nil {
		e.metrics.IncQueueDrop()
		logs.Errorf("enqueue replica order, source=%s symbol=%s, err: %+v", fill.Source, symbol, err)
		return
	}

	logs.Infof("replicate fill, source=%s symbol=%s side=%s raw=%s normalized=%s source_order_id=%d",
		fill.Source, symbol, side, raw.String(), normalized.String(), fill.OrderID)
}
