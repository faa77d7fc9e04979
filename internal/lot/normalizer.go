package lot

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/pkg/exception"
)

// ConstraintSource supplies per-symbol lot-size constraints, typically the
// exchange metadata endpoint.
type ConstraintSource interface {
	SymbolConstraint(ctx context.Context, symbol string) (model.SymbolConstraint, error)
}

// Normalizer maps raw quantities to exchange-executable ones. Constraints
// are fetched lazily per symbol and cached for the process lifetime;
// Refresh re-pulls everything already cached. Staleness is tolerated, the
// exchange remains the final authority.
type Normalizer struct {
	source ConstraintSource

	mu    sync.RWMutex
	cache map[string]model.SymbolConstraint
}

func NewNormalizer(source ConstraintSource) *Normalizer {
	return &Normalizer{
		source: source,
		cache:  make(map[string]model.SymbolConstraint),
	}
}

// FloorToStep floors a quantity to the nearest multiple of step. A
// non-positive step leaves the quantity untouched.
func FloorToStep(raw, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return raw
	}
	return raw.Div(step).Floor().Mul(step)
}

// Apply normalizes raw against a known constraint. The boolean reports
// whether the result is executable; false means the order must be dropped.
func Apply(raw decimal.Decimal, c model.SymbolConstraint) (decimal.Decimal, bool) {
	normalized := FloorToStep(raw, c.StepSize)
	if normalized.Sign() <= 0 || normalized.LessThan(c.MinQuantity) {
		return normalized, false
	}
	return normalized, true
}

// NormalizeQuantity resolves the symbol constraint and applies it.
// A below-minimum result returns exception.ErrOrderBelowMinimum, which is
// an expected business outcome rather than a failure.
func (n *Normalizer) NormalizeQuantity(ctx context.Context, symbol string, raw decimal.Decimal) (decimal.Decimal, error) {
	constraint, err := n.constraint(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	normalized, ok := Apply(raw, constraint)
	if !ok {
		return normalized, exception.ErrOrderBelowMinimum
	}
	return normalized, nil
}

// Refresh re-fetches every cached symbol constraint. Fetch failures keep
// the previous cached value.
func (n *Normalizer) Refresh(ctx context.Context) error {
	n.mu.RLock()
	symbols := make([]string, 0, len(n.cache))
	for symbol := range n.cache {
		symbols = append(symbols, symbol)
	}
	n.mu.RUnlock()

	var firstErr error
	for _, symbol := range symbols {
		constraint, err := n.source.SymbolConstraint(ctx, symbol)
		if err != nil {
			if firstErr == nil {
				firstErr = errors.Wrap(err, "refresh symbol constraint").With("symbol", symbol)
			}
			continue
		}
		n.mu.Lock()
		n.cache[symbol] = constraint
		n.mu.Unlock()
	}
	return firstErr
}

func (n *Normalizer) constraint(ctx context.Context, symbol string) (model.SymbolConstraint, error) {
	n.mu.RLock()
	cached, ok := n.cache[symbol]
	n.mu.RUnlock()
	if ok {
		return cached, nil
	}

	constraint, err := n.source.SymbolConstraint(ctx, symbol)
	if err != nil {
		return model.SymbolConstraint{}, errors.Wrap(err, "fetch symbol constraint").With("symbol", symbol)
	}
	n.mu.Lock()
	n.cache[symbol] = constraint
	n.mu.Unlock()
	return constraint, nil
}
