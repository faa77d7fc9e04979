package replicate

import (
	"github.com/shopspring/decimal"

	"main/internal/config"
	"main/internal/model"
	"main/internal/model/enum"
)

// Rule is the per-source replication configuration applied to every fill.
type Rule struct {
	Source      string
	Enabled     bool
	Coefficient decimal.Decimal
	Reverse     bool
}

// Apply transforms a source fill into a candidate (symbol, side, raw
// quantity) before lot-size normalization. Pure, no validation here: the
// coefficient was checked at config load.
func (r Rule) Apply(fill model.FillEvent) (symbol string, side enum.OrderSide, raw decimal.Decimal) {
	side = fill.Side
	if r.Reverse {
		side = side.Opposite()
	}
	return fill.Symbol, side, fill.Quantity.Mul(r.Coefficient)
}

// Rules is an immutable, versioned snapshot of every source's rule. Config
// reloads build a fresh snapshot and swap it atomically, so an in-flight
// replication decision never observes a half-updated rule.
type Rules struct {
	Version  int64
	bySource map[string]Rule
}

// BuildRules converts loaded source configs into a rule snapshot.
func BuildRules(sources []config.Source, version int64) Rules {
	bySource := make(map[string]Rule, len(sources))
	for _, src := range sources {
		bySource[src.Name] = Rule{
			Source:      src.Name,
			Enabled:     src.IsEnabled(),
			Coefficient: decimal.NewFromFloat(src.Coefficient),
			Reverse:     src.Reverse,
		}
	}
	return Rules{Version: version, bySource: bySource}
}

// Lookup returns the rule for a source name.
func (r Rules) Lookup(source string) (Rule, bool) {
	rule, ok := r.bySource[source]
	return rule, ok
}
