package policy

import "github.com/getmockd/chaoskit/pkg/choice"

// Policy pairs a fire rate with the distribution of effects to pick from when
// the rate fires. The zero-rate, empty-distribution policy is inert.
type Policy[T any] struct {
	Choices *choice.Distribution[T]
	Rate    float64
}

// Inert returns a policy that never fires.
func Inert[T any]() *Policy[T] {
	return &Policy[T]{Choices: choice.Empty[T]()}
}

// IsInert reports whether the policy can never produce an effect.
func (p *Policy[T]) IsInert() bool {
	return p == nil || (p.Rate == 0 && p.Choices.Empty())
}

// PolicyGroup holds one Policy per tracked operation for a single effect
// category.
type PolicyGroup[T any] struct {
	Enabled  bool
	policies map[OperationKind]*Policy[T]
}

// NewPolicyGroup builds a group. Tracked operations missing from policies get
// an inert Policy; entries for untracked kinds are dropped.
func NewPolicyGroup[T any](enabled bool, policies map[OperationKind]*Policy[T]) *PolicyGroup[T] {
	g := &PolicyGroup[T]{
		Enabled:  enabled,
		policies: make(map[OperationKind]*Policy[T], len(operations)),
	}
	for _, op := range operations {
		p := Inert[T]()
		if given := policies[op]; given != nil {
			p.Rate = given.Rate
			if given.Choices != nil {
				p.Choices = given.Choices
			}
		}
		g.policies[op] = p
	}
	return g
}

// For returns the policy for op. ok is false only when op is not a tracked
// operation; tracked operations always resolve, possibly to an inert policy.
func (g *PolicyGroup[T]) For(op OperationKind) (p *Policy[T], ok bool) {
	if g == nil {
		return nil, false
	}
	p, ok = g.policies[op]
	return p, ok
}

// ChaosConfig is the hydrated root of a policy document.
type ChaosConfig struct {
	Enabled   bool
	Errors    *PolicyGroup[string]
	Latencies *PolicyGroup[LatencySpec]
}

// Disabled returns a config that never injects anything.
func Disabled() *ChaosConfig {
	return &ChaosConfig{
		Errors:    NewPolicyGroup[string](false, nil),
		Latencies: NewPolicyGroup[LatencySpec](false, nil),
	}
}

// GroupEnabled reports whether category c is switched on. A disabled root
// disables every category.
func (c *ChaosConfig) GroupEnabled(cat EffectCategory) bool {
	if c == nil || !c.Enabled {
		return false
	}
	switch cat {
	case CategoryErrors:
		return c.Errors != nil && c.Errors.Enabled
	case CategoryLatencies:
		return c.Latencies != nil && c.Latencies.Enabled
	default:
		return false
	}
}

// ActiveCategories returns the enabled categories in dispatch order.
func (c *ChaosConfig) ActiveCategories() []EffectCategory {
	var out []EffectCategory
	for _, cat := range categories {
		if c.GroupEnabled(cat) {
			out = append(out, cat)
		}
	}
	return out
}
