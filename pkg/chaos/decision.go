package chaos

import (
	"time"

	"github.com/getmockd/chaoskit/pkg/policy"
)

// Outcome classifies a Decision.
type Outcome string

const (
	// OutcomeDisabled means the root config is switched off.
	OutcomeDisabled Outcome = "disabled"
	// OutcomeUntracked means the operation is not subject to injection.
	OutcomeUntracked Outcome = "untracked"
	// OutcomePass means every roll missed.
	OutcomePass Outcome = "pass"
	// OutcomeError means the operation must fail with Decision.Err.
	OutcomeError Outcome = "error"
	// OutcomeDelay means the operation is delayed by Decision.Delay.
	OutcomeDelay Outcome = "delay"
)

// Outcomes lists every Outcome.
func Outcomes() []Outcome {
	return []Outcome{OutcomeDisabled, OutcomeUntracked, OutcomePass, OutcomeError, OutcomeDelay}
}

// GenericLabel is the label reported for faults that were not sampled from a
// distribution.
const GenericLabel = "generic"

// Decision is the result of evaluating one operation against a config.
type Decision struct {
	// Operation is the name as given by the host.
	Operation string
	// Op is the normalized kind; empty when disabled or untracked.
	Op      policy.OperationKind
	Outcome Outcome

	// Err is set for OutcomeError and is always a *Fault or a
	// *policy.ConfigurationError.
	Err error
	// Label is the sampled error label, if any.
	Label string

	// Delay is the latency to apply for OutcomeDelay. It may be zero.
	Delay time.Duration
}

// Tracked reports whether the operation was evaluated against its policies.
func (d Decision) Tracked() bool {
	return d.Op != ""
}

// FaultLabel is Label, or GenericLabel for an unlabeled fault.
func (d Decision) FaultLabel() string {
	if d.Label == "" {
		return GenericLabel
	}
	return d.Label
}
