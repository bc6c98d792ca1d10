package plan

import "fmt"

// State is the lifecycle stage of an Invocation.
type State int

const (
	// Unevaluated is the initial state.
	Unevaluated State = iota
	// Validated means the variant exists and its signing profile resolved.
	Validated
	// Merged means dependencies resolved and the BuildPlan is built.
	Merged
	// Emitted means the plan was serialized.
	Emitted
)

func (s State) String() string {
	switch s {
	case Unevaluated:
		return "unevaluated"
	case Validated:
		return "validated"
	case Merged:
		return "merged"
	case Emitted:
		return "emitted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// transition moves inv from one state to the next. The caller supplies the
// expected prior state so an out-of-order call is reported rather than
// silently applied.
func (inv *Invocation) transition(from, to State) error {
	if inv.state != from {
		return fmt.Errorf("invalid transition: expected %s, got %s", from, inv.state)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	inv.state = to
	return nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case Unevaluated:
		return to == Validated
	case Validated:
		return to == Merged
	case Merged:
		return to == Emitted
	default:
		return false
	}
}
