package taskexport

// State is a step of an export.
type State int

// Export states in the order a successful export walks them. StateErrored is
// terminal and reachable from every other non-terminal state.
const (
	StateInit State = iota
	StateIndexBuilt
	StatePlanChosen
	StatePass1
	StateTotalsKnown
	StatePass2
	StateMerging
	StateDone
	StateErrored
)

var stateNames = [...]string{
	StateInit:        "init",
	StateIndexBuilt:  "index built",
	StatePlanChosen:  "plan chosen",
	StatePass1:       "pass 1",
	StateTotalsKnown: "totals known",
	StatePass2:       "pass 2",
	StateMerging:     "merging",
	StateDone:        "done",
	StateErrored:     "errored",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}
