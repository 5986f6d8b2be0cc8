package formstate

// State is the submission state of a Controller.
type State int32

const (
	// StateIdle indicates no save is in flight. Submissions are accepted,
	// subject to the eligibility guard.
	StateIdle State = iota

	// StateSaving indicates a save invocation is outstanding. Further
	// submissions are rejected with ErrBusy until it settles.
	StateSaving
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}
