package model

// TriState represents a nullable boolean persisted as NULL/0/1.
// Unknown means the state has not been evaluated yet (e.g. a feed that has
// never been fetched, or a translated feed queued for regeneration).
type TriState int

const (
	StateUnknown TriState = iota
	StateFalse
	StateTrue
)

func TriStateOf(b bool) TriState {
	if b {
		return StateTrue
	}
	return StateFalse
}

func (s TriState) Known() bool {
	return s != StateUnknown
}

func (s TriState) True() bool {
	return s == StateTrue
}

func (s TriState) String() string {
	switch s {
	case StateTrue:
		return "true"
	case StateFalse:
		return "false"
	default:
		return "unknown"
	}
}
