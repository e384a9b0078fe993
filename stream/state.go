package stream

// Role tags what a stage does in a pipeline.
type Role int

const (
	RoleSource Role = iota
	RoleTransform
	RoleSink
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleTransform:
		return "transform"
	case RoleSink:
		return "sink"
	default:
		return "unknown"
	}
}

// State is a stage's lifecycle position: idle → flowing → ended | failed.
type State int

const (
	StateIdle State = iota
	StateFlowing
	StateEnded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFlowing:
		return "flowing"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further chunks can be accepted or emitted.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed
}
