package pipeline

// State is the lifecycle state of a run.
type State int

const (
	Idle State = iota
	Starting
	Running
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}
