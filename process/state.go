package process

// State represents a subprocess lifecycle state.
type State int

const (
	Starting State = iota
	Running
	Exited
	Killed
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Exited:
		return "exited"
	case Killed:
		return "killed"
	}
	return "unknown"
}
