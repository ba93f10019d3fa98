package tree

// Status is the result of ticking a Node.
type Status int

const (
	// Invalid is the status of a node that has never been ticked, or that
	// was reset since it last terminated.
	Invalid Status = iota
	// Success indicates the node completed successfully.
	Success
	// Failure indicates the node completed unsuccessfully.
	Failure
	// Running indicates the node needs to be ticked again before it completes.
	Running
)

// String returns the lower case name of the status.
func (s Status) String() string {
	switch s {
	case Invalid:
		return "invalid"
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Success or Failure.
func (s Status) Terminal() bool {
	return s == Success || s == Failure
}
