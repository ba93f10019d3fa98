package tree

// NewConstant returns a leaf that reports status on every tick.
func NewConstant(name string, status Status) *Leaf {
	return NewLeaf(name, Funcs{OnUpdate: func() Status { return status }})
}

// Counter is a Behaviour that runs for a fixed number of ticks per activation
// before completing with a configured status.
type Counter struct {
	duration   int
	completion Status
	count      int
}

var _ Behaviour = (*Counter)(nil)

// NewCounter returns a leaf reporting Running for duration ticks after each
// activation, then completion on the following tick.
func NewCounter(name string, duration int, completion Status) *Leaf {
	return NewLeaf(name, &Counter{duration: duration, completion: completion})
}

func (c *Counter) Initialise() { c.count = 0 }

func (c *Counter) Update() Status {
	c.count++
	if c.count <= c.duration {
		return Running
	}
	return c.completion
}

func (c *Counter) Terminate(Status) {}

// Count is the number of updates in the current (or last) activation.
func (c *Counter) Count() int { return c.count }
