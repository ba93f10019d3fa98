package tree

// Selector is a priority composite: it ticks its children in order, adopts
// the status of the first child that does not fail, and fails if every child
// fails. Children after the winning one are not ticked; any of them left
// Running by an earlier tick are stopped with Invalid.
type Selector struct {
	name     string
	children []Node
	status   Status
}

var _ Node = (*Selector)(nil)

// NewSelector returns a priority selector over children, in order.
func NewSelector(name string, children ...Node) *Selector {
	return &Selector{name: name, children: children}
}

func (s *Selector) Name() string { return s.name }

func (s *Selector) Status() Status { return s.status }

// Children returns the selector's children in priority order.
func (s *Selector) Children() []Node { return s.children }

func (s *Selector) Tick() []Node {
	var visited []Node
	status := Failure
	winner := len(s.children)
	for i, child := range s.children {
		visited = append(visited, child.Tick()...)
		if st := child.Status(); st != Failure {
			status = st
			winner = i
			break
		}
	}
	for _, child := range s.children[min(winner+1, len(s.children)):] {
		if child.Status() == Running {
			child.Stop(Invalid)
		}
	}
	s.status = status
	return append(visited, s)
}

func (s *Selector) Stop(status Status) {
	for _, child := range s.children {
		if child.Status() == Running {
			child.Stop(Invalid)
		}
	}
	s.status = status
}
