package tree

// Node is a tickable member of a behaviour tree.
//
// Tick performs exactly one synchronous evaluation step and returns the nodes
// visited during that step, in visitation order, ending with the node itself.
// The returned slice is owned by the caller. A node that decided not to tick one
// of its children never includes that child (or its descendants) in the result.
//
// Stop forces the node out of its current activation with the given status,
// terminating any running descendants. Parents use Stop(Invalid) to preempt a
// running subtree.
type Node interface {
	Name() string
	Status() Status
	Tick() []Node
	Stop(status Status)
}

// Behaviour is the lifecycle a leaf author implements. The Leaf wrapper invokes
// the hooks in the following order:
//
//   - Initialise, on every tick where the previous status was not Running
//   - Update, on every tick
//   - Terminate, whenever the status leaves Running (or a Running leaf is stopped)
type Behaviour interface {
	Initialise()
	Update() Status
	Terminate(newStatus Status)
}

// Funcs adapts plain functions to Behaviour. Nil hooks are skipped, and a nil
// OnUpdate reports Success.
type Funcs struct {
	OnInitialise func()
	OnUpdate     func() Status
	OnTerminate  func(newStatus Status)
}

var _ Behaviour = Funcs{}

func (f Funcs) Initialise() {
	if f.OnInitialise != nil {
		f.OnInitialise()
	}
}

func (f Funcs) Update() Status {
	if f.OnUpdate == nil {
		return Success
	}
	return f.OnUpdate()
}

func (f Funcs) Terminate(newStatus Status) {
	if f.OnTerminate != nil {
		f.OnTerminate(newStatus)
	}
}

// Leaf drives a Behaviour through its lifecycle.
type Leaf struct {
	name      string
	behaviour Behaviour
	status    Status
}

var _ Node = (*Leaf)(nil)

// NewLeaf wraps behaviour as a Node. The leaf starts Invalid.
func NewLeaf(name string, behaviour Behaviour) *Leaf {
	return &Leaf{name: name, behaviour: behaviour}
}

func (l *Leaf) Name() string { return l.name }

func (l *Leaf) Status() Status { return l.status }

// Behaviour returns the wrapped lifecycle implementation.
func (l *Leaf) Behaviour() Behaviour { return l.behaviour }

func (l *Leaf) Tick() []Node {
	if l.status != Running {
		l.behaviour.Initialise()
	}
	status := l.behaviour.Update()
	if status != Running {
		l.behaviour.Terminate(status)
	}
	l.status = status
	return []Node{l}
}

func (l *Leaf) Stop(status Status) {
	if l.status == Running {
		l.behaviour.Terminate(status)
	}
	l.status = status
}

// Names maps visited nodes to their names, which is convenient for logging
// and assertions.
func Names(nodes []Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name()
	}
	return names
}
