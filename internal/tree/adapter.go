package tree

import (
	"errors"
	"fmt"

	bt "github.com/joeycumines/go-behaviortree"
)

// ErrInvalidStatus is returned to go-behaviortree when a bridged node
// finishes a tick without a usable status.
var ErrInvalidStatus = errors.New("tree: node reported invalid status")

// ToBehaviorTree exposes root as a go-behaviortree Node, so that the
// go-behaviortree Ticker and Manager can drive it.
//
// Every go-behaviortree tick performs exactly one root.Tick(). If observe is
// non-nil it receives the visited nodes of that tick before the status is
// returned; the slice is not retained by the adapter.
//
// The returned node has no go-behaviortree children: the lifecycle of the
// wrapped tree stays entirely on this side of the bridge.
//
// Example:
//
//	ticker := bt.NewTicker(ctx, 100*time.Millisecond, tree.ToBehaviorTree(root, nil))
//	<-ticker.Done()
func ToBehaviorTree(root Node, observe func(visited []Node)) bt.Node {
	tick := func([]bt.Node) (bt.Status, error) {
		visited := root.Tick()
		if observe != nil {
			observe(visited)
		}
		return toBT(root.Status())
	}
	return func() (bt.Tick, []bt.Node) {
		return tick, nil
	}
}

func toBT(s Status) (bt.Status, error) {
	switch s {
	case Running:
		return bt.Running, nil
	case Success:
		return bt.Success, nil
	case Failure:
		return bt.Failure, nil
	default:
		return bt.Failure, fmt.Errorf("%w: %s", ErrInvalidStatus, s)
	}
}
