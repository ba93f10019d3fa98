package gate

import (
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/joeycumines/go-gates/internal/blackboard"
	"github.com/joeycumines/go-gates/internal/tree"
)

// ExpressionGate allows its child when a boolean expr-lang expression,
// evaluated against a snapshot of the store, is true.
//
// Store keys are the expression's variables:
//
//	battery > 20 && mode == "patrol"
//
// Undefined variables evaluate to nil. The expression is compiled once, at
// construction; a compile error is a configuration error. Like NewEquals, the
// expression is evaluated once per activation boundary and is sticky while the
// child is Running. Evaluation errors are logged at WARN and block.
type ExpressionGate struct {
	*Gate
	policy *exprPolicy
}

type exprPolicy struct {
	name       string
	expression string
	program    *vm.Program
	store      blackboard.Snapshotter
	logger     *slog.Logger
	lastErr    error
}

// NewExpression compiles expression and builds the gate.
func NewExpression(name string, child tree.Node, store blackboard.Snapshotter, expression string, opts ...Option) (*ExpressionGate, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: gate %q has no store", ErrConfig, name)
	}
	if expression == "" {
		return nil, fmt.Errorf("%w: gate %q has an empty expression", ErrConfig, name)
	}
	program, err := expr.Compile(expression,
		expr.AsBool(),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: gate %q expression %q: %w", ErrConfig, name, expression, err)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	p := &exprPolicy{
		name:       name,
		expression: expression,
		program:    program,
		store:      store,
		logger:     o.logger,
	}
	g, err := newGate(name, child, p, o)
	if err != nil {
		return nil, err
	}
	return &ExpressionGate{Gate: g, policy: p}, nil
}

// Expression returns the source expression.
func (g *ExpressionGate) Expression() string { return g.policy.expression }

// LastError returns the error from the most recent evaluation, if any. This
// distinguishes a legitimate false result from a failed evaluation.
func (g *ExpressionGate) LastError() error { return g.policy.lastErr }

func (p *exprPolicy) Allow() bool {
	p.lastErr = nil
	result, err := expr.Run(p.program, p.store.Snapshot())
	if err != nil {
		p.lastErr = fmt.Errorf("expression evaluation failed: %w", err)
		p.logger.Warn("[Gate] expression evaluation error",
			"gate", p.name,
			"expression", p.expression,
			"error", err)
		return false
	}
	b, ok := result.(bool)
	if !ok {
		p.lastErr = fmt.Errorf("expression returned non-boolean result: %T", result)
		p.logger.Warn("[Gate] expression non-boolean result",
			"gate", p.name,
			"expression", p.expression,
			"resultType", fmt.Sprintf("%T", result))
		return false
	}
	return b
}
