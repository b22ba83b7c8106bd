// Package scalar implements scalar symbolic expressions.
//
// These are the element type used when a graph value is unrolled into
// an explicit element-wise symbolic form, for backends that cannot
// represent matrix operations or embedded function calls natively.
// Expressions are immutable trees; the constructors fold the trivial
// identities (x+0, x*1, x*0) so unrolled graphs stay compact.
package scalar

import (
	"errors"
	"fmt"
	"math"
)

// ErrFreeSymbol is returned when evaluation reaches a symbol that has
// no value in the environment.
var ErrFreeSymbol = errors.New("free symbol in scalar expression")

// Op identifies the operation at the root of an expression.
type Op int

// Scalar operations.
const (
	OpConst Op = iota
	OpSym
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpSin
	OpCos
	OpExp
	OpLog
	OpSqrt
	OpTanh
)

// Expr is a scalar symbolic expression node.
type Expr struct {
	op   Op
	val  float64 // OpConst
	name string  // OpSym
	args []*Expr
}

// Const returns a constant expression.
func Const(v float64) *Expr { return &Expr{op: OpConst, val: v} }

// Sym returns a named symbol.
func Sym(name string) *Expr { return &Expr{op: OpSym, name: name} }

// Zero is the constant 0.
func Zero() *Expr { return Const(0) }

// Op returns the root operation.
func (e *Expr) Op() Op { return e.op }

// IsZero reports whether e is the constant 0.
func (e *Expr) IsZero() bool { return e.op == OpConst && e.val == 0 }

// IsOne reports whether e is the constant 1.
func (e *Expr) IsOne() bool { return e.op == OpConst && e.val == 1 }

func constVal(e *Expr) (float64, bool) {
	if e.op == OpConst {
		return e.val, true
	}
	return 0, false
}

// Add returns a+b, folding constants and the x+0 identity.
func Add(a, b *Expr) *Expr {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if av, ok := constVal(a); ok {
		if bv, ok := constVal(b); ok {
			return Const(av + bv)
		}
	}
	return &Expr{op: OpAdd, args: []*Expr{a, b}}
}

// Sub returns a-b, folding constants and the x-0 identity.
func Sub(a, b *Expr) *Expr {
	if b.IsZero() {
		return a
	}
	if av, ok := constVal(a); ok {
		if bv, ok := constVal(b); ok {
			return Const(av - bv)
		}
	}
	return &Expr{op: OpSub, args: []*Expr{a, b}}
}

// Mul returns a*b, folding constants and the x*0, x*1 identities.
func Mul(a, b *Expr) *Expr {
	if a.IsZero() || b.IsZero() {
		return Zero()
	}
	if a.IsOne() {
		return b
	}
	if b.IsOne() {
		return a
	}
	if av, ok := constVal(a); ok {
		if bv, ok := constVal(b); ok {
			return Const(av * bv)
		}
	}
	return &Expr{op: OpMul, args: []*Expr{a, b}}
}

// Div returns a/b, folding constants and the 0/x, x/1 identities.
func Div(a, b *Expr) *Expr {
	if a.IsZero() && !b.IsZero() {
		return Zero()
	}
	if b.IsOne() {
		return a
	}
	if av, ok := constVal(a); ok {
		if bv, ok := constVal(b); ok && bv != 0 {
			return Const(av / bv)
		}
	}
	return &Expr{op: OpDiv, args: []*Expr{a, b}}
}

// Neg returns -a.
func Neg(a *Expr) *Expr {
	if av, ok := constVal(a); ok {
		return Const(-av)
	}
	return &Expr{op: OpNeg, args: []*Expr{a}}
}

// Unary returns the elementary function op applied to a.
func Unary(op Op, a *Expr) *Expr {
	switch op {
	case OpNeg:
		return Neg(a)
	case OpSin, OpCos, OpExp, OpLog, OpSqrt, OpTanh:
		if av, ok := constVal(a); ok {
			return Const(applyUnary(op, av))
		}
		return &Expr{op: op, args: []*Expr{a}}
	default:
		panic(fmt.Sprintf("scalar: %v is not a unary operation", op))
	}
}

func applyUnary(op Op, v float64) float64 {
	switch op {
	case OpNeg:
		return -v
	case OpSin:
		return math.Sin(v)
	case OpCos:
		return math.Cos(v)
	case OpExp:
		return math.Exp(v)
	case OpLog:
		return math.Log(v)
	case OpSqrt:
		return math.Sqrt(v)
	case OpTanh:
		return math.Tanh(v)
	default:
		panic(fmt.Sprintf("scalar: %v is not a unary operation", op))
	}
}

// Eval evaluates the expression with symbol values taken from env.
func (e *Expr) Eval(env map[string]float64) (float64, error) {
	switch e.op {
	case OpConst:
		return e.val, nil
	case OpSym:
		v, ok := env[e.name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrFreeSymbol, e.name)
		}
		return v, nil
	case OpNeg, OpSin, OpCos, OpExp, OpLog, OpSqrt, OpTanh:
		a, err := e.args[0].Eval(env)
		if err != nil {
			return 0, err
		}
		return applyUnary(e.op, a), nil
	default:
		a, err := e.args[0].Eval(env)
		if err != nil {
			return 0, err
		}
		b, err := e.args[1].Eval(env)
		if err != nil {
			return 0, err
		}
		switch e.op {
		case OpAdd:
			return a + b, nil
		case OpSub:
			return a - b, nil
		case OpMul:
			return a * b, nil
		case OpDiv:
			return a / b, nil
		}
		panic(fmt.Sprintf("scalar: unhandled operation %v", e.op))
	}
}

// String renders the expression with full parenthesization.
func (e *Expr) String() string {
	switch e.op {
	case OpConst:
		return fmt.Sprintf("%g", e.val)
	case OpSym:
		return e.name
	case OpNeg:
		return "(-" + e.args[0].String() + ")"
	case OpSin:
		return "sin(" + e.args[0].String() + ")"
	case OpCos:
		return "cos(" + e.args[0].String() + ")"
	case OpExp:
		return "exp(" + e.args[0].String() + ")"
	case OpLog:
		return "log(" + e.args[0].String() + ")"
	case OpSqrt:
		return "sqrt(" + e.args[0].String() + ")"
	case OpTanh:
		return "tanh(" + e.args[0].String() + ")"
	case OpAdd:
		return "(" + e.args[0].String() + "+" + e.args[1].String() + ")"
	case OpSub:
		return "(" + e.args[0].String() + "-" + e.args[1].String() + ")"
	case OpMul:
		return "(" + e.args[0].String() + "*" + e.args[1].String() + ")"
	case OpDiv:
		return "(" + e.args[0].String() + "/" + e.args[1].String() + ")"
	default:
		panic(fmt.Sprintf("scalar: unhandled operation %v", e.op))
	}
}
