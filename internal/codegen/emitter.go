// Package codegen implements the instruction sink that graph nodes
// emit into during code generation.
//
// The Emitter collects opcode/operand-index instructions over a flat
// work array; no evaluation happens at emission time. Render turns the
// instruction list into a C-like listing for inspection or export.
// Embedded function calls are recorded as dependencies, deduplicated
// by handle identity, and referenced by index.
package codegen

import (
	"fmt"
	"strings"
)

// Opcode identifies an emitted instruction.
type Opcode int

// Instruction opcodes.
const (
	OpInput Opcode = iota
	OpOutput
	OpConst
	OpCopy
	OpProject
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
	OpSum
	OpCall
)

// Dependency is an embedded callable referenced by OpCall
// instructions. Satisfied by the graph's callable-function handles.
type Dependency interface {
	Name() string
	NumIn() int
	NumOut() int
}

// Instr is one emitted instruction. Arg and Res index into the work
// array; Fcn indexes the emitter's dependency list for OpCall; Vals
// carries the literal nonzeros for OpConst.
type Instr struct {
	Op   Opcode
	Arg  []int
	Res  []int
	Fcn  int
	Vals []float64
}

// Emitter accumulates instructions and callable dependencies for one
// generated function.
type Emitter struct {
	name   string
	instrs []Instr
	deps   []Dependency
	slots  int
}

// NewEmitter creates an emitter for a generated function named name.
func NewEmitter(name string) *Emitter {
	return &Emitter{name: name}
}

// Slot allocates a fresh work-array slot and returns its index.
func (g *Emitter) Slot() int {
	s := g.slots
	g.slots++
	return s
}

// Slots returns the number of allocated work slots.
func (g *Emitter) Slots() int { return g.slots }

// Add appends an instruction with the given operand indices.
func (g *Emitter) Add(op Opcode, arg, res []int) {
	g.instrs = append(g.instrs, Instr{
		Op:  op,
		Arg: append([]int(nil), arg...),
		Res: append([]int(nil), res...),
	})
}

// AddConst appends a constant-load instruction with the literal
// nonzero values.
func (g *Emitter) AddConst(res int, vals []float64) {
	g.instrs = append(g.instrs, Instr{Op: OpConst, Res: []int{res}, Vals: append([]float64(nil), vals...)})
}

// AddCall appends a call instruction, registering fcn as a dependency
// if this is the first call to it. Dependencies are deduplicated by
// handle identity.
func (g *Emitter) AddCall(fcn Dependency, arg, res []int) {
	idx := -1
	for i, d := range g.deps {
		if d == fcn {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = len(g.deps)
		g.deps = append(g.deps, fcn)
	}
	g.instrs = append(g.instrs, Instr{
		Op:  OpCall,
		Arg: append([]int(nil), arg...),
		Res: append([]int(nil), res...),
		Fcn: idx,
	})
}

// NumInstrs returns the number of emitted instructions.
func (g *Emitter) NumInstrs() int { return len(g.instrs) }

// Instrs returns the emitted instructions in order.
func (g *Emitter) Instrs() []Instr { return g.instrs }

// NumDeps returns the number of distinct callable dependencies.
func (g *Emitter) NumDeps() int { return len(g.deps) }

// Dep returns callable dependency i.
func (g *Emitter) Dep(i int) Dependency {
	if i < 0 || i >= len(g.deps) {
		panic(fmt.Sprintf("codegen: dependency index %d out of range [0,%d)", i, len(g.deps)))
	}
	return g.deps[i]
}

var binOpSym = map[Opcode]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
}

var unOpName = map[Opcode]string{
	OpNeg:  "-",
	OpSin:  "sin",
	OpCos:  "cos",
	OpExp:  "exp",
	OpLog:  "log",
	OpSqrt: "sqrt",
	OpTanh: "tanh",
	OpSum:  "sum",
}

// Render produces a C-like listing of the emitted function.
func (g *Emitter) Render() string {
	var b strings.Builder
	for i, d := range g.deps {
		fmt.Fprintf(&b, "/* f%d: %s (%d in, %d out) */\n", i, d.Name(), d.NumIn(), d.NumOut())
	}
	fmt.Fprintf(&b, "void %s(const double** arg, double** res, double* w) {\n", g.name)
	for _, in := range g.instrs {
		b.WriteString("  ")
		switch {
		case in.Op == OpInput:
			fmt.Fprintf(&b, "w%d = arg[%d];\n", in.Res[0], in.Arg[0])
		case in.Op == OpOutput:
			fmt.Fprintf(&b, "res[%d] = w%d;\n", in.Res[0], in.Arg[0])
		case in.Op == OpConst:
			if len(in.Vals) == 1 {
				fmt.Fprintf(&b, "w%d = %g;\n", in.Res[0], in.Vals[0])
			} else {
				fmt.Fprintf(&b, "w%d = {%s};\n", in.Res[0], floatList(in.Vals))
			}
		case in.Op == OpCopy || in.Op == OpProject:
			fmt.Fprintf(&b, "w%d = w%d;\n", in.Res[0], in.Arg[0])
		case in.Op == OpNeg:
			fmt.Fprintf(&b, "w%d = -w%d;\n", in.Res[0], in.Arg[0])
		case in.Op == OpCall:
			fmt.Fprintf(&b, "f%d(%s -> %s);\n", in.Fcn, slotList(in.Arg), slotList(in.Res))
		default:
			if sym, ok := binOpSym[in.Op]; ok {
				fmt.Fprintf(&b, "w%d = w%d %s w%d;\n", in.Res[0], in.Arg[0], sym, in.Arg[1])
			} else if name, ok := unOpName[in.Op]; ok {
				fmt.Fprintf(&b, "w%d = %s(w%d);\n", in.Res[0], name, in.Arg[0])
			} else {
				panic(fmt.Sprintf("codegen: unhandled opcode %d", in.Op))
			}
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func floatList(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, ", ")
}

func slotList(idx []int) string {
	parts := make([]string, len(idx))
	for i, s := range idx {
		parts[i] = fmt.Sprintf("w%d", s)
	}
	return strings.Join(parts, ", ")
}
