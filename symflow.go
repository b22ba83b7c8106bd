// Copyright 2026 Symflow Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package symflow provides the public API for building, evaluating,
// and differentiating symbolic expression graphs with embedded
// function calls.
//
// Expressions are built from symbolic primitives and combined with
// element-wise operations; a Function fixes inputs and outputs and
// can be invoked numerically, spliced symbolically, differentiated in
// forward or adjoint mode, analyzed for dependency sparsity, and
// exported through the code generator. A Call embeds one function as
// a single node of a larger expression.
//
// Example:
//
//	a := symflow.SymScalar("a")
//	b := symflow.SymScalar("b")
//	sum, _ := symflow.Add(a, b)
//	prod, _ := symflow.Mul(a, b)
//	f, _ := symflow.NewFunction("f", []symflow.MX{a, b}, []symflow.MX{sum, prod})
//	outs, _ := symflow.Call(f, []symflow.MX{a, b})
package symflow

import (
	"github.com/symflow-ml/symflow/internal/codegen"
	"github.com/symflow-ml/symflow/internal/function"
	"github.com/symflow-ml/symflow/internal/graph"
	"github.com/symflow-ml/symflow/internal/sparsity"
)

// Core graph types.
type (
	// MX is an immutable handle to one graph value.
	MX = graph.MX

	// Node is the operation-node contract.
	Node = graph.Node

	// Callable is the callable-function handle contract consumed by
	// call nodes.
	Callable = graph.Callable

	// BitVec carries dependency bits for sparsity propagation.
	BitVec = graph.BitVec

	// Pattern describes the nonzero structure of a matrix-shaped value.
	Pattern = sparsity.Pattern

	// Function is a callable backed by an expression graph.
	Function = function.Function

	// Emitter is the code-generation instruction sink.
	Emitter = codegen.Emitter
)

// Sparsity constructors.
var (
	Dense      = sparsity.Dense
	ScalarPat  = sparsity.Scalar
	Diag       = sparsity.Diag
	NewPattern = sparsity.New
)

// Value constructors.
var (
	Sym      = graph.Sym
	SymDense = graph.SymDense
	Const    = graph.Const
	Scalar   = graph.Scalar
	Zero     = graph.Zero
	Ones     = graph.Ones
)

// SymScalar creates a dense 1x1 symbolic primitive.
func SymScalar(name string) MX { return graph.SymDense(name, 1, 1) }

// Element-wise operations.
var (
	Add  = graph.Add
	Sub  = graph.Sub
	Mul  = graph.Mul
	Div  = graph.Div
	Neg  = graph.Neg
	Sin  = graph.Sin
	Cos  = graph.Cos
	Exp  = graph.Exp
	Log  = graph.Log
	Sqrt = graph.Sqrt
	Tanh = graph.Tanh
	Sum  = graph.Sum
)

// Graph-level operations.
var (
	// Call embeds a function call in the expression graph, returning
	// one value per function output.
	Call = graph.Call

	// Project reinterprets a value under another sparsity pattern of
	// the same total size.
	Project = graph.Project

	// NewFunction creates a function from symbolic inputs and output
	// expressions.
	NewFunction = function.New

	// NewEmitter creates a code-generation sink.
	NewEmitter = codegen.NewEmitter

	// SetLogger installs a logger for derivative-synthesis and
	// codegen diagnostics.
	SetLogger = function.SetLogger
)
