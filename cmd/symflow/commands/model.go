package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/symflow-ml/symflow/internal/function"
	"github.com/symflow-ml/symflow/internal/graph"
)

// modelFile is the YAML schema for a model definition.
type modelFile struct {
	Name   string       `yaml:"name"`
	Inputs []modelInput `yaml:"inputs"`
	Ops    []modelOp    `yaml:"ops"`
	Output []string     `yaml:"outputs"`
}

type modelInput struct {
	Name  string  `yaml:"name"`
	Value float64 `yaml:"value"`
}

type modelOp struct {
	Name string   `yaml:"name"`
	Op   string   `yaml:"op"`
	Args []string `yaml:"args"`
}

// model is a loaded definition ready to evaluate: the graph-backed
// function plus the default input values from the file.
type model struct {
	fcn    *function.Function
	inputs []modelInput
}

// loadModel parses a model file and builds its expression graph. Each
// input becomes a scalar symbolic primitive; each op becomes one graph
// node over previously named values.
func loadModel(path string) (*model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var mf modelFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if len(mf.Inputs) == 0 {
		return nil, fmt.Errorf("model %q declares no inputs", path)
	}
	if len(mf.Output) == 0 {
		return nil, fmt.Errorf("model %q declares no outputs", path)
	}

	vals := make(map[string]graph.MX, len(mf.Inputs)+len(mf.Ops))
	in := make([]graph.MX, 0, len(mf.Inputs))
	for _, mi := range mf.Inputs {
		if _, dup := vals[mi.Name]; dup {
			return nil, fmt.Errorf("duplicate name %q", mi.Name)
		}
		x := graph.SymDense(mi.Name, 1, 1)
		vals[mi.Name] = x
		in = append(in, x)
	}

	for _, mo := range mf.Ops {
		if _, dup := vals[mo.Name]; dup {
			return nil, fmt.Errorf("duplicate name %q", mo.Name)
		}
		args := make([]graph.MX, len(mo.Args))
		for i, a := range mo.Args {
			x, ok := vals[a]
			if !ok {
				return nil, fmt.Errorf("op %q references unknown value %q", mo.Name, a)
			}
			args[i] = x
		}
		y, err := buildOp(mo.Op, args)
		if err != nil {
			return nil, fmt.Errorf("op %q: %w", mo.Name, err)
		}
		vals[mo.Name] = y
	}

	out := make([]graph.MX, len(mf.Output))
	for j, name := range mf.Output {
		x, ok := vals[name]
		if !ok {
			return nil, fmt.Errorf("output references unknown value %q", name)
		}
		out[j] = x
	}

	fcn, err := function.New(mf.Name, in, out)
	if err != nil {
		return nil, err
	}
	return &model{fcn: fcn, inputs: mf.Inputs}, nil
}

func buildOp(op string, args []graph.MX) (graph.MX, error) {
	binary := func(f func(x, y graph.MX) (graph.MX, error)) (graph.MX, error) {
		if len(args) != 2 {
			return graph.MX{}, fmt.Errorf("%s takes 2 arguments, got %d", op, len(args))
		}
		return f(args[0], args[1])
	}
	unary := func(f func(x graph.MX) graph.MX) (graph.MX, error) {
		if len(args) != 1 {
			return graph.MX{}, fmt.Errorf("%s takes 1 argument, got %d", op, len(args))
		}
		return f(args[0]), nil
	}
	switch op {
	case "add":
		return binary(graph.Add)
	case "sub":
		return binary(graph.Sub)
	case "mul":
		return binary(graph.Mul)
	case "div":
		return binary(graph.Div)
	case "neg":
		return unary(graph.Neg)
	case "sin":
		return unary(graph.Sin)
	case "cos":
		return unary(graph.Cos)
	case "exp":
		return unary(graph.Exp)
	case "log":
		return unary(graph.Log)
	case "sqrt":
		return unary(graph.Sqrt)
	case "tanh":
		return unary(graph.Tanh)
	case "sum":
		if len(args) != 1 {
			return graph.MX{}, fmt.Errorf("sum takes 1 argument, got %d", len(args))
		}
		return graph.Sum(args[0])
	default:
		return graph.MX{}, fmt.Errorf("unknown operation %q", op)
	}
}

// wrap embeds the model function as a call node inside an outer
// function over the same inputs, so evaluation and differentiation go
// through the embedded-call path.
func (m *model) wrap() (*function.Function, error) {
	in := make([]graph.MX, m.fcn.NumIn())
	for i := range in {
		in[i] = m.fcn.In(i)
	}
	outs, err := graph.Call(m.fcn, in)
	if err != nil {
		return nil, err
	}
	return function.New("main", in, outs)
}
