package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/symflow-ml/symflow/internal/function"
)

func newEvalCommand() *cobra.Command {
	var grad bool

	cmd := &cobra.Command{
		Use:   "eval <model.yaml>",
		Short: "Evaluate a model numerically at its declared input values",
		Long: `Eval loads a YAML model, embeds it as a function call in an outer
expression, and evaluates the outputs at the input values declared in
the file. With --grad it additionally evaluates the adjoint gradient
of each output with respect to every input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(args[0], grad)
		},
	}

	cmd.Flags().BoolVar(&grad, "grad", false, "also evaluate adjoint gradients")
	return cmd
}

func runEval(path string, grad bool) error {
	m, err := loadModel(path)
	if err != nil {
		return err
	}
	outer, err := m.wrap()
	if err != nil {
		return err
	}
	log.Info().Str("model", m.fcn.Name()).
		Int("inputs", m.fcn.NumIn()).Int("outputs", m.fcn.NumOut()).
		Int("nodes", m.fcn.NumNodes()).Msg("loaded model")

	arg := make([][]float64, outer.NumIn())
	for i, mi := range m.inputs {
		arg[i] = []float64{mi.Value}
	}
	res := make([][]float64, outer.NumOut())
	for j := range res {
		res[j] = make([]float64, outer.Out(j).NNZ())
	}
	ni, nr := outer.WorkSize()
	iw, w := make([]int, ni), make([]float64, nr)
	if err := outer.Eval(arg, res, iw, w); err != nil {
		return err
	}
	for j, r := range res {
		fmt.Printf("output[%d] = %v\n", j, r)
	}

	if !grad {
		return nil
	}
	return evalGradients(m, outer, arg)
}

// evalGradients seeds each output in turn and evaluates the adjoint
// sensitivity of every input.
func evalGradients(m *model, outer *function.Function, arg [][]float64) error {
	nin, nout := outer.NumIn(), outer.NumOut()
	rev, err := outer.Reverse(1)
	if err != nil {
		return err
	}
	ni, nr := rev.WorkSize()
	iw, w := make([]int, ni), make([]float64, nr)

	for j := 0; j < nout; j++ {
		callArg := make([][]float64, 0, nin+nout)
		callArg = append(callArg, arg...)
		for k := 0; k < nout; k++ {
			seed := make([]float64, outer.SparsityOut(k).NNZ())
			if k == j {
				for i := range seed {
					seed[i] = 1
				}
			}
			callArg = append(callArg, seed)
		}
		sens := make([][]float64, nin)
		for i := 0; i < nin; i++ {
			sens[i] = make([]float64, outer.SparsityIn(i).NNZ())
		}
		if err := rev.Eval(callArg, sens, iw, w); err != nil {
			return err
		}
		for i, s := range sens {
			fmt.Printf("d output[%d] / d %s = %v\n", j, m.inputs[i].Name, s)
		}
	}
	return nil
}
