// Package commands implements the symflow command-line interface.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the root command.
func Execute(version, commit string) error {
	return newRootCommand(version, commit).Execute()
}

func newRootCommand(version, commit string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "symflow",
		Short: "Symflow - symbolic expression graphs with embedded function calls",
		Long: `Symflow builds symbolic expression graphs from YAML model files and
evaluates them numerically, differentiates them in adjoint mode, or
exports them through the code generator.

A model file declares named inputs with default values, a sequence of
named operations over them, and the outputs to expose:

  name: f
  inputs:
    - {name: a, value: 2.0}
    - {name: b, value: 3.0}
  ops:
    - {name: s, op: add, args: [a, b]}
    - {name: p, op: mul, args: [a, b]}
  outputs: [s, p]`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	}

	rootCmd.AddCommand(newEvalCommand())
	rootCmd.AddCommand(newGenCommand())

	return rootCmd
}
