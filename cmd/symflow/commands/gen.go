package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/symflow-ml/symflow/internal/codegen"
)

func newGenCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "codegen <model.yaml>",
		Short: "Generate an instruction listing for a model",
		Long: `Codegen loads a YAML model and emits its expression graph as a flat
instruction listing over work slots, the form consumed by external
code emitters. Embedded function calls appear as call instructions
referencing their callable by name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the listing to a file instead of stdout")
	return cmd
}

func runGen(path, output string) error {
	m, err := loadModel(path)
	if err != nil {
		return err
	}
	outer, err := m.wrap()
	if err != nil {
		return err
	}

	g := codegen.NewEmitter(outer.Name())
	outer.Generate(g)
	log.Info().Str("model", m.fcn.Name()).
		Int("instructions", g.NumInstrs()).Int("slots", g.Slots()).
		Int("dependencies", g.NumDeps()).Msg("generated listing")

	listing := g.Render()
	if output == "" {
		fmt.Print(listing)
		return nil
	}
	if err := os.WriteFile(output, []byte(listing), 0o644); err != nil {
		return fmt.Errorf("write listing: %w", err)
	}
	return nil
}
