package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newGraphCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "graph [graph]",
		Short: "Export a planned graph in DOT format",
		Long: `Plan a graph and export its services and relations as a Graphviz DOT
document for visualization.

Render the export with the usual Graphviz tools:

  loom graph shop | dot -Tsvg -o shop.svg`,
		Example: `  # Print the DOT document to stdout
  loom graph shop -c ./model

  # Write to a file
  loom graph shop -c ./model -o shop.dot`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := telemetryContext(cmd)

			st, err := loadModel(ctx)
			if err != nil {
				return err
			}

			graphEntity, err := selectGraph(st, args)
			if err != nil {
				return err
			}

			g, err := planGraph(ctx, st, graphEntity)
			if err != nil {
				return err
			}

			dot := g.DOT()
			if outFile == "" || outFile == "-" {
				fmt.Print(dot)
				return nil
			}
			return os.WriteFile(outFile, []byte(dot), 0o644)
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "-", "output file path, - for stdout")

	return cmd
}
