package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/entity"
)

func newValidateCommand() *cobra.Command {
	var plan bool

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate model source documents",
		Long: `Load and validate YAML model documents against their CUE schemas.

This command checks:
  - YAML syntax and the kind/name envelope
  - CUE schema conformance per document kind
  - With --plan, full graph resolution for every Graph document`,
		Example: `  # Validate the current directory
  loom validate

  # Validate a specific model directory
  loom validate ./model

  # Additionally plan every graph
  loom validate ./model --plan`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				configDir = args[0]
			}
			ctx := telemetryContext(cmd)

			st, err := loadModel(ctx)
			if err != nil {
				return err
			}

			counts := make(map[string]int)
			for _, obj := range st.Objects() {
				counts[obj.Kind()]++
			}
			kinds := make([]string, 0, len(counts))
			for k := range counts {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)

			fmt.Printf("Loaded %d documents from %s\n", st.Len(), configDir)
			for _, k := range kinds {
				fmt.Printf("  %-14s %d\n", k, counts[k])
			}

			if plan {
				for _, obj := range st.Kind("Graph") {
					if _, err := planGraph(ctx, st, obj.(*entity.Entity)); err != nil {
						return err
					}
					fmt.Printf("Graph %s plans cleanly\n", obj.Name())
				}
			}

			fmt.Println("Validation succeeded")
			return nil
		},
	}

	cmd.Flags().BoolVar(&plan, "plan", false, "also plan every graph document")

	return cmd
}
