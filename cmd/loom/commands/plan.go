package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/model"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [graph]",
		Short: "Resolve a graph into its planned services and relations",
		Long: `Resolve a graph document against the loaded model and print the resulting
plan.

Planning:
  - Resolves every service spec against its Component
  - Layers environment configuration over service config
  - Resolves relations through shared Interfaces
  - Interpolates config templates and validates contracts

Planning is all-or-nothing: any unresolved reference or failed contract
aborts without a partial result.`,
		Example: `  # Plan the only graph in the current directory
  loom plan

  # Plan a named graph from a model directory
  loom plan shop -c ./model

  # Plan against the production environment
  loom plan shop -c ./model --env production`,
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

			tel.Metrics.SetGraphSize(g.Name(), len(g.Services()), len(g.Relations()))
			_ = tel.Events.PublishGraphPlanned(g.Name(), len(g.Services()), len(g.Relations()))

			fmt.Printf("Graph: %s\n", g.Name())

			fmt.Printf("\nServices (%d):\n", len(g.Services()))
			for _, svc := range g.Services() {
				rt := "-"
				if r := svc.Runtime(); r != nil {
					rt = r.Name()
				}
				fmt.Printf("  %-24s image=%s runtime=%s\n", svc.Name(), svc.Image(), rt)
				for _, ep := range svc.ExposedEndpoints() {
					fmt.Printf("    exposes %s\n", ep.Name())
				}
			}

			fmt.Printf("\nRelations (%d):\n", len(g.Relations()))
			for _, rel := range g.Relations() {
				fmt.Printf("  %s\n", relationString(rel))
			}

			return nil
		},
	}

	return cmd
}

func relationString(rel *model.Relation) string {
	eps := rel.Endpoints()
	parts := make([]string, len(eps))
	for i, ep := range eps {
		parts[i] = fmt.Sprintf("%s:%s", ep.Service().Name(), ep.Name())
	}
	if len(parts) == 2 {
		return parts[0] + " <-> " + parts[1]
	}
	return fmt.Sprintf("%v", parts)
}
