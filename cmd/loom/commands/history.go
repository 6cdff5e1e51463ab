package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		dbPath    string
		graphName string
		limit     int
		runID     string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded render runs",
		Long: `List render runs recorded by 'loom render --history', newest first.
With --run, list the artifacts of a single run instead.`,
		Example: `  # List the last ten runs
  loom history --db loom.db

  # List runs of one graph
  loom history --db loom.db --graph shop

  # Show the artifacts of a run
  loom history --db loom.db --run 2f1c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := telemetryContext(cmd)

			history, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
			if err != nil {
				return err
			}
			if err := history.Init(ctx); err != nil {
				return err
			}
			defer history.Close()
			if err := history.Migrate(ctx); err != nil {
				return err
			}

			if runID != "" {
				artifacts, err := history.ListArtifacts(ctx, runID)
				if err != nil {
					return err
				}
				for _, a := range artifacts {
					fmt.Printf("%-48s %s\n", a.Name, a.Format)
				}
				return nil
			}

			runs, err := history.ListRuns(ctx, graphName, limit, 0)
			if err != nil {
				return err
			}
			for _, run := range runs {
				errInfo := ""
				if run.Error != nil {
					errInfo = " error=" + *run.Error
				}
				fmt.Printf("%s  %-16s %-10s records=%d started=%s%s\n",
					run.ID, run.Graph, run.Status, run.RecordCount,
					run.StartedAt.Format("2006-01-02 15:04:05"), errInfo)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "loom.db", "SQLite history database path")
	cmd.Flags().StringVar(&graphName, "graph", "", "filter runs by graph name")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "list artifacts of a single run")

	return cmd
}
