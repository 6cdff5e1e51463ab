package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/entity"
	"github.com/loomworks/loom/pkg/graph"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/runtime"
	_ "github.com/loomworks/loom/pkg/runtime/plugins"
	"github.com/loomworks/loom/pkg/store"
	"github.com/loomworks/loom/pkg/telemetry"
)

var (
	// Global flags
	configDir   string
	envName     string
	runtimeName string
	logLevel    string
	logFormat   string

	// tel is the process-wide telemetry instance, built once per invocation.
	tel *telemetry.Telemetry
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loom",
		Short: "Loom - Declarative Service Graph Renderer",
		Long: `Loom models services, their interfaces and their relations as a layered
declarative graph, then renders the graph into deployable artifacts through
composable runtime plugins.

Features:
  - Layered entity documents with schema-directed merging
  - CUE-validated YAML model sources
  - Runtime plugin composition (kubernetes, kustomize, istio, docker)
  - Deterministic, all-or-nothing rendering
  - Policy enforcement via OPA/rego
  - Render-run history in SQLite`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			tel, err = setupTelemetry()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if tel != nil {
				_ = tel.Shutdown(cmd.Context())
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", ".", "model source directory")
	rootCmd.PersistentFlags().StringVarP(&envName, "env", "e", "", "environment name")
	rootCmd.PersistentFlags().StringVarP(&runtimeName, "runtime", "r", "", "default runtime name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	// Add subcommands
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newGraphCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

// setupTelemetry builds the telemetry stack from the global flags. The CLI
// keeps tracing and the metrics endpoint off; long-running callers opt in
// through the render command.
func setupTelemetry() (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = logLevel
	cfg.Logging.Format = logFormat
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Enabled = false
	cfg.Metrics.Enabled = false
	return telemetry.NewTelemetry(cfg)
}

// telemetryContext attaches the process telemetry to the command context.
func telemetryContext(cmd *cobra.Command) context.Context {
	if tel == nil {
		return cmd.Context()
	}
	return tel.WithContext(cmd.Context())
}

// loadModel loads every YAML document under the configured source directory
// into a fresh store.
func loadModel(ctx context.Context) (*store.Store, error) {
	st := store.New()
	loader := config.NewLoader(st)
	if err := loader.LoadDir(ctx, configDir); err != nil {
		return nil, err
	}
	return st, nil
}

// selectGraph picks the graph entity to operate on. An explicit name wins;
// otherwise the store must contain exactly one Graph.
func selectGraph(st *store.Store, args []string) (*entity.Entity, error) {
	if len(args) > 0 {
		obj, ok := st.Get("Graph", args[0])
		if !ok {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("graph %q not found in %s", args[0], configDir), nil).
				WithCode(model.ErrCodeNotFound)
		}
		return obj.(*entity.Entity), nil
	}

	graphs := st.Kind("Graph")
	switch len(graphs) {
	case 0:
		return nil, model.NewConfigurationError(
			fmt.Sprintf("no Graph documents found in %s", configDir), nil).
			WithCode(model.ErrCodeNotFound)
	case 1:
		return graphs[0].(*entity.Entity), nil
	default:
		names := make([]string, len(graphs))
		for i, g := range graphs {
			names[i] = g.Name()
		}
		return nil, model.NewConfigurationError(
			fmt.Sprintf("multiple graphs found (%s), name one explicitly", strings.Join(names, ", ")), nil)
	}
}

// selectEnvironment resolves the --env flag against the store. An empty flag
// means no environment overlay.
func selectEnvironment(st *store.Store) (*model.Environment, error) {
	if envName == "" {
		return nil, nil
	}
	obj, ok := st.Get("Environment", envName)
	if !ok {
		return nil, model.NewConfigurationError(
			fmt.Sprintf("environment %q not found in %s", envName, configDir), nil).
			WithCode(model.ErrCodeNotFound)
	}
	return model.NewEnvironment(obj.(*entity.Entity)), nil
}

// planGraph runs the planner over the selected graph entity.
func planGraph(ctx context.Context, st *store.Store, graphEntity *entity.Entity) (*graph.Graph, error) {
	env, err := selectEnvironment(st)
	if err != nil {
		return nil, err
	}
	resolver := runtime.NewResolver(st)
	return graph.Plan(ctx, graphEntity, st, env, resolver, graph.Options{Runtime: runtimeName})
}
