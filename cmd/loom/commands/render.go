package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/loomworks/loom/pkg/graph"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/output"
	"github.com/loomworks/loom/pkg/policy"
	"github.com/loomworks/loom/pkg/runtime"
	"github.com/loomworks/loom/pkg/stores"
	"github.com/loomworks/loom/pkg/telemetry"
)

func newRenderCommand() *cobra.Command {
	var (
		outFile     string
		outDir      string
		watch       bool
		historyPath string
		policyPaths []string
		noEnforce   bool
	)

	cmd := &cobra.Command{
		Use:   "render [graph]",
		Short: "Render a graph into deployable artifacts",
		Long: `Plan a graph and run the full render pipeline over it.

The pipeline:
  - Initializes every referenced runtime
  - Runs the pre, main and post render phases over services and relations
  - Finalizes runtimes (resource lists, namespace labels)
  - Evaluates policies over the rendered records
  - Serializes records to a file stream or a directory tree

Rendering is all-or-nothing: any plugin error aborts without partial output.`,
		Example: `  # Render the only graph to stdout
  loom render

  # Render a named graph into a directory tree
  loom render shop -c ./model --dir ./deploy

  # Re-render whenever the model directory changes
  loom render shop -c ./model --dir ./deploy --watch

  # Record render runs in a history database
  loom render shop --dir ./deploy --history loom.db

  # Evaluate additional policies before writing
  loom render shop --dir ./deploy --policy ./policies`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := telemetryContext(cmd)

			eng, err := policy.NewEngine(log.Logger)
			if err != nil {
				return err
			}
			if len(policyPaths) > 0 {
				if err := eng.LoadPolicies(ctx, policyPaths); err != nil {
					return err
				}
			}

			var history *stores.SQLiteStore
			if historyPath != "" {
				history, err = stores.NewSQLiteStore(stores.Config{Path: historyPath})
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
			}

			r := &renderer{
				outFile:   outFile,
				outDir:    outDir,
				engine:    eng,
				history:   history,
				noEnforce: noEnforce,
				args:      args,
			}

			if err := r.renderOnce(ctx); err != nil {
				if !watch {
					return err
				}
				log.Error().Err(err).Msg("Initial render failed, watching for changes")
			}

			if watch {
				return r.watchLoop(ctx)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "-", "output file path, - for stdout")
	cmd.Flags().StringVarP(&outDir, "dir", "d", "", "output directory, one file per record")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-render on model directory changes")
	cmd.Flags().StringVar(&historyPath, "history", "", "SQLite database recording render runs")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "policy file or directory (.rego, .json)")
	cmd.Flags().BoolVar(&noEnforce, "no-enforce", false, "report policy violations without failing")

	return cmd
}

// renderer carries the per-invocation render configuration across watch
// iterations.
type renderer struct {
	outFile   string
	outDir    string
	engine    *policy.Engine
	history   *stores.SQLiteStore
	noEnforce bool
	args      []string
}

// renderOnce runs the full load-plan-render-write pipeline a single time.
func (r *renderer) renderOnce(ctx context.Context) error {
	st, err := loadModel(ctx)
	if err != nil {
		return err
	}

	graphEntity, err := selectGraph(st, r.args)
	if err != nil {
		return err
	}

	g, err := planGraph(ctx, st, graphEntity)
	if err != nil {
		return err
	}
	tel.Metrics.SetGraphSize(g.Name(), len(g.Services()), len(g.Relations()))

	runID := uuid.New().String()
	ctx = telemetry.WithRenderContext(ctx, runID, g.Name())

	if r.history != nil {
		run := &stores.Run{
			ID:          runID,
			Graph:       g.Name(),
			Environment: envName,
			Runtime:     runtimeName,
			Status:      stores.RunStatusRunning,
			StartedAt:   time.Now().UTC(),
		}
		if err := r.history.CreateRun(ctx, run); err != nil {
			return err
		}
	}

	out := output.New()
	err = r.renderAndWrite(ctx, runID, g, out)

	status := stores.RunStatusCompleted
	telStatus := "completed"
	var errMsg *string
	if err != nil {
		status = stores.RunStatusFailed
		telStatus = "failed"
		msg := err.Error()
		errMsg = &msg
	}
	if r.history != nil {
		if herr := r.history.CompleteRun(ctx, runID, status, out.Len(), errMsg); herr != nil {
			log.Warn().Err(herr).Msg("Failed to record run completion")
		}
	}
	telemetry.EndRenderContext(ctx, runID, g.Name(), telStatus, out.Len(), err)
	return err
}

// renderAndWrite runs the plugin pipeline, enforces policies and serializes
// the result.
func (r *renderer) renderAndWrite(ctx context.Context, runID string, g *graph.Graph, out *output.Output) error {
	if err := runtime.RenderGraph(ctx, g, out); err != nil {
		return err
	}

	result, err := r.engine.EvaluateOutput(ctx, g.Name(), out)
	if err != nil {
		return err
	}
	for _, v := range result.Violations {
		log.Warn().
			Str("policy", v.Policy).
			Str("record", v.Record).
			Str("severity", string(v.Severity)).
			Msg(v.Message)
		tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		_ = tel.Events.PublishPolicyViolation(v.Record, v.Policy, v.Message)
	}
	if !result.Allowed && !r.noEnforce {
		return model.NewValidationError(
			fmt.Sprintf("%d policy violations block the render", len(result.Violations)), nil)
	}

	if err := r.write(out); err != nil {
		return err
	}
	for _, rec := range out.Records() {
		tel.Metrics.RecordRecordRendered(g.Name(), rec.Format())
		_ = tel.Events.PublishRecordWritten(runID, g.Name(), rec.Name, rec.Format())
	}

	if r.history != nil {
		if err := r.recordArtifacts(ctx, runID, out); err != nil {
			log.Warn().Err(err).Msg("Failed to record artifacts")
		}
	}

	log.Info().
		Str("graph", g.Name()).
		Int("records", out.Len()).
		Msg("Render complete")
	return nil
}

func (r *renderer) write(out *output.Output) error {
	if r.outDir != "" {
		w := &output.DirectoryWriter{Root: r.outDir}
		return w.Write(out)
	}
	w := &output.FileWriter{Path: r.outFile}
	return w.Write(out)
}

// recordArtifacts serializes the rendered records into the history store.
func (r *renderer) recordArtifacts(ctx context.Context, runID string, out *output.Output) error {
	records := out.Records()
	artifacts := make([]*stores.Artifact, 0, len(records))
	for _, rec := range records {
		data, err := serializeRecord(rec)
		if err != nil {
			return err
		}
		plugins, err := json.Marshal(rec.Plugins)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, &stores.Artifact{
			RunID:   runID,
			Name:    rec.Name,
			Format:  rec.Format(),
			Plugins: string(plugins),
			Data:    data,
		})
	}
	return r.history.AddArtifacts(ctx, runID, artifacts)
}

// watchLoop re-renders whenever a file below the model directory changes.
// Events are debounced so editors that write in bursts trigger one render.
func (r *renderer) watchLoop(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, configDir); err != nil {
		return err
	}
	tel.Metrics.SetActiveWatches(1)
	defer tel.Metrics.SetActiveWatches(0)

	log.Info().Str("dir", configDir).Msg("Watching for model changes")

	var debounce *time.Timer
	renderCh := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New subdirectories must be picked up too.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			_ = tel.Events.PublishSourceChanged("", event.Name)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case renderCh <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")

		case <-renderCh:
			if err := r.renderOnce(ctx); err != nil {
				log.Error().Err(err).Msg("Render failed")
			}
		}
	}
}

// watchTree registers a directory and all its subdirectories.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
			return watcher.Add(path)
		}
		return nil
	})
}

// serializeRecord renders a record payload into its stored string form.
func serializeRecord(rec *output.Record) (string, error) {
	switch rec.Format() {
	case "json":
		data, err := json.MarshalIndent(rec.Data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case "raw":
		s, ok := rec.Data.(string)
		if !ok {
			return "", fmt.Errorf("raw record payload must be a string, got %T", rec.Data)
		}
		return s, nil
	default:
		data, err := yaml.Marshal(rec.Data)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
