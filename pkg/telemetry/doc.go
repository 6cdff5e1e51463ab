// Package telemetry provides observability instrumentation for loom.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging the plan and render pipeline.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "loom"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("render")
//	logger = logger.WithRunID("run-123").WithGraph("shop")
//	logger.Info("Starting render")
//	logger.WithError(err).Error("Render failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into pipeline flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    attribute.String("graph.name", graph),
//	    attribute.String("phase", "main"),
//	)
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track pipeline behavior and performance:
//
//	// Record graph planning
//	tel.Metrics.RecordPlan("shop", "completed", duration)
//	tel.Metrics.SetGraphSize("shop", services, relations)
//
//	// Record render runs
//	tel.Metrics.RecordRenderStarted("shop")
//	tel.Metrics.RecordRenderCompleted("shop", "completed", duration)
//	tel.Metrics.RecordRecordRendered("shop", "yaml")
//
//	// Record policy violations and errors
//	tel.Metrics.RecordPolicyViolation("pinned-image", "error")
//	tel.Metrics.RecordError("configuration")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishRenderStarted(runID, graph)
//	tel.Events.PublishRecordWritten(runID, graph, record, format)
//	tel.Events.PublishPolicyViolation(record, policy, reason)
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByRunID, FilterByGraph
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "output.write",
//	    attribute.String("graph.name", graph))
//	defer ic.End(err)
//
//	// Render run context
//	ctx = telemetry.WithRenderContext(ctx, runID, graph)
//	defer telemetry.EndRenderContext(ctx, runID, graph, status, records, err)
//
//	// Plan operation
//	err := telemetry.RecordPlanOperation(ctx, graph, func(ctx context.Context) error {
//	    return planner.Plan(ctx)
//	})
//
//	// Plugin hook
//	err := telemetry.RecordPluginOperation(ctx, "k8s", "kubernetes", "render_service",
//	    func(ctx context.Context) error {
//	        return plugin.RenderService(ctx, svc, g, out)
//	    })
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
// # Common Metrics
//
// Key metrics exposed:
//
//  - loom_plans_total{graph,status}
//  - loom_plan_duration_seconds{graph}
//  - loom_renders_started_total{graph}
//  - loom_renders_completed_total{graph,status}
//  - loom_render_duration_seconds{graph,status}
//  - loom_records_rendered_total{graph,format}
//  - loom_graph_services{graph}
//  - loom_graph_relations{graph}
//  - loom_policy_violations_total{policy,severity}
//  - loom_errors_by_kind_total{kind}
//  - loom_active_renders
//  - loom_active_watches
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
package telemetry
