package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event emitted by the render pipeline.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RunID is the associated render run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// Graph is the associated graph name, if applicable.
	Graph string `json:"graph,omitempty"`

	// Record is the associated output record name, if applicable.
	Record string `json:"record,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeRenderStarted   = "render.started"
	EventTypeRenderCompleted = "render.completed"
	EventTypeRenderFailed    = "render.failed"
	EventTypeGraphPlanned    = "graph.planned"
	EventTypeRecordWritten   = "record.written"
	EventTypeSourceChanged   = "source.changed"
	EventTypePolicyViolation = "policy.violation"
	EventTypeError           = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishRenderStarted publishes a render started event.
func (ep *EventPublisher) PublishRenderStarted(runID, graph string) error {
	return ep.Publish(Event{
		Type:    EventTypeRenderStarted,
		Source:  "render",
		RunID:   runID,
		Graph:   graph,
		Message: fmt.Sprintf("Render %s started for graph %s", runID, graph),
		Level:   EventLevelInfo,
	})
}

// PublishRenderCompleted publishes a render completed event.
func (ep *EventPublisher) PublishRenderCompleted(runID, graph string, records int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeRenderCompleted,
		Source:  "render",
		RunID:   runID,
		Graph:   graph,
		Message: fmt.Sprintf("Render %s completed for graph %s (%d records)", runID, graph, records),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"records":  records,
			"duration": duration.Seconds(),
		},
	})
}

// PublishRenderFailed publishes a render failed event.
func (ep *EventPublisher) PublishRenderFailed(runID, graph, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeRenderFailed,
		Source:  "render",
		RunID:   runID,
		Graph:   graph,
		Message: fmt.Sprintf("Render %s failed for graph %s: %s", runID, graph, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishGraphPlanned publishes a graph planned event.
func (ep *EventPublisher) PublishGraphPlanned(graph string, services, relations int) error {
	return ep.Publish(Event{
		Type:    EventTypeGraphPlanned,
		Source:  "planner",
		Graph:   graph,
		Message: fmt.Sprintf("Graph %s planned: %d services, %d relations", graph, services, relations),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"services":  services,
			"relations": relations,
		},
	})
}

// PublishRecordWritten publishes a record written event.
func (ep *EventPublisher) PublishRecordWritten(runID, graph, record, format string) error {
	return ep.Publish(Event{
		Type:    EventTypeRecordWritten,
		Source:  "output",
		RunID:   runID,
		Graph:   graph,
		Record:  record,
		Message: fmt.Sprintf("Record %s written (%s)", record, format),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"format": format,
		},
	})
}

// PublishSourceChanged publishes a source changed event, emitted by
// the watch loop when a configuration file is modified on disk.
func (ep *EventPublisher) PublishSourceChanged(graph, path string) error {
	return ep.Publish(Event{
		Type:    EventTypeSourceChanged,
		Source:  "watch",
		Graph:   graph,
		Message: fmt.Sprintf("Source changed: %s", path),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path": path,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(record, policyName, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Source:  "policy",
		Record:  record,
		Message: fmt.Sprintf("Policy violation on record %s: %s - %s", record, policyName, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// periodicFlush flushes events periodically.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Flushing is handled by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByRunID creates a filter that only allows events for a specific run.
func FilterByRunID(runID string) EventFilter {
	return func(event Event) bool {
		return event.RunID == runID
	}
}

// FilterByGraph creates a filter that only allows events for a specific graph.
func FilterByGraph(graph string) EventFilter {
	return func(event Event) bool {
		return event.Graph == graph
	}
}
