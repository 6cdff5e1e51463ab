package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/loomworks/loom/pkg/model"
)

// SchemaRegistry manages the CUE schemas documents are validated against
// before they enter the store, keyed by document kind.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a schema registry with the built-in schemas
// for every model kind.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.RegisterSchema("Component", builtinComponentSchema)
	sr.RegisterSchema("Interface", builtinInterfaceSchema)
	sr.RegisterSchema("Graph", builtinGraphSchema)
	sr.RegisterSchema("Runtime", builtinRuntimeSchema)
	sr.RegisterSchema("Environment", builtinEnvironmentSchema)
}

// RegisterSchema compiles and registers a CUE schema for a document kind,
// replacing any previous registration.
func (sr *SchemaRegistry) RegisterSchema(kind, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return model.NewConfigurationError(
			fmt.Sprintf("cannot compile schema for kind %s", kind), err)
	}
	sr.schemas[kind] = val
	return nil
}

// GetSchema retrieves the schema registered for a kind.
func (sr *SchemaRegistry) GetSchema(kind string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	val, ok := sr.schemas[kind]
	return val, ok
}

// ListSchemas returns the registered kinds, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	kinds := make([]string, 0, len(sr.schemas))
	for kind := range sr.schemas {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// ValidateKind validates a document against the schema for its kind.
// Kinds without a registered schema pass; user-defined kinds are legal
// and only checked for the kind/name envelope by the loader.
func (sr *SchemaRegistry) ValidateKind(ctx context.Context, kind string, doc map[string]interface{}) error {
	schema, ok := sr.GetSchema(kind)
	if !ok {
		return nil
	}

	val := sr.ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return model.NewValidationError("cannot encode document for validation", err).
			WithObject(kind + ":" + fmt.Sprintf("%v", doc["name"]))
	}
	// Concrete validation turns missing required fields into errors
	// instead of leaving them as incomplete values.
	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return model.NewValidationError("document violates schema", err).
			WithObject(kind + ":" + fmt.Sprintf("%v", doc["name"]))
	}
	return nil
}

// Built-in schema definitions. Each schema constrains the document
// envelope plus the structural fields the planner relies on; open structs
// keep room for user extension fields.

const builtinComponentSchema = `
#Component: {
	kind: "Component"
	name: string & =~"^[a-zA-Z0-9_-]+$"
	image?: string
	version?: string | number
	replicas?: int & >=0
	config?: {...}
	endpoints?: [...{
		name:      string
		interface: string
		...
	}]
	environment?: [...{
		name:      string
		value?:    _
		required?: bool
		...
	}]
	files?: [...{
		template:       string
		container_path: string
		...
	}]
	...
}
#Component
`

const builtinInterfaceSchema = `
#Interface: {
	kind: "Interface"
	name: string & =~"^[a-zA-Z0-9_-]+$"
	version?: string | number
	roles?: [...{
		name: string
		provides?: {[string]: string}
		requires?: {[string]: string}
		defaults?: {...}
		...
	}]
	...
}
#Interface
`

const builtinGraphSchema = `
#Graph: {
	kind: "Graph"
	name: string & =~"^[a-zA-Z0-9_-]+$"
	runtime?: string
	services?: [...{
		name:       string
		component?: string
		runtime?:   string
		expose?: [...string]
		config?: {...}
		...
	}]
	relations?: [...[...string]]
	...
}
#Graph
`

const builtinRuntimeSchema = `
#Runtime: {
	kind: "Runtime"
	name: string & =~"^[a-zA-Z0-9_-]+$"
	plugins: [...{
		name:     string
		path?:    string
		package?: string
		config?: {...}
		...
	}]
	...
}
#Runtime
`

const builtinEnvironmentSchema = `
#Environment: {
	kind: "Environment"
	name: string & =~"^[a-zA-Z0-9_-]+$"
	config?: {...}
	services?: {[string]: {...}}
	...
}
#Environment
`
