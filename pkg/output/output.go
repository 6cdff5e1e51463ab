// Package output implements the accumulator of generated, named, annotated
// artifacts pending serialization. Plugins add and update records; records
// keep their insertion order so repeated renders serialize identically.
package output

import (
	"fmt"

	"github.com/loomworks/loom/pkg/entity"
	"github.com/loomworks/loom/pkg/model"
)

// Record is one named artifact: a payload, free-form annotations and the
// ordered list of plugins that contributed to it.
type Record struct {
	Name        string
	Data        interface{}
	Annotations map[string]interface{}
	Plugins     []string
}

// Format returns the serialization format annotation, defaulting to yaml.
func (r *Record) Format() string {
	if f, ok := r.Annotations["format"].(string); ok && f != "" {
		return f
	}
	return "yaml"
}

// Output collects rendered records. First writer wins: a duplicate Add is a
// collision unless explicitly ignored, so record identity stays stable for
// later updates and queries.
type Output struct {
	records []*Record
	index   map[string]*Record
}

// New creates an empty accumulator.
func New() *Output {
	return &Output{index: make(map[string]*Record)}
}

// Add registers a new record. Adding an existing name fails with an
// already-exists configuration error and leaves the stored payload
// untouched.
func (o *Output) Add(name string, data interface{}, plugin string, annotations map[string]interface{}) error {
	if _, exists := o.index[name]; exists {
		return model.NewConfigurationError(
			fmt.Sprintf("output record %q already exists, use Update or Ensure", name), nil).
			WithCode(model.ErrCodeAlreadyExists)
	}
	ann := make(map[string]interface{}, len(annotations))
	for k, v := range annotations {
		ann[k] = v
	}
	rec := &Record{
		Name:        name,
		Data:        data,
		Annotations: ann,
		Plugins:     []string{plugin},
	}
	o.records = append(o.records, rec)
	o.index[name] = rec
	return nil
}

// Ensure registers a record only when the name is not yet taken. An
// existing record is left untouched and no error is reported.
func (o *Output) Ensure(name string, data interface{}, plugin string, annotations map[string]interface{}) {
	if _, exists := o.index[name]; exists {
		return
	}
	_ = o.Add(name, data, plugin, annotations)
}

// Update merges data into an existing record's payload using the same
// schema-directed merge rules as entity facets. Override keys are dotted
// paths inside the payload; the schema applies at each targeted node. The
// plugin is appended to the record's contributor list if new.
func (o *Output) Update(name string, overrides map[string]interface{}, plugin string, schema *entity.Schema) error {
	rec, ok := o.index[name]
	if !ok {
		return model.NewConfigurationError(
			fmt.Sprintf("attempting to update missing output record %q", name), nil).
			WithCode(model.ErrCodeNotFound)
	}

	contributes := false
	for _, p := range rec.Plugins {
		if p == plugin {
			contributes = true
			break
		}
	}
	if !contributes {
		rec.Plugins = append(rec.Plugins, plugin)
	}

	for path, data := range overrides {
		if path == "" {
			rec.Data = entity.Merge(rec.Data, data, schema)
			continue
		}
		root, ok := rec.Data.(map[string]interface{})
		if !ok {
			return model.NewConfigurationError(
				fmt.Sprintf("record %q payload is not an object, cannot update path %q", name, path), nil).
				WithPath(path)
		}
		current, _ := entity.Lookup(root, path)
		entity.SetPath(root, path, entity.Merge(current, data, schema))
	}
	return nil
}

// Get returns a record by name.
func (o *Output) Get(name string) (*Record, bool) {
	rec, ok := o.index[name]
	return rec, ok
}

// Contains reports whether a record with the given name exists.
func (o *Output) Contains(name string) bool {
	_, ok := o.index[name]
	return ok
}

// Records returns all records in insertion order.
func (o *Output) Records() []*Record {
	out := make([]*Record, len(o.records))
	copy(out, o.records)
	return out
}

// Names returns the record names in insertion order.
func (o *Output) Names() []string {
	out := make([]string, len(o.records))
	for i, rec := range o.records {
		out[i] = rec.Name
	}
	return out
}

// Len reports the number of records.
func (o *Output) Len() int {
	return len(o.records)
}
