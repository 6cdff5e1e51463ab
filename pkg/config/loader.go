package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loomworks/loom/pkg/entity"
	"github.com/loomworks/loom/pkg/model"
	"github.com/loomworks/loom/pkg/store"
	"github.com/loomworks/loom/pkg/telemetry"
)

// Loader reads YAML document streams into an entity store, validating
// each document against its kind schema first.
type Loader struct {
	store   *store.Store
	schemas *SchemaRegistry
}

// NewLoader creates a loader feeding the given store.
func NewLoader(st *store.Store) *Loader {
	return &Loader{store: st, schemas: NewSchemaRegistry()}
}

// Schemas exposes the schema registry so callers can register additional
// kinds before loading.
func (l *Loader) Schemas() *SchemaRegistry {
	return l.schemas
}

// LoadDir loads every .yaml/.yml file below a directory, in sorted path
// order so repeated loads layer facets identically.
func (l *Loader) LoadDir(ctx context.Context, dir string) error {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return model.NewConfigurationError(
			fmt.Sprintf("cannot read config directory %s", dir), err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := l.LoadFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile loads one YAML file, which may hold multiple documents.
func (l *Loader) LoadFile(ctx context.Context, path string) error {
	fp, err := os.Open(path)
	if err != nil {
		return model.NewConfigurationError(
			fmt.Sprintf("cannot open config file %s", path), err)
	}
	defer fp.Close()
	return l.LoadReader(ctx, fp, path)
}

// LoadReader loads a YAML document stream. The source tag becomes the
// provenance of every facet produced from the stream.
func (l *Loader) LoadReader(ctx context.Context, r io.Reader, source string) error {
	log := telemetry.FromContext(ctx).NewComponentLogger("config")

	dec := yaml.NewDecoder(r)
	for docIdx := 0; ; docIdx++ {
		var doc map[string]interface{}
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return model.NewConfigurationError(
				fmt.Sprintf("cannot parse document %d of %s", docIdx, source), err)
		}
		if doc == nil {
			continue
		}
		if err := l.storeDocument(ctx, doc, source); err != nil {
			return err
		}
		log.WithFields(map[string]interface{}{
			"source": source,
			"kind":   doc["kind"],
			"name":   doc["name"],
		}).Debug("loaded document")
	}
}

func (l *Loader) storeDocument(ctx context.Context, doc map[string]interface{}, source string) error {
	kind, _ := doc["kind"].(string)
	name, _ := doc["name"].(string)
	if kind == "" || name == "" {
		return model.NewConfigurationError(
			fmt.Sprintf("document in %s lacks kind or name", source), nil).
			WithPath(source)
	}
	if err := l.schemas.ValidateKind(ctx, kind, doc); err != nil {
		return err
	}

	// Later files layer over earlier ones for the same (kind, name).
	if existing, ok := l.store.Get(kind, name); ok {
		switch obj := existing.(type) {
		case *entity.Entity:
			obj.AddFacet(doc, source)
		case interface{ Entity() *entity.Entity }:
			obj.Entity().AddFacet(doc, source)
		default:
			return model.NewConfigurationError(
				fmt.Sprintf("cannot layer document over non-entity object %s", existing.QualName()), nil).
				WithCode(model.ErrCodeAlreadyExists)
		}
		return nil
	}

	e := entity.FromData(doc, EntitySchema(kind), source)
	switch kind {
	case "Runtime":
		l.store.Add(model.NewRuntimeSpec(e))
	default:
		l.store.Add(e)
	}
	return nil
}
