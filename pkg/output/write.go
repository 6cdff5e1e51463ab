package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileWriter serializes every record into one concatenated multi-document
// YAML stream. A path of "-" writes to stdout.
type FileWriter struct {
	Path string
}

// Write serializes the accumulator.
func (w *FileWriter) Write(o *Output) error {
	var fp io.Writer
	if w.Path == "-" {
		fp = os.Stdout
	} else {
		f, err := os.Create(w.Path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		fp = f
	}

	for _, rec := range o.Records() {
		if err := writeYAMLDocs(fp, rec.Data); err != nil {
			return fmt.Errorf("failed to serialize record %s: %w", rec.Name, err)
		}
	}
	return nil
}

// DirectoryWriter serializes one file per record under a root directory.
// Sub-paths in record names are honored, so grouped output such as
// configs/... lands in subdirectories.
type DirectoryWriter struct {
	Root string
}

// Write serializes the accumulator.
func (w *DirectoryWriter) Write(o *Output) error {
	if err := os.MkdirAll(w.Root, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, rec := range o.Records() {
		path := filepath.Join(w.Root, filepath.FromSlash(rec.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", rec.Name, err)
		}

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", rec.Name, err)
		}

		err = writeRecord(f, rec)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to serialize record %s: %w", rec.Name, err)
		}
	}
	return nil
}

func writeRecord(fp io.Writer, rec *Record) error {
	switch rec.Format() {
	case "json":
		data, err := json.MarshalIndent(rec.Data, "", "  ")
		if err != nil {
			return err
		}
		_, err = fp.Write(append(data, '\n'))
		return err
	case "raw":
		s, ok := rec.Data.(string)
		if !ok {
			return fmt.Errorf("raw record payload must be a string, got %T", rec.Data)
		}
		_, err := io.WriteString(fp, s)
		return err
	default:
		return writeYAMLDocs(fp, rec.Data)
	}
}

// writeYAMLDocs writes data as one or more YAML documents, each preceded by
// a document separator. A list payload becomes multiple documents.
func writeYAMLDocs(fp io.Writer, data interface{}) error {
	docs, ok := data.([]interface{})
	if !ok {
		docs = []interface{}{data}
	}
	for _, doc := range docs {
		if _, err := io.WriteString(fp, "---\n"); err != nil {
			return err
		}
		enc := yaml.NewEncoder(fp)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	}
	return nil
}
