// Package config loads declarative model documents into an entity store.
//
// Documents are YAML streams; every document carries a kind and a name.
// Loading the same (kind, name) from several files layers the later
// documents as facets over the first, preserving per-file provenance.
// Before a document is stored it is validated against the CUE schema
// registered for its kind.
package config
