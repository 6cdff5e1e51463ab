package output

import (
	"github.com/loomworks/loom/pkg/entity"
)

// Query selects records by contributing plugin and dotted-path equality
// over the record's fields. Paths are rooted at the record: "name",
// "data.<...>" or "annotations.<...>".
type Query struct {
	// Plugin matches records any of whose contributors equals it.
	Plugin string

	// Fields maps dotted paths to expected values.
	Fields map[string]interface{}
}

func (q Query) matches(rec *Record) bool {
	if q.Plugin != "" {
		found := false
		for _, p := range rec.Plugins {
			if p == q.Plugin {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for path, expect := range q.Fields {
		root := map[string]interface{}{
			"name":        rec.Name,
			"data":        rec.Data,
			"annotations": rec.Annotations,
		}
		v, ok := entity.Lookup(root, path)
		if !ok || v != expect {
			return false
		}
	}
	return true
}

// Pick returns the records matching the query, in insertion order.
func (o *Output) Pick(q Query) []*Record {
	var out []*Record
	for _, rec := range o.records {
		if q.matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Filter is the negated form of Pick: it returns the records the query
// does not match.
func (o *Output) Filter(q Query) []*Record {
	var out []*Record
	for _, rec := range o.records {
		if !q.matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}
