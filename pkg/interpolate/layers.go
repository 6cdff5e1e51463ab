package interpolate

import "github.com/loomworks/loom/pkg/entity"

// Layers composes overlay maps into one interpolation context with the same
// merge semantics as entity facets. The first layer is the most specific
// and wins on conflict; later layers provide fallbacks.
type Layers []map[string]interface{}

// NewLayers builds a layered context, most specific layer first. Nil layers
// are skipped.
func NewLayers(layers ...map[string]interface{}) Layers {
	out := make(Layers, 0, len(layers))
	for _, l := range layers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

// Push prepends a new most-specific layer and returns the extended context.
// The receiver is not modified.
func (l Layers) Push(layer map[string]interface{}) Layers {
	out := make(Layers, 0, len(l)+1)
	out = append(out, layer)
	out = append(out, l...)
	return out
}

// Flatten merges the layers into a single map, least specific first, so the
// innermost layer wins.
func (l Layers) Flatten() map[string]interface{} {
	var view interface{} = map[string]interface{}{}
	for i := len(l) - 1; i >= 0; i-- {
		view = entity.Merge(view, l[i], nil)
	}
	return view.(map[string]interface{})
}
