package entity

// Strategy selects how two values for the same field are combined when a
// facet overlays another.
type Strategy string

const (
	// StrategyObjectMerge deep-merges plain objects key by key. This is the
	// default for object-typed fields.
	StrategyObjectMerge Strategy = "objectMerge"

	// StrategyReplace replaces the older value wholesale. This is the
	// default for array-typed and scalar fields.
	StrategyReplace Strategy = "replace"

	// StrategyAppend concatenates arrays, older elements first.
	StrategyAppend Strategy = "append"

	// StrategyArrayMergeByID merges array elements whose id field matches
	// and appends the rest. The id field defaults to "id" and can be set
	// per schema node via MergeID.
	StrategyArrayMergeByID Strategy = "arrayMergeById"
)

// Merge combines overlay onto base using the schema-directed rules. Neither
// input is mutated; the result shares no mutable state with either. A nil
// schema applies the default strategies everywhere.
func Merge(base, overlay interface{}, schema *Schema) interface{} {
	if overlay == nil {
		return deepCopy(base)
	}
	if base == nil {
		return deepCopy(overlay)
	}

	bm, bok := base.(map[string]interface{})
	om, ook := overlay.(map[string]interface{})
	if bok && ook {
		return mergeMaps(bm, om, schema)
	}

	bl, bok := base.([]interface{})
	ol, ook := overlay.([]interface{})
	if bok && ook {
		return mergeArrays(bl, ol, schema)
	}

	return deepCopy(overlay)
}

func mergeMaps(base, overlay map[string]interface{}, schema *Schema) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		result[k] = deepCopy(v)
	}
	for k, ov := range overlay {
		bv, exists := result[k]
		if !exists {
			result[k] = deepCopy(ov)
			continue
		}
		result[k] = Merge(bv, ov, schema.property(k))
	}
	return result
}

func mergeArrays(base, overlay []interface{}, schema *Schema) []interface{} {
	switch schema.strategy() {
	case StrategyAppend:
		result := make([]interface{}, 0, len(base)+len(overlay))
		for _, v := range base {
			result = append(result, deepCopy(v))
		}
		for _, v := range overlay {
			result = append(result, deepCopy(v))
		}
		return result
	case StrategyArrayMergeByID:
		return mergeArraysByID(base, overlay, schema)
	default:
		result := make([]interface{}, 0, len(overlay))
		for _, v := range overlay {
			result = append(result, deepCopy(v))
		}
		return result
	}
}

func mergeArraysByID(base, overlay []interface{}, schema *Schema) []interface{} {
	idRef := "id"
	if schema != nil && schema.MergeID != "" {
		idRef = schema.MergeID
	}

	result := make([]interface{}, 0, len(base)+len(overlay))
	for _, v := range base {
		result = append(result, deepCopy(v))
	}

	for _, ov := range overlay {
		om, ok := ov.(map[string]interface{})
		if !ok {
			result = append(result, deepCopy(ov))
			continue
		}
		oid, ok := om[idRef]
		if !ok {
			result = append(result, deepCopy(ov))
			continue
		}

		merged := false
		for i, bv := range result {
			bm, ok := bv.(map[string]interface{})
			if !ok {
				continue
			}
			if bid, ok := bm[idRef]; ok && bid == oid {
				result[i] = mergeMaps(bm, om, schema.items())
				merged = true
				break
			}
		}
		if !merged {
			result = append(result, deepCopy(ov))
		}
	}
	return result
}

// deepCopy returns a copy of v sharing no mutable state with the original.
// Maps and slices are copied recursively; scalars are returned as-is.
func deepCopy(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
