// Package interpolate implements context-driven expression substitution
// over nested data. Strings may embed {name} or {expr} segments; segments
// are resolved by direct context lookup where possible and otherwise
// evaluated as Starlark expressions, so config values can resolve to typed
// data rather than just text.
package interpolate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/loomworks/loom/pkg/model"
)

// Options controls interpolation behavior.
type Options struct {
	// AllowMissing returns strings with unresolved references unchanged
	// instead of failing. Used for partial early-phase interpolation.
	AllowMissing bool
}

var segmentRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Interpolate walks dict, list and scalar structures recursively and
// substitutes every {expr} segment against the context. Inputs are never
// mutated. A string consisting of exactly one segment yields the typed
// evaluation result, not its stringification.
func Interpolate(data interface{}, ctx map[string]interface{}, opts Options) (interface{}, error) {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, item := range v {
			r, err := Interpolate(item, ctx, opts)
			if err != nil {
				return nil, err
			}
			result[k] = r
		}
		return result, nil
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			r, err := Interpolate(item, ctx, opts)
			if err != nil {
				return nil, err
			}
			result[i] = r
		}
		return result, nil
	case string:
		return interpolateString(v, ctx, opts)
	default:
		return data, nil
	}
}

func interpolateString(s string, ctx map[string]interface{}, opts Options) (interface{}, error) {
	matches := segmentRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	// A string that is exactly one segment may return a non-string value.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		v, err := resolveSegment(s[matches[0][2]:matches[0][3]], ctx)
		if err != nil {
			if opts.AllowMissing {
				return s, nil
			}
			return nil, err
		}
		return v, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		v, err := resolveSegment(s[m[2]:m[3]], ctx)
		if err != nil {
			if opts.AllowMissing {
				return s, nil
			}
			return nil, err
		}
		b.WriteString(stringify(v))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

var simplePathRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func resolveSegment(expr string, ctx map[string]interface{}) (interface{}, error) {
	expr = strings.TrimSpace(expr)
	if simplePathRe.MatchString(expr) {
		if v, ok := lookupPath(ctx, expr); ok {
			return v, nil
		}
		return nil, model.NewMissingContextError(
			fmt.Sprintf("unresolved reference {%s}", expr), nil).WithPath(expr)
	}
	return evalExpr(expr, ctx)
}

func lookupPath(ctx map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = ctx
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
