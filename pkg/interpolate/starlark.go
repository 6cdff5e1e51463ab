package interpolate

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/loomworks/loom/pkg/model"
)

// evalExpr evaluates one {expr} segment as a Starlark expression against
// the context. Context maps become structs so dotted attribute access works
// the way it does in config files.
func evalExpr(expr string, ctx map[string]interface{}) (interface{}, error) {
	env := make(starlark.StringDict, len(ctx))
	for k, v := range ctx {
		sv, err := toStarlark(v)
		if err != nil {
			return nil, model.NewMissingContextError(
				fmt.Sprintf("cannot convert context value %q", k), err).WithPath(k)
		}
		env[k] = sv
	}

	thread := &starlark.Thread{Name: "interpolate"}
	result, err := starlark.Eval(thread, "<interpolation>", expr, env)
	if err != nil {
		return nil, model.NewMissingContextError(
			fmt.Sprintf("cannot evaluate {%s}", expr), err).WithPath(expr)
	}
	return fromStarlark(result)
}

func toStarlark(v interface{}) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		items := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case map[string]interface{}:
		dict := make(starlark.StringDict, len(val))
		for k, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			dict[k] = sv
		}
		return starlarkstruct.FromStringDict(starlarkstruct.Default, dict), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

func fromStarlark(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer out of range: %s", val)
		}
		return int(i), nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		out := make([]interface{}, 0, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case starlark.Tuple:
		out := make([]interface{}, 0, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]interface{}, val.Len())
		for _, k := range val.Keys() {
			ks, ok := starlark.AsString(k)
			if !ok {
				return nil, fmt.Errorf("non-string dict key: %s", k)
			}
			item, _, err := val.Get(k)
			if err != nil {
				return nil, err
			}
			gv, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			out[ks] = gv
		}
		return out, nil
	case *starlarkstruct.Struct:
		dict := starlark.StringDict{}
		val.ToStringDict(dict)
		out := make(map[string]interface{}, len(dict))
		for k, item := range dict {
			gv, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			out[k] = gv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type %s", v.Type())
	}
}
