package sandbox

import (
	"github.com/bnema/scout-cli/internal/domain"
	"go.starlark.net/starlark"
)

// toStarlark converts a snapshot value into its script-side form.
func toStarlark(v domain.Value) starlark.Value {
	switch v.Kind {
	case domain.KindBool:
		return starlark.Bool(v.Bool)
	case domain.KindInt:
		return starlark.MakeInt64(v.Int)
	case domain.KindFloat:
		return starlark.Float(v.Float)
	case domain.KindString:
		return starlark.String(v.Str)
	case domain.KindList:
		items := make([]starlark.Value, 0, len(v.List))
		for _, item := range v.List {
			items = append(items, toStarlark(item))
		}
		return starlark.NewList(items)
	case domain.KindMap:
		dict := starlark.NewDict(len(v.Map))
		for _, e := range v.Map {
			_ = dict.SetKey(starlark.String(e.Key), toStarlark(e.Value))
		}
		return dict
	default:
		return starlark.None
	}
}

// fromStarlark converts a script value back into the snapshot form. The
// second return is false for anything that cannot survive a save/restore
// cycle: functions, builtins, modules, sets, dicts with non-string keys.
func fromStarlark(v starlark.Value) (domain.Value, bool) {
	switch t := v.(type) {
	case starlark.NoneType:
		return domain.Null(), true
	case starlark.Bool:
		return domain.BoolValue(bool(t)), true
	case starlark.Int:
		i, ok := t.Int64()
		if !ok {
			return domain.Value{}, false
		}
		return domain.IntValue(i), true
	case starlark.Float:
		return domain.FloatValue(float64(t)), true
	case starlark.String:
		return domain.StringValue(string(t)), true
	case *starlark.List:
		return fromIterable(t)
	case starlark.Tuple:
		return fromIterable(t)
	case *starlark.Dict:
		out := domain.MapValue()
		for _, item := range t.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return domain.Value{}, false
			}
			val, ok := fromStarlark(item[1])
			if !ok {
				return domain.Value{}, false
			}
			out.Set(string(key), val)
		}
		return out, true
	default:
		return domain.Value{}, false
	}
}

func fromIterable(it starlark.Iterable) (domain.Value, bool) {
	var items []domain.Value
	iter := it.Iterate()
	defer iter.Done()

	var elem starlark.Value
	for iter.Next(&elem) {
		v, ok := fromStarlark(elem)
		if !ok {
			return domain.Value{}, false
		}
		items = append(items, v)
	}
	return domain.ListValue(items...), true
}

// payloadToStarlark converts a decoded JSON response field into a script
// value, for bridge calls that return server payloads verbatim.
func payloadToStarlark(raw any) starlark.Value {
	v, ok := domain.FromJSON(raw)
	if !ok {
		return starlark.None
	}
	return toStarlark(v)
}
