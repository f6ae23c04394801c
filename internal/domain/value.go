package domain

import (
	"fmt"
	"math"
	"sort"
)

// Kind discriminates the variants of Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// Value is the serializable representation of everything that may cross an
// invocation boundary: namespace variables, subcall findings, remote variable
// payloads. Only these seven shapes survive a save/restore cycle; anything
// else (functions, handles, foreign types) is dropped at snapshot time.
type Value struct {
	Kind  Kind       `cbor:"k"`
	Bool  bool       `cbor:"b,omitempty"`
	Int   int64      `cbor:"i,omitempty"`
	Float float64    `cbor:"f,omitempty"`
	Str   string     `cbor:"s,omitempty"`
	List  []Value    `cbor:"l,omitempty"`
	Map   []MapEntry `cbor:"m,omitempty"`
}

// MapEntry preserves insertion order for KindMap values.
type MapEntry struct {
	Key   string `cbor:"k"`
	Value Value  `cbor:"v"`
}

func Null() Value                 { return Value{Kind: KindNull} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func ListValue(vs ...Value) Value { return Value{Kind: KindList, List: vs} }

func MapValue(entries ...MapEntry) Value {
	return Value{Kind: KindMap, Map: entries}
}

// Get returns the entry for key in a KindMap value.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindMap {
		return Value{}, false
	}
	for _, e := range v.Map {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Set replaces or appends a map entry, preserving insertion order.
func (v *Value) Set(key string, val Value) {
	if v.Kind != KindMap {
		*v = MapValue()
	}
	for i, e := range v.Map {
		if e.Key == key {
			v.Map[i].Value = val
			return
		}
	}
	v.Map = append(v.Map, MapEntry{Key: key, Value: val})
}

// Interface converts the value to the shape encoding/json understands:
// nil, bool, int64, float64, string, []any, map[string]any.
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindList:
		out := make([]any, 0, len(v.List))
		for _, item := range v.List {
			out = append(out, item.Interface())
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for _, e := range v.Map {
			out[e.Key] = e.Value.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromJSON converts a decoded JSON value (the output of encoding/json into
// any) to a Value. The second return is false for shapes that cannot be
// represented, such as map keys that are not strings.
func FromJSON(raw any) (Value, bool) {
	switch t := raw.(type) {
	case nil:
		return Null(), true
	case bool:
		return BoolValue(t), true
	case int:
		return IntValue(int64(t)), true
	case int64:
		return IntValue(t), true
	case float64:
		// encoding/json decodes every number as float64; keep integral
		// values as ints so they restore the way they were written.
		if t == math.Trunc(t) && !math.IsInf(t, 0) && math.Abs(t) < 1<<53 {
			return IntValue(int64(t)), true
		}
		return FloatValue(t), true
	case string:
		return StringValue(t), true
	case []any:
		list := make([]Value, 0, len(t))
		for _, item := range t {
			v, ok := FromJSON(item)
			if !ok {
				return Value{}, false
			}
			list = append(list, v)
		}
		return ListValue(list...), true
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]MapEntry, 0, len(keys))
		for _, k := range keys {
			v, ok := FromJSON(t[k])
			if !ok {
				return Value{}, false
			}
			entries = append(entries, MapEntry{Key: k, Value: v})
		}
		return MapValue(entries...), true
	default:
		return Value{}, false
	}
}

// String renders a compact human-readable form for logs and summaries.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return v.Str
	case KindList:
		return fmt.Sprintf("list(%d)", len(v.List))
	case KindMap:
		return fmt.Sprintf("map(%d)", len(v.Map))
	default:
		return "unknown"
	}
}
