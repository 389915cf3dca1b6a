// Package flex holds a loosely typed value decoded from model output.
//
// Model responses are asked to follow a JSON schema but frequently do not:
// a "list of queries" may come back as a bare string, a number, a list of
// lists, or an object. Value keeps whatever JSON shape was decoded and offers
// explicit coercions so callers never have to type-assert raw interface{}s.
package flex

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Kind is the JSON shape held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	List
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case List:
		return "list"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a decoded JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	s    string // String text, or the literal text of a Number
	list []Value
	obj  map[string]Value
	keys []string // object keys in source order
}

func NewNull() Value             { return Value{} }
func NewBool(b bool) Value       { return Value{kind: Bool, b: b} }
func NewString(s string) Value   { return Value{kind: String, s: s} }
func NewList(vs ...Value) Value  { return Value{kind: List, list: append([]Value{}, vs...)} }
func NewNumber(lit string) Value { return Value{kind: Number, s: lit} }

// NewObject builds an object value; keys keep the order of pairs.
func NewObject(pairs ...Pair) Value {
	v := Value{kind: Object, obj: make(map[string]Value, len(pairs))}
	for _, p := range pairs {
		if _, dup := v.obj[p.Key]; !dup {
			v.keys = append(v.keys, p.Key)
		}
		v.obj[p.Key] = p.Value
	}
	return v
}

// Pair is one key/value member used by NewObject.
type Pair struct {
	Key   string
	Value Value
}

// Strings converts a []string into a list value.
func Strings(ss ...string) Value {
	out := make([]Value, 0, len(ss))
	for _, s := range ss {
		out = append(out, NewString(s))
	}
	return Value{kind: List, list: out}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == Null }
func (v Value) IsList() bool   { return v.kind == List }
func (v Value) IsObject() bool { return v.kind == Object }

// Items returns list members, or nil for non-lists.
func (v Value) Items() []Value {
	if v.kind != List {
		return nil
	}
	return v.list
}

// Len is the number of list members or object keys, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case List:
		return len(v.list)
	case Object:
		return len(v.keys)
	default:
		return 0
	}
}

// Get looks up an object member. ok is false for non-objects, absent keys and
// members explicitly set to null.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	m, ok := v.obj[key]
	if !ok || m.kind == Null {
		return Value{}, false
	}
	return m, true
}

// Keys returns object keys in source order.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	return append([]string(nil), v.keys...)
}

// Text returns the string payload and whether v is a String.
func (v Value) Text() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.s, true
}

// Truthy mirrors the usual "is there anything here" test: null, false, zero,
// empty strings, lists and objects are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case Null:
		return false
	case Bool:
		return v.b
	case Number:
		f := strings.TrimLeft(v.s, "-0.")
		return f != "" && !strings.HasPrefix(strings.ToLower(f), "e")
	case String:
		return v.s != ""
	default:
		return v.Len() > 0
	}
}

// String coerces v to text: strings verbatim, numbers in their literal form,
// booleans as true/false, null as "null", lists and objects as compact JSON.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "null"
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	case Number, String:
		return v.s
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// MarshalJSON encodes v back to JSON, keeping object key order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(v.s)
	case String:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case List:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON lets Value be embedded in ordinary JSON structs.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ErrTrailingData is returned by Parse when more than one JSON value is present.
var ErrTrailingData = errors.New("flex: trailing data after JSON value")

// ErrTooDeep is returned by Parse for documents nested deeper than MaxDepth.
var ErrTooDeep = errors.New("flex: exceeded max nesting depth")

// MaxDepth bounds list/object nesting, matching encoding/json.
const MaxDepth = 10000

// Parse decodes exactly one JSON document. Numbers keep their literal text.
func Parse(s string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	v, err := decodeValue(dec, 0)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, ErrTrailingData
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		return NewNumber(t.String()), nil
	case string:
		return NewString(t), nil
	case json.Delim:
		if depth >= MaxDepth {
			return Value{}, ErrTooDeep
		}
		switch t {
		case '[':
			list := make([]Value, 0)
			for dec.More() {
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				list = append(list, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: List, list: list}, nil
		case '{':
			obj := Value{kind: Object, obj: make(map[string]Value)}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, errors.New("flex: object key is not a string")
				}
				member, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				if _, dup := obj.obj[key]; !dup {
					obj.keys = append(obj.keys, key)
				}
				obj.obj[key] = member
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return obj, nil
		}
	}
	return Value{}, errors.New("flex: unexpected JSON token")
}
