// Package manifest parses package manifests (package.json) into an ordered
// value model.
//
// Conditional exports resolution depends on the insertion order of object
// keys, which map-based JSON decoding discards. Values here preserve key
// order by walking the token stream.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a parsed JSON value.
type Kind uint8

const (
	// KindInvalid is the zero Value.
	KindInvalid Kind = iota

	// KindString is a JSON string.
	KindString

	// KindObject is a JSON object with ordered keys.
	KindObject

	// KindOther is any other JSON value (array, number, bool, null).
	// Its content is not retained.
	KindOther
)

// Value is an immutable view of a parsed JSON value.
type Value struct {
	kind   Kind
	str    string
	keys   []string
	fields map[string]Value
}

// Parse decodes a manifest. The top-level value must be a JSON object.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := parseValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("manifest: %w", err)
	}
	if v.kind != KindObject {
		return Value{}, errors.New("manifest: top-level value is not an object")
	}
	// Reject trailing garbage after the document.
	if dec.More() {
		return Value{}, errors.New("manifest: trailing data after document")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case string:
		return Value{kind: KindString, str: t}, nil
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			if err := skipArray(dec); err != nil {
				return Value{}, err
			}
			return Value{kind: KindOther}, nil
		default:
			return Value{}, fmt.Errorf("unexpected %q", t.String())
		}
	default:
		return Value{kind: KindOther}, nil
	}
}

func parseObject(dec *json.Decoder) (Value, error) {
	v := Value{kind: KindObject, fields: map[string]Value{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is %T, not string", tok)
		}
		child, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		if _, dup := v.fields[key]; !dup {
			v.keys = append(v.keys, key)
		}
		v.fields[key] = child
	}
	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return v, nil
}

// skipArray consumes the remainder of an already-opened array, including
// any nested containers.
func skipArray(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string content of a KindString value, else "".
func (v Value) Str() string { return v.str }

// Keys returns the object's keys in insertion order. Nil for non-objects.
func (v Value) Keys() []string { return v.keys }

// Field returns the named field of an object value.
func (v Value) Field(key string) (Value, bool) {
	f, ok := v.fields[key]
	return f, ok
}

// StringField returns the named field when it is a string.
func (v Value) StringField(key string) (string, bool) {
	f, ok := v.fields[key]
	if !ok || f.kind != KindString {
		return "", false
	}
	return f.str, true
}
