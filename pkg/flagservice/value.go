package flagservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies which member of the Value union is set.
type Kind uint8

const (
	// KindInvalid is the zero Value. It is never stored.
	KindInvalid Kind = iota
	KindBool
	KindString
)

// Value is the value of a single flag: either a boolean or a string.
type Value struct {
	kind Kind
	b    bool
	s    string
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean held by v, and false if v is not a boolean.
func (v Value) AsBool() (b bool, ok bool) { return v.b, v.kind == KindBool }

// AsString returns the string held by v, and false if v is not a string.
func (v Value) AsString() (s string, ok bool) { return v.s, v.kind == KindString }

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	}
	return "<invalid>"
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindString:
		return json.Marshal(v.s)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler. Only JSON booleans and strings
// are accepted.
func (v *Value) UnmarshalJSON(p []byte) error {
	parsed, err := ParseValue(p)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValue decodes a raw JSON value into a Value. Numbers, objects, arrays
// and null fail with ErrInvalidValue.
func ParseValue(raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Value{}, ErrMalformedRequest
	}
	var x interface{}
	if err := json.Unmarshal(raw, &x); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	switch t := x.(type) {
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	}
	return Value{}, ErrInvalidValue
}

// ParseText interprets command-line or environment text as a Value: "true"
// and "false" become booleans, anything else is kept as a string.
func ParseText(s string) Value {
	switch s {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return String(s)
}

// FlagSet maps flag names to their values.
type FlagSet map[string]Value

// Copy returns a shallow copy of fs; Values are immutable so this is a full
// snapshot.
func (fs FlagSet) Copy() FlagSet {
	c := make(FlagSet, len(fs))
	for k, v := range fs {
		c[k] = v
	}
	return c
}
