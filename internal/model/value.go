package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Value is a raw JSON answer. Its shape depends on the question type: a string for
// multiple-choice, fill-blank and flashcard, a bool for true/false.
type Value json.RawMessage

func StringValue(s string) Value {
	b, _ := json.Marshal(s)
	return Value(b)
}

func BoolValue(b bool) Value {
	if b {
		return Value("true")
	}
	return Value("false")
}

// ValueOf marshals any JSON-able answer.
func ValueOf(v any) (Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Value(b), nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*v = nil
		return nil
	}
	*v = append((*v)[:0], b...)
	return nil
}

func (v Value) IsZero() bool { return len(v) == 0 || string(v) == "null" }

// Decode unmarshals the value as stored. It never changes the JSON type.
func (v Value) Decode() any {
	if v.IsZero() {
		return nil
	}
	var out any
	if err := json.Unmarshal(v, &out); err != nil {
		return string(v)
	}
	return out
}

// String returns the value when it is a JSON string. A string that reads "true"
// stays a string.
func (v Value) String() (string, bool) {
	s, ok := v.Decode().(string)
	return s, ok
}

// Bool returns the value as a bool. It also accepts the serialized form "true" or
// "false", which is how true/false answers arrive from text inputs.
func (v Value) Bool() (bool, bool) {
	switch d := v.Decode().(type) {
	case bool:
		return d, true
	case string:
		switch strings.ToLower(strings.TrimSpace(d)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// For returns the answer in the shape question type t expects: a bool for
// true/false, a string for every other type.
func (v Value) For(t QuestionType) (any, bool) {
	if t == TypeTrueFalse {
		return v.Bool()
	}
	return v.String()
}
