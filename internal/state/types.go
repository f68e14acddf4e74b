package state

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Object types.
const (
	TypeState   = "state"
	TypeConfig  = "config"
	TypeChannel = "channel"
	TypeDevice  = "device"
)

// Value types carried in Common.Type.
const (
	ValueBoolean = "boolean"
	ValueNumber  = "number"
	ValueString  = "string"
	ValueArray   = "array"
	ValueObject  = "object"
)

// Object describes a key in the store. It is the definition, not the value.
type Object struct {
	ID     string         `json:"_id"`
	Type   string         `json:"type"`
	Common Common         `json:"common"`
	Native map[string]any `json:"native,omitempty"`
}

// Common holds the attributes shared by all object types.
//
// Def is the initial value of a state object. Default and Schema are used by
// configuration objects: Default carries the JSON-serialised entry and
// Schema describes it for editors.
type Common struct {
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
	Type    string `json:"type,omitempty"`
	Read    bool   `json:"read"`
	Write   bool   `json:"write"`
	Def     any    `json:"def,omitempty"`
	Desc    string `json:"desc,omitempty"`
	Default any    `json:"default,omitempty"`
	Schema  any    `json:"schema,omitempty"`
}

// State is the current value of a key.
//
// Ack distinguishes a confirmed fact (true) from a requested change that
// has not been carried out yet (false).
type State struct {
	Val  any       `json:"val"`
	Ack  bool      `json:"ack"`
	TS   time.Time `json:"ts"`
	From string    `json:"from,omitempty"`
}

// StateHandler receives state changes. st is nil when the key was deleted.
type StateHandler func(id string, st *State)

// ObjectHandler receives object changes. obj is nil when the key was deleted.
type ObjectHandler func(id string, obj *Object)

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	data, err := json.Marshal(o)
	if err != nil {
		c := *o
		return &c
	}
	var c Object
	if err := json.Unmarshal(data, &c); err != nil {
		c = *o
	}
	return &c
}

// ValidateID checks id is a non-empty dotted key with no empty segments.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	for _, part := range strings.Split(id, ".") {
		if part == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidID, id)
		}
	}
	return nil
}

// normalizeValue encodes val as JSON and decodes it again so callers always
// see the same value types regardless of the repository (float64 numbers,
// []any arrays, map[string]any objects).
func normalizeValue(val any) (any, []byte, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return out, data, nil
}
