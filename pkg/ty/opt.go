package ty

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Opt is an optional value that distinguishes "unset" from "set to null"
// from "set to a value". Search merging relies on the Set flag to know
// whether an override was provided.
type Opt[T interface{}] struct {
	Value T
	Set   bool
	Valid bool
}

func OptWrap[T interface{}](value T) Opt[T] {
	return Opt[T]{
		Value: value,
		Set:   true,
		Valid: true,
	}
}

// Merge takes the other value if it was set.
func (i *Opt[T]) Merge(or *Opt[T]) {
	if or.Set {
		i.Value = or.Value
		i.Set = or.Set
		i.Valid = or.Valid
	}
}

// S sets the value.
func (i *Opt[T]) S(v T) {
	i.Value = v
	i.Set = true
	i.Valid = true
}

// N marks the value as explicitly null.
func (i *Opt[T]) N() {
	i.Valid = false
}

// U resets the value to unset.
func (i *Opt[T]) U() {
	i.Set = false
	i.Valid = false
}

func (i *Opt[T]) UnmarshalJSON(data []byte) error {
	i.Set = true

	if string(data) == "null" {
		i.Valid = false
		return nil
	}

	if err := json.Unmarshal(data, &i.Value); err != nil {
		return err
	}

	i.Valid = true

	return nil
}

func (i Opt[T]) MarshalJSON() ([]byte, error) {
	if !i.Set || !i.Valid {
		return []byte("null"), nil
	}

	return json.Marshal(i.Value)
}

func (i *Opt[T]) UnmarshalYAML(value *yaml.Node) error {
	i.Set = true
	if value.Kind == yaml.ScalarNode && value.Value == "null" {
		i.Valid = false
		return nil
	}
	var v T
	if err := value.Decode(&v); err != nil {
		return err
	}
	i.Value = v
	i.Valid = true
	return nil
}

func (i Opt[T]) MarshalYAML() (interface{}, error) {
	if !i.Set || !i.Valid {
		return nil, nil
	}
	return i.Value, nil
}
