package cache

import (
	"encoding/json"
	"fmt"
)

// Key canonically identifies a cached resource query. Two keys are equal iff
// the resource matches and the parameters serialize identically; parameter
// order is not significant because serialization sorts object keys.
type Key struct {
	Resource string `json:"resource"`
	Params   string `json:"params,omitempty"`
}

// NewKey builds a canonical key from a resource name and filter parameters.
// json.Marshal emits map keys in sorted order, which gives us the canonical
// form for free; nested maps are sorted the same way.
func NewKey(resource string, params map[string]interface{}) (Key, error) {
	if resource == "" {
		return Key{}, fmt.Errorf("resource name cannot be empty")
	}

	if len(params) == 0 {
		return Key{Resource: resource}, nil
	}

	serialized, err := json.Marshal(params)
	if err != nil {
		return Key{}, fmt.Errorf("failed to serialize key params: %w", err)
	}

	return Key{Resource: resource, Params: string(serialized)}, nil
}

// MustKey builds a key and panics on failure. Intended for fixtures and
// callers with statically known parameters.
func MustKey(resource string, params map[string]interface{}) Key {
	key, err := NewKey(resource, params)
	if err != nil {
		panic(err)
	}
	return key
}

// String returns the comparable form of the key
func (k Key) String() string {
	if k.Params == "" {
		return k.Resource
	}
	return k.Resource + "?" + k.Params
}

// Equal reports whether two keys identify the same cached query
func (k Key) Equal(other Key) bool {
	return k.Resource == other.Resource && k.Params == other.Params
}
