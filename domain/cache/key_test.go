package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey_CanonicalParamOrder(t *testing.T) {
	// Two maps with the same pairs must produce the same key regardless of
	// insertion order
	a, err := NewKey("users", map[string]interface{}{"page": 2, "status": "active"})
	require.NoError(t, err)

	b, err := NewKey("users", map[string]interface{}{"status": "active", "page": 2})
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.String(), b.String())
}

func TestNewKey_NestedParams(t *testing.T) {
	a, err := NewKey("orders", map[string]interface{}{
		"filter": map[string]interface{}{"region": "eu", "tier": "gold"},
	})
	require.NoError(t, err)

	b, err := NewKey("orders", map[string]interface{}{
		"filter": map[string]interface{}{"tier": "gold", "region": "eu"},
	})
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
}

func TestNewKey_DifferentParamsDiffer(t *testing.T) {
	a := MustKey("users", map[string]interface{}{"page": 1})
	b := MustKey("users", map[string]interface{}{"page": 2})

	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.String(), b.String())
}

func TestNewKey_EmptyResourceRejected(t *testing.T) {
	_, err := NewKey("", map[string]interface{}{"page": 1})
	assert.Error(t, err)
}

func TestNewKey_NoParams(t *testing.T) {
	key, err := NewKey("users", nil)
	require.NoError(t, err)

	assert.Equal(t, "users", key.String())

	empty, err := NewKey("users", map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, key.Equal(empty))
}

func TestKey_String(t *testing.T) {
	key := MustKey("users", map[string]interface{}{"page": 1})
	assert.Equal(t, `users?{"page":1}`, key.String())
}
