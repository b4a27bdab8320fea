package tuya

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCredentials(t *testing.T) {
	c, err := NewCredentials("uuid-1", "key-1", "dev-1", "ms", "ludzroix", "Front door", "", "")
	require.NoError(t, err)
	assert.Equal(t, "ludzroix", c.ProductID)

	s := c.String()
	assert.NotContains(t, s, "uuid-1")
	assert.NotContains(t, s, "key-1")
	assert.NotContains(t, s, "dev-1")
	assert.Contains(t, s, "device_name: Front door")
}

func TestNewCredentials_MissingField(t *testing.T) {
	tests := map[string][]string{
		"uuid":       {"", "k", "d", "c", "p"},
		"local_key":  {"u", "", "d", "c", "p"},
		"device_id":  {"u", "k", "", "c", "p"},
		"category":   {"u", "k", "d", "", "p"},
		"product_id": {"u", "k", "d", "c", ""},
	}

	for field, v := range tests {
		t.Run(field, func(t *testing.T) {
			_, err := NewCredentials(v[0], v[1], v[2], v[3], v[4], "", "", "")
			require.ErrorIs(t, err, ErrIncompleteCredentials)
			assert.Contains(t, err.Error(), field)
		})
	}
}
