package uuidx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, uuid.Nil, id)
}

func TestNewString(t *testing.T) {
	s := NewString()
	parsed, err := uuid.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNewIsMonotonicFriendly(t *testing.T) {
	// v7 ids embed a timestamp, two successive ids must differ
	a := New()
	b := New()
	assert.NotEqual(t, a, b)
}
