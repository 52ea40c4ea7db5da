package ws

import (
	"testing"

	"therapy_webapp/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetOrCreateIsIdempotent(t *testing.T) {
	reg := NewRegistry(&fakeTrials{}, &fakeSummaries{})

	a, err := reg.GetOrCreate("sess-1", game.TypeChoice)
	require.NoError(t, err)
	b, err := reg.GetOrCreate("sess-1", game.TypeChoice)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistrySeparateSessionsGetSeparateRooms(t *testing.T) {
	reg := NewRegistry(&fakeTrials{}, &fakeSummaries{})

	a, err := reg.GetOrCreate("sess-1", game.TypeChoice)
	require.NoError(t, err)
	b, err := reg.GetOrCreate("sess-2", game.TypeMatch)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistryRejectsUnknownGameType(t *testing.T) {
	reg := NewRegistry(&fakeTrials{}, &fakeSummaries{})

	_, err := reg.GetOrCreate("sess-1", game.Type("tetris"))
	assert.Error(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryRemoveIgnoresStalePointer(t *testing.T) {
	reg := NewRegistry(&fakeTrials{}, &fakeSummaries{})

	current, err := reg.GetOrCreate("sess-1", game.TypeChoice)
	require.NoError(t, err)

	stale := NewRoom("sess-1", current.variant, nil, nil, reg)
	reg.Remove(stale)
	assert.Equal(t, 1, reg.Len())

	reg.Remove(current)
	assert.Equal(t, 0, reg.Len())
}
