package gamedata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The process-wide table can only be initialised once per process, so the
// whole lifecycle is exercised in a single test.
func TestDefault_InitialiseOnceNoReset(t *testing.T) {
	seven := 7
	want := New(File{"Slot": {Offsets: &Offsets{Linux: &seven, Windows: &seven}}})
	var calls int

	require.NoError(t, InitDefault(func() (*Table, error) {
		calls++
		return want, nil
	}))

	got, err := Default()
	require.NoError(t, err)
	assert.Same(t, want, got)

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, want, again)
	assert.Equal(t, 1, calls)

	err = InitDefault(func() (*Table, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	off, err := got.Offset("Slot")
	require.NoError(t, err)
	assert.Equal(t, 7, off)
}
