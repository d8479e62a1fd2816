package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainResetter struct{ resets int }

func (r *plainResetter) Reset() { r.resets++ }

type plainReleaser struct{ releases int }

func (r *plainReleaser) Release() { r.releases++ }

func TestStateString(t *testing.T) {
	assert.Equal(t, "new", StateNew.String())
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "in_use", StateInUse.String())
	assert.Equal(t, "returning", StateReturning.String())
	assert.Equal(t, "resurrecting", StateResurrecting.String())
	assert.Equal(t, "destroyed", StateDestroyed.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestResetValueResolution(t *testing.T) {
	r := &plainResetter{}
	assert.True(t, resetValue(r, nil))
	assert.Equal(t, 1, r.resets)

	w := &widget{unfit: true}
	assert.False(t, resetValue(w, nil))

	// An explicit closure wins over the value's own method
	assert.True(t, resetValue(w, func() bool { return true }))

	assert.True(t, resetValue(42, nil))
	assert.False(t, resetValue(r, func() bool { panic("bad") }))
}

func TestReleaseValueResolution(t *testing.T) {
	r := &plainReleaser{}
	require.NoError(t, releaseValue(r, nil))
	assert.Equal(t, 1, r.releases)

	c := &closer{err: errors.New("close failed")}
	assert.EqualError(t, releaseValue(c, nil), "close failed")

	err := releaseValue(r, func() { panic("exploded") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exploded")
	assert.Equal(t, 1, r.releases)

	assert.NoError(t, releaseValue("nothing to release", nil))
}

func TestWrappedNilClosures(t *testing.T) {
	w := Wrap(7, nil, nil)
	assert.True(t, w.Reset())
	assert.NotPanics(t, w.Release)
	assert.Equal(t, 7, w.Value)
	assert.Equal(t, StateNew, w.State())
	assert.False(t, w.Owned())
}
