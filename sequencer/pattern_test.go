package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatfold/padkit"
)

func TestNewPatternDefaults(t *testing.T) {
	p := NewPattern()

	for track := range p.Tracks {
		assert.Equal(t, DefaultTrackLength, p.Tracks[track].Length)
		for step := range p.Tracks[track].Steps {
			assert.False(t, p.Tracks[track].Steps[step].Active)
			assert.Equal(t, DefaultStepVelocity, p.Tracks[track].Steps[step].Velocity)
		}
	}
	assert.Equal(t, DefaultTrackLength, p.MasterLength())
}

func TestPatternSetStep(t *testing.T) {
	p := NewPattern()

	require.NoError(t, p.SetStep(0, 4, true))
	assert.True(t, p.Tracks[0].Steps[4].Active)

	require.NoError(t, p.SetStep(0, 4, false))
	assert.False(t, p.Tracks[0].Steps[4].Active)

	assert.Error(t, p.SetStep(-1, 0, true))
	assert.Error(t, p.SetStep(padkit.NumPads, 0, true))
	assert.Error(t, p.SetStep(0, -1, true))
	assert.Error(t, p.SetStep(0, MaxSteps, true))
}

func TestPatternStepVelocityClamping(t *testing.T) {
	p := NewPattern()

	require.NoError(t, p.SetStepVelocity(1, 0, 1.4))
	assert.Equal(t, 1.0, p.Tracks[1].Steps[0].Velocity)

	require.NoError(t, p.SetStepVelocity(1, 0, -0.4))
	assert.Equal(t, 0.0, p.Tracks[1].Steps[0].Velocity)

	require.NoError(t, p.SetStepVelocity(1, 0, 0.6))
	assert.Equal(t, 0.6, p.Tracks[1].Steps[0].Velocity)
}

func TestPatternTrackLengthAndMasterLength(t *testing.T) {
	p := NewPattern()

	require.NoError(t, p.SetTrackLength(0, 12))
	assert.Equal(t, DefaultTrackLength, p.MasterLength(), "other tracks still span the default length")

	require.NoError(t, p.SetTrackLength(3, MaxSteps))
	assert.Equal(t, MaxSteps, p.MasterLength())

	assert.Error(t, p.SetTrackLength(0, 0))
	assert.Error(t, p.SetTrackLength(0, MaxSteps+1))
	assert.Error(t, p.SetTrackLength(-1, 8))
}

func TestPatternClearTrack(t *testing.T) {
	p := NewPattern()

	for step := 0; step < 16; step += 2 {
		require.NoError(t, p.SetStep(2, step, true))
	}
	require.NoError(t, p.ClearTrack(2))

	for step := range p.Tracks[2].Steps {
		assert.False(t, p.Tracks[2].Steps[step].Active)
	}
	assert.Error(t, p.ClearTrack(padkit.NumPads))
}
