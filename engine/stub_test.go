package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest(pad int) Request {
	return Request{
		PadIndex:     pad,
		SampleID:     "909_kick",
		Velocity:     0.8,
		Mode:         ModeOneShot,
		PriorityHint: HintNormal,
	}
}

func TestStubAllocateAndRelease(t *testing.T) {
	stub := NewStubControl(4)

	h, err := stub.AllocateVoice(validRequest(0))
	require.NoError(t, err)
	require.NotEqual(t, NoHandle, h)
	assert.True(t, stub.Holds(h))
	assert.Equal(t, 1, stub.ActiveCount())

	req, ok := stub.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "909_kick", req.SampleID)

	require.NoError(t, stub.ReleaseVoice(h))
	assert.False(t, stub.Holds(h))
	assert.Equal(t, 0, stub.ActiveCount())

	counts := stub.Counts()
	assert.Equal(t, int64(1), counts.Allocated)
	assert.Equal(t, int64(1), counts.Released)
	assert.Equal(t, int64(0), counts.Refused)
}

func TestStubRefusesAtCapacity(t *testing.T) {
	stub := NewStubControl(2)

	_, err := stub.AllocateVoice(validRequest(0))
	require.NoError(t, err)
	_, err = stub.AllocateVoice(validRequest(1))
	require.NoError(t, err)

	_, err = stub.AllocateVoice(validRequest(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no free voices")
	assert.Equal(t, int64(1), stub.Counts().Refused)
}

func TestStubValidatesRequests(t *testing.T) {
	stub := NewStubControl(4)

	tests := []struct {
		name string
		req  Request
	}{
		{"EmptySample", Request{PadIndex: 0, Mode: ModeOneShot, Velocity: 0.5}},
		{"NegativePad", Request{PadIndex: -2, SampleID: "kick", Mode: ModeOneShot, Velocity: 0.5}},
		{"UnknownMode", Request{PadIndex: 0, SampleID: "kick", Mode: "granular", Velocity: 0.5}},
		{"VelocityTooHigh", Request{PadIndex: 0, SampleID: "kick", Mode: ModeOneShot, Velocity: 1.5}},
		{"VelocityNegative", Request{PadIndex: 0, SampleID: "kick", Mode: ModeOneShot, Velocity: -0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := stub.AllocateVoice(tt.req)
			assert.Error(t, err)
			assert.Equal(t, NoHandle, h)
		})
	}
	assert.Equal(t, 0, stub.ActiveCount())
}

func TestStubReleaseOfUnknownHandle(t *testing.T) {
	stub := NewStubControl(4)

	err := stub.ReleaseVoice(Handle(99))
	require.Error(t, err)
	assert.Equal(t, int64(1), stub.Counts().BadReleases)

	h, err := stub.AllocateVoice(validRequest(0))
	require.NoError(t, err)
	require.NoError(t, stub.ReleaseVoice(h))
	assert.Error(t, stub.ReleaseVoice(h), "double release must be visible")
	assert.Equal(t, int64(2), stub.Counts().BadReleases)
}

func TestStubInjectedFailures(t *testing.T) {
	stub := NewStubControl(4)

	stub.FailAllocations(2)
	for i := 0; i < 2; i++ {
		_, err := stub.AllocateVoice(validRequest(0))
		assert.Error(t, err)
	}
	_, err := stub.AllocateVoice(validRequest(0))
	assert.NoError(t, err, "injected failures must clear after n attempts")

	stub.FailReleases(1)
	h, err := stub.AllocateVoice(validRequest(1))
	require.NoError(t, err)
	assert.Error(t, stub.ReleaseVoice(h))
	assert.False(t, stub.Holds(h), "a failed release still drops the voice")
}

func TestStubInjectedPanic(t *testing.T) {
	stub := NewStubControl(4)
	stub.PanicOnNextAllocate()

	assert.Panics(t, func() {
		_, _ = stub.AllocateVoice(validRequest(0))
	})

	_, err := stub.AllocateVoice(validRequest(0))
	assert.NoError(t, err, "the panic trigger must not stick")
}

func TestStubActiveRequests(t *testing.T) {
	stub := NewStubControl(8)

	for pad := 0; pad < 3; pad++ {
		_, err := stub.AllocateVoice(validRequest(pad))
		require.NoError(t, err)
	}

	reqs := stub.ActiveRequests()
	require.Len(t, reqs, 3)
	pads := make(map[int]bool)
	for _, req := range reqs {
		pads[req.PadIndex] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, pads)
}

func TestPlaybackModeValidation(t *testing.T) {
	for _, mode := range []PlaybackMode{ModeOneShot, ModeLoop, ModeGated, ModeSustained} {
		assert.True(t, mode.IsValid(), "mode %q", mode)
	}
	assert.False(t, PlaybackMode("").IsValid())
	assert.False(t, PlaybackMode("reverse").IsValid())
}

func TestDefaultCapacityFallback(t *testing.T) {
	stub := NewStubControl(0)
	for i := 0; i < DefaultStubCapacity; i++ {
		_, err := stub.AllocateVoice(validRequest(i))
		require.NoError(t, err)
	}
	_, err := stub.AllocateVoice(validRequest(0))
	assert.Error(t, err)
}
