// Package engine defines the contract between the voice allocation layer
// and the native playback engine that actually renders audio. The allocation
// layer never reaches past this boundary: it requests voices, releases the
// handles it was given, and treats everything behind the interface as opaque.
package engine

// PlaybackMode describes how a triggered sample plays out on a voice.
type PlaybackMode string

const (
	ModeOneShot   PlaybackMode = "one_shot"
	ModeLoop      PlaybackMode = "loop"
	ModeGated     PlaybackMode = "gated"
	ModeSustained PlaybackMode = "sustained"
)

// IsValid reports whether the mode is one of the defined playback modes.
func (m PlaybackMode) IsValid() bool {
	switch m {
	case ModeOneShot, ModeLoop, ModeGated, ModeSustained:
		return true
	}
	return false
}

// Priority hints forwarded to the engine with each allocation request.
// The engine may use them for its own internal scheduling; the allocation
// layer's admission rules never depend on what the engine does with them.
const (
	HintLow    = 0
	HintNormal = 1
	HintHigh   = 2
)

// Handle identifies a voice inside the native engine. Handles are opaque to
// callers; the zero value NoHandle is never a live voice.
type Handle int64

// NoHandle is returned when an allocation request is refused.
const NoHandle Handle = 0

// Request carries the parameters of a single voice allocation.
type Request struct {
	PadIndex     int
	SampleID     string
	Velocity     float64 // 0.0 to 1.0
	Mode         PlaybackMode
	PriorityHint int
}

// Control is the surface the allocation layer drives. Implementations wrap
// the native playback engine; AllocateVoice either starts playback and
// returns a live handle or refuses with an error, and ReleaseVoice stops the
// voice behind a previously returned handle. Both calls are a single
// synchronous round trip.
type Control interface {
	AllocateVoice(req Request) (Handle, error)
	ReleaseVoice(h Handle) error
}
