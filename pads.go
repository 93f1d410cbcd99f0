package padkit

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/beatfold/padkit/engine"
)

// NumPads is the size of the pad grid.
const NumPads = 16

// DefaultPadVelocity is the trigger velocity of a freshly initialized pad.
const DefaultPadVelocity = 0.8

// Pad is the configuration of one grid pad: which sample it triggers, how
// that sample plays, and the default velocity for live hits.
type Pad struct {
	Index    int
	SampleID string
	Mode     engine.PlaybackMode
	Velocity float64
	Muted    bool
}

// HasSample reports whether a sample is assigned to the pad.
func (p Pad) HasSample() bool { return p.SampleID != "" }

// PadBank is the fixed grid of pads that live input and pattern playback
// trigger against. Safe for concurrent use.
type PadBank struct {
	mu   sync.RWMutex
	pads [NumPads]Pad
}

// NewPadBank returns a bank of NumPads unassigned one-shot pads.
func NewPadBank() *PadBank {
	b := &PadBank{}
	for i := range b.pads {
		b.pads[i] = Pad{
			Index:    i,
			Mode:     engine.ModeOneShot,
			Velocity: DefaultPadVelocity,
		}
	}
	return b
}

func checkPadIndex(padIndex int) error {
	if padIndex < 0 || padIndex >= NumPads {
		return errors.Errorf("pad index %d out of range [0,%d)", padIndex, NumPads)
	}
	return nil
}

// SetSample assigns a sample to the pad. An empty id clears the assignment.
func (b *PadBank) SetSample(padIndex int, sampleID string) error {
	if err := checkPadIndex(padIndex); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pads[padIndex].SampleID = sampleID
	return nil
}

// ClearSample removes the pad's sample assignment.
func (b *PadBank) ClearSample(padIndex int) error {
	return b.SetSample(padIndex, "")
}

// SetMode sets the pad's playback mode.
func (b *PadBank) SetMode(padIndex int, mode engine.PlaybackMode) error {
	if err := checkPadIndex(padIndex); err != nil {
		return err
	}
	if !mode.IsValid() {
		return errors.Errorf("unknown playback mode %q", mode)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pads[padIndex].Mode = mode
	return nil
}

// SetVelocity sets the pad's default trigger velocity, clamped into [0, 1].
func (b *PadBank) SetVelocity(padIndex int, velocity float64) error {
	if err := checkPadIndex(padIndex); err != nil {
		return err
	}
	if velocity < 0 {
		velocity = 0
	} else if velocity > 1 {
		velocity = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pads[padIndex].Velocity = velocity
	return nil
}

// SetMuted sets the pad's mute state. Muting stops future triggers only;
// voices already playing keep running.
func (b *PadBank) SetMuted(padIndex int, muted bool) error {
	if err := checkPadIndex(padIndex); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pads[padIndex].Muted = muted
	return nil
}

// GetPad returns a copy of the pad's configuration.
func (b *PadBank) GetPad(padIndex int) (Pad, bool) {
	if checkPadIndex(padIndex) != nil {
		return Pad{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pads[padIndex], true
}

// ListPads returns copies of all pads in grid order.
func (b *PadBank) ListPads() []Pad {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pads := make([]Pad, NumPads)
	copy(pads, b.pads[:])
	return pads
}

// SampleMap returns padIndex to sampleID for every pad with a sample
// assigned, in the shape PrepareForPatternPlayback consumes. Muted pads are
// included; muting suppresses triggers, not existing voices.
func (b *PadBank) SampleMap() map[int]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	samples := make(map[int]string)
	for i := range b.pads {
		if b.pads[i].SampleID != "" {
			samples[i] = b.pads[i].SampleID
		}
	}
	return samples
}

// ApplyKit assigns the kit's samples across the grid. Slots the kit leaves
// empty are cleared; modes, velocities and mute states are untouched.
func (b *PadBank) ApplyKit(kit Kit) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.pads {
		b.pads[i].SampleID = kit.Samples[i]
	}
}
