// Package sequencer drives pattern-based and live triggering on top of the
// voice allocation layer. It owns the step clock and pattern data; which
// voices actually get to play remains the voice manager's decision.
package sequencer

import (
	"github.com/pkg/errors"

	"github.com/beatfold/padkit"
)

const (
	// MaxSteps is the longest track length.
	MaxSteps = 32
	// DefaultTrackLength is the initial length of every track.
	DefaultTrackLength = 16
	// DefaultStepVelocity is the velocity of a freshly created step.
	DefaultStepVelocity = 0.8
)

// Step is one cell of a track.
type Step struct {
	Active   bool
	Velocity float64 // 0.0 to 1.0
}

// Track is the step row of one pad. Each track loops at its own length, so
// tracks of different lengths run as polymeters against each other.
type Track struct {
	Steps  [MaxSteps]Step
	Length int // 1 to MaxSteps
}

// Pattern is a full grid of tracks, one per pad. A pattern is plain data
// with no locking; once handed to a transport, edit it through the
// transport's methods.
type Pattern struct {
	Tracks [padkit.NumPads]Track
}

// NewPattern returns a pattern with every track at the default length and
// step velocity, no steps armed.
func NewPattern() *Pattern {
	p := &Pattern{}
	for t := range p.Tracks {
		p.Tracks[t].Length = DefaultTrackLength
		for s := range p.Tracks[t].Steps {
			p.Tracks[t].Steps[s].Velocity = DefaultStepVelocity
		}
	}
	return p
}

// MasterLength returns the longest track length. Queued pattern switches
// take effect at this boundary.
func (p *Pattern) MasterLength() int {
	max := 1
	for i := range p.Tracks {
		if p.Tracks[i].Length > max {
			max = p.Tracks[i].Length
		}
	}
	return max
}

// SetStep arms or clears a step.
func (p *Pattern) SetStep(track, step int, active bool) error {
	if err := checkCell(track, step); err != nil {
		return err
	}
	p.Tracks[track].Steps[step].Active = active
	return nil
}

// SetStepVelocity sets a step's velocity, clamped into [0, 1].
func (p *Pattern) SetStepVelocity(track, step int, velocity float64) error {
	if err := checkCell(track, step); err != nil {
		return err
	}
	if velocity < 0 {
		velocity = 0
	} else if velocity > 1 {
		velocity = 1
	}
	p.Tracks[track].Steps[step].Velocity = velocity
	return nil
}

// SetTrackLength sets how many steps a track loops over.
func (p *Pattern) SetTrackLength(track, length int) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	if length < 1 || length > MaxSteps {
		return errors.Errorf("track length %d out of range [1,%d]", length, MaxSteps)
	}
	p.Tracks[track].Length = length
	return nil
}

// ClearTrack disarms every step of a track.
func (p *Pattern) ClearTrack(track int) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	for s := range p.Tracks[track].Steps {
		p.Tracks[track].Steps[s].Active = false
	}
	return nil
}

func checkTrack(track int) error {
	if track < 0 || track >= padkit.NumPads {
		return errors.Errorf("track %d out of range [0,%d)", track, padkit.NumPads)
	}
	return nil
}

func checkCell(track, step int) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	if step < 0 || step >= MaxSteps {
		return errors.Errorf("step %d out of range [0,%d)", step, MaxSteps)
	}
	return nil
}
