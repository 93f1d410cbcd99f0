package sequencer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/beatfold/padkit"
)

// Tempo bounds in beats per minute.
const (
	MinTempo = 20
	MaxTempo = 300
)

// Default transport settings.
const (
	DefaultTempo        = 120
	DefaultStepsPerBeat = 4 // sixteenth notes
)

// stepWrap bounds the global step counter. Wrapping at a large value keeps
// polymeters intact where resetting at the master length would not.
const stepWrap = 65536

// TransportConfig holds configuration for transport initialization.
type TransportConfig struct {
	Tempo              int // Beats per minute; defaults to DefaultTempo
	StepsPerBeat       int // Grid resolution; defaults to DefaultStepsPerBeat
	MaxPolyphonyPerPad int // Reconciliation budget on kit changes; defaults to the per-pad ceiling
}

// TransportStats counts what the transport has driven so far.
type TransportStats struct {
	StepsPlayed int64
	Triggers    int64
	Denials     int64
}

// Transport drives pattern playback against a voice manager and pad bank.
// Armed steps on unmuted, sample-assigned pads allocate normal priority
// voices tagged with their step index; live pad hits allocate at high
// priority so background playback cannot starve them. Denied triggers
// simply make no sound.
type Transport struct {
	mgr  *padkit.VoiceManager
	bank *padkit.PadBank

	mu                 sync.RWMutex
	patterns           []*Pattern
	current            int
	next               int
	step               int
	tempo              int
	stepsPerBeat       int
	maxPolyphonyPerPad int
	onStep             func(pattern, step int)

	stepsPlayed atomic.Int64
	triggers    atomic.Int64
	denials     atomic.Int64

	running  atomic.Bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewTransport creates a stopped transport holding one empty pattern.
func NewTransport(mgr *padkit.VoiceManager, bank *padkit.PadBank, config TransportConfig) (*Transport, error) {
	if mgr == nil {
		return nil, errors.New("voice manager is required")
	}
	if bank == nil {
		return nil, errors.New("pad bank is required")
	}

	// Validate Tempo
	if config.Tempo == 0 {
		config.Tempo = DefaultTempo
	} else if config.Tempo < MinTempo || config.Tempo > MaxTempo {
		return nil, errors.Errorf("Tempo must be within [%d,%d] BPM, got %d", MinTempo, MaxTempo, config.Tempo)
	}

	// Validate StepsPerBeat
	if config.StepsPerBeat == 0 {
		config.StepsPerBeat = DefaultStepsPerBeat
	} else if config.StepsPerBeat < 1 || config.StepsPerBeat > 16 {
		return nil, errors.Errorf("StepsPerBeat must be within [1,16], got %d", config.StepsPerBeat)
	}

	if config.MaxPolyphonyPerPad <= 0 {
		config.MaxPolyphonyPerPad = padkit.DefaultPerPadCeiling
	}

	return &Transport{
		mgr:                mgr,
		bank:               bank,
		patterns:           []*Pattern{NewPattern()},
		tempo:              config.Tempo,
		stepsPerBeat:       config.StepsPerBeat,
		maxPolyphonyPerPad: config.MaxPolyphonyPerPad,
	}, nil
}

// Start begins the step clock.
func (t *Transport) Start() error {
	t.mu.Lock()
	if !t.running.CompareAndSwap(false, true) {
		t.mu.Unlock()
		return errors.New("transport is already running")
	}
	t.stopChan = make(chan struct{})
	t.doneChan = make(chan struct{})
	stop, done := t.stopChan, t.doneChan
	t.mu.Unlock()

	go t.run(stop, done)
	return nil
}

// Stop halts the step clock and waits for the playback goroutine to exit.
// Voices already playing are left to drain through release and cleanup;
// stopping only ends new triggers.
func (t *Transport) Stop() error {
	t.mu.Lock()
	if !t.running.CompareAndSwap(true, false) {
		t.mu.Unlock()
		return nil
	}
	stop, done := t.stopChan, t.doneChan
	t.mu.Unlock()

	close(stop)
	<-done
	return nil
}

// IsRunning returns whether the step clock is active.
func (t *Transport) IsRunning() bool {
	return t.running.Load()
}

// run fires steps on a drift-corrected deadline until stopped.
func (t *Transport) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := t.stepDuration()
	deadline := time.Now().Add(interval)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			t.fireStep()

			deadline = deadline.Add(t.stepDuration())
			wait := time.Until(deadline)
			if wait < 0 {
				// Fell behind; realign rather than burst
				deadline = time.Now().Add(t.stepDuration())
				wait = time.Until(deadline)
			}
			timer.Reset(wait)
		}
	}
}

// stepDuration derives the step interval from the current tempo.
func (t *Transport) stepDuration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return time.Minute / time.Duration(t.tempo*t.stepsPerBeat)
}

// fireStep advances the clock one step and triggers every armed step.
func (t *Transport) fireStep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	pat := t.patterns[t.current]
	masterLen := pat.MasterLength()

	// Pattern switch at master length boundary
	if t.step%masterLen == 0 {
		t.current = t.next
		pat = t.patterns[t.current]
	}

	for trackIdx := range pat.Tracks {
		track := &pat.Tracks[trackIdx]
		// Each track loops at its own length (polymeters)
		trackStep := t.step % track.Length
		s := track.Steps[trackStep]
		if !s.Active {
			continue
		}

		pad, ok := t.bank.GetPad(trackIdx)
		if !ok || !pad.HasSample() || pad.Muted {
			continue
		}

		_, allocated := t.mgr.Allocate(padkit.AllocateRequest{
			PadIndex:  trackIdx,
			SampleID:  pad.SampleID,
			Velocity:  s.Velocity,
			Mode:      pad.Mode,
			StepIndex: trackStep,
			Priority:  padkit.PriorityNormal,
		})
		if allocated {
			t.triggers.Add(1)
		} else {
			t.denials.Add(1)
		}
	}

	if t.onStep != nil {
		t.onStep(t.current, t.step%masterLen)
	}

	t.stepsPlayed.Add(1)
	// Keep counting past the master length so polymeters stay aligned
	t.step = (t.step + 1) % stepWrap
}

// TriggerPad fires a pad immediately at high priority. Velocity at or below
// zero falls back to the pad's default. Returns the voice id for gated pads
// so the caller can release on pad-up.
func (t *Transport) TriggerPad(padIndex int, velocity float64) (string, bool) {
	pad, ok := t.bank.GetPad(padIndex)
	if !ok || !pad.HasSample() || pad.Muted {
		t.denials.Add(1)
		return "", false
	}
	if velocity <= 0 {
		velocity = pad.Velocity
	}

	voiceID, allocated := t.mgr.Allocate(padkit.AllocateRequest{
		PadIndex:  padIndex,
		SampleID:  pad.SampleID,
		Velocity:  velocity,
		Mode:      pad.Mode,
		StepIndex: padkit.LiveStepIndex,
		Priority:  padkit.PriorityHigh,
	})
	if allocated {
		t.triggers.Add(1)
	} else {
		t.denials.Add(1)
	}
	return voiceID, allocated
}

// ReleasePad releases a voice previously returned by TriggerPad. Used as
// the pad-up half of gated playback.
func (t *Transport) ReleasePad(voiceID string) {
	t.mgr.Release(voiceID)
}

// Panic silences everything immediately.
func (t *Transport) Panic() {
	t.mgr.ReleaseAll()
}

// ApplyKit loads the kit into the pad bank and reconciles live voices
// against the new sample assignment.
func (t *Transport) ApplyKit(kit padkit.Kit) {
	t.mu.RLock()
	budget := t.maxPolyphonyPerPad
	t.mu.RUnlock()

	t.bank.ApplyKit(kit)
	t.mgr.PrepareForPatternPlayback(t.bank.SampleMap(), budget)
}

// AddPattern appends a pattern and returns its index. A nil pattern adds an
// empty one; track lengths are clamped into [1, MaxSteps] since hand-built
// patterns may carry unset lengths.
func (t *Transport) AddPattern(p *Pattern) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p == nil {
		p = NewPattern()
	}
	for i := range p.Tracks {
		if p.Tracks[i].Length < 1 {
			p.Tracks[i].Length = DefaultTrackLength
		} else if p.Tracks[i].Length > MaxSteps {
			p.Tracks[i].Length = MaxSteps
		}
	}
	t.patterns = append(t.patterns, p)
	return len(t.patterns) - 1
}

// PatternCount returns the number of patterns the transport holds.
func (t *Transport) PatternCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.patterns)
}

// QueuePattern queues a pattern switch for the next master length boundary
// and returns the playing and queued indexes.
func (t *Transport) QueuePattern(p int) (current, next int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p >= 0 && p < len(t.patterns) {
		t.next = p
	}
	return t.current, t.next
}

// GetPatternState returns the playing and queued pattern indexes.
func (t *Transport) GetPatternState() (current, next int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current, t.next
}

// GetStep returns the global step counter.
func (t *Transport) GetStep() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.step
}

// SetTempo sets the tempo, clamped into [MinTempo, MaxTempo]. Takes effect
// from the next step.
func (t *Transport) SetTempo(bpm int) {
	if bpm < MinTempo {
		bpm = MinTempo
	} else if bpm > MaxTempo {
		bpm = MaxTempo
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.tempo = bpm
}

// GetTempo returns the tempo in beats per minute.
func (t *Transport) GetTempo() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tempo
}

// SetStepHook registers a callback invoked after each step fires, with the
// playing pattern index and its position within the master length. The
// callback runs on the playback goroutine; keep it fast and do not call
// back into the transport from it.
func (t *Transport) SetStepHook(fn func(pattern, step int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStep = fn
}

// SetStep arms or clears a step in the given pattern.
func (t *Transport) SetStep(patternIdx, track, step int, active bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if patternIdx < 0 || patternIdx >= len(t.patterns) {
		return errors.Errorf("pattern %d out of range [0,%d)", patternIdx, len(t.patterns))
	}
	return t.patterns[patternIdx].SetStep(track, step, active)
}

// SetStepVelocity sets a step's velocity in the given pattern.
func (t *Transport) SetStepVelocity(patternIdx, track, step int, velocity float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if patternIdx < 0 || patternIdx >= len(t.patterns) {
		return errors.Errorf("pattern %d out of range [0,%d)", patternIdx, len(t.patterns))
	}
	return t.patterns[patternIdx].SetStepVelocity(track, step, velocity)
}

// SetTrackLength sets a track's loop length in the given pattern.
func (t *Transport) SetTrackLength(patternIdx, track, length int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if patternIdx < 0 || patternIdx >= len(t.patterns) {
		return errors.Errorf("pattern %d out of range [0,%d)", patternIdx, len(t.patterns))
	}
	return t.patterns[patternIdx].SetTrackLength(track, length)
}

// GetStats returns trigger and step counts.
func (t *Transport) GetStats() TransportStats {
	return TransportStats{
		StepsPlayed: t.stepsPlayed.Load(),
		Triggers:    t.triggers.Load(),
		Denials:     t.denials.Load(),
	}
}
