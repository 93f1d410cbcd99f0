package padkit

import (
	"time"

	"github.com/google/uuid"

	"github.com/beatfold/padkit/engine"
)

// Priority orders allocation requests and live voices for admission and
// stealing decisions. It is comparison-only and never serialized.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the tier name for logs and statistics output.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// engineHint maps the tier onto the hint value forwarded to the engine.
// Critical shares the hint with high; the engine sees no difference.
func (p Priority) engineHint() int {
	switch p {
	case PriorityLow:
		return engine.HintLow
	case PriorityNormal:
		return engine.HintNormal
	default:
		return engine.HintHigh
	}
}

// normalized clamps out-of-range values into the defined tier range.
func (p Priority) normalized() Priority {
	if p < PriorityLow {
		return PriorityLow
	}
	if p > PriorityCritical {
		return PriorityCritical
	}
	return p
}

// LiveStepIndex marks voices triggered by immediate user input rather than
// a sequencer step.
const LiveStepIndex = -1

// voice is one tracked engine voice. Fields other than the active flag are
// never mutated after creation; all access goes through the manager's lock.
type voice struct {
	id        uuid.UUID
	handle    engine.Handle
	padIndex  int
	sampleID  string
	velocity  float64
	mode      engine.PlaybackMode
	stepIndex int
	priority  Priority
	startedAt time.Time
	seq       uint64
	active    bool
}

func (v *voice) age(now time.Time) time.Duration {
	return now.Sub(v.startedAt)
}

// olderThan orders voices by creation time, falling back to insertion
// sequence when two voices share a timestamp.
func (v *voice) olderThan(other *voice) bool {
	if v.startedAt.Equal(other.startedAt) {
		return v.seq < other.seq
	}
	return v.startedAt.Before(other.startedAt)
}

func (v *voice) info(now time.Time) VoiceInfo {
	return VoiceInfo{
		ID:        v.id.String(),
		PadIndex:  v.padIndex,
		SampleID:  v.sampleID,
		Velocity:  v.velocity,
		Mode:      v.mode,
		StepIndex: v.stepIndex,
		Priority:  v.priority,
		StartedAt: v.startedAt,
		Age:       v.age(now),
	}
}

// VoiceInfo is a read-only copy of one tracked voice. Callers never receive
// a reference into the voice table.
type VoiceInfo struct {
	ID        string
	PadIndex  int
	SampleID  string
	Velocity  float64
	Mode      engine.PlaybackMode
	StepIndex int
	Priority  Priority
	StartedAt time.Time
	Age       time.Duration
}
