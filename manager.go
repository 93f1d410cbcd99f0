package padkit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/beatfold/padkit/engine"
)

// AllocateRequest carries the parameters of one voice allocation. Priority
// defaults to PriorityNormal and Mode to one-shot; velocity is clamped into
// [0, 1]. StepIndex is kept for traceability only and is not forwarded to
// the engine; live triggers should pass LiveStepIndex.
type AllocateRequest struct {
	PadIndex  int
	SampleID  string
	Velocity  float64
	Mode      engine.PlaybackMode
	StepIndex int
	Priority  Priority
}

// lifetimeCounters accumulate across the life of a manager, guarded by mu.
type lifetimeCounters struct {
	allocated uint64
	stolen    uint64
	denied    uint64
	released  uint64
}

// VoiceManager tracks a bounded pool of concurrent playback voices mapped to
// pads, enforces global and per-pad polyphony ceilings, steals lower-value
// voices under pressure, and reclaims stale voices in the background. Sound
// production itself is delegated to an engine.Control; the manager only
// decides which voices may exist.
//
// All mutating operations are serialized behind a single write lock, so
// concurrent allocate/release calls are linearized and the voice table and
// pad index can never tear. Failures never propagate to callers: a failed
// allocation returns no voice, a failed release is silent, and everything
// else flows into the configured ErrorHandler.
type VoiceManager struct {
	// Core identity (UUID hybrid pattern)
	id   uuid.UUID
	name string

	// Core state
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	closed      bool
	maintenance *Maintenance

	// Voice tracking (string keys from the UUID hybrid pattern)
	voices    map[string]*voice
	padVoices map[int]map[string]struct{}
	nextSeq   uint64

	// External engine boundary
	control engine.Control

	// Configuration (validated at construction)
	globalCeiling   int
	perPadCeiling   int
	voiceTimeout    time.Duration
	cleanupInterval time.Duration

	// Error boundary
	errorHandler ErrorHandler

	// Lifetime counters, guarded by mu
	counters lifetimeCounters

	// Snapshot observers
	subMu       sync.RWMutex
	subscribers map[int]chan Snapshot
	nextSubID   int
	subsClosed  bool

	// Clock source, fixed at construction
	now func() time.Time
}

// NewVoiceManager creates a voice manager bound to the given engine control
// and starts its background cleanup loop.
func NewVoiceManager(control engine.Control, config Config) (*VoiceManager, error) {
	m, err := newVoiceManager(control, config, time.Now)
	if err != nil {
		return nil, err
	}

	if err := m.maintenance.Start(); err != nil {
		m.cancel()
		return nil, errors.Wrap(err, "failed to start cleanup loop")
	}
	return m, nil
}

// newVoiceManager validates the configuration and builds a manager without
// starting the cleanup loop.
func newVoiceManager(control engine.Control, config Config, now func() time.Time) (*VoiceManager, error) {
	if control == nil {
		return nil, errors.New("engine control is required")
	}

	// Validate GlobalVoiceCeiling
	if config.GlobalVoiceCeiling <= 0 {
		config.GlobalVoiceCeiling = DefaultGlobalVoiceCeiling
	} else if config.GlobalVoiceCeiling > 1024 {
		return nil, errors.Errorf("GlobalVoiceCeiling cannot exceed 1024, got %d", config.GlobalVoiceCeiling)
	}

	// Validate PerPadCeiling
	if config.PerPadCeiling <= 0 {
		config.PerPadCeiling = DefaultPerPadCeiling
	} else if config.PerPadCeiling > config.GlobalVoiceCeiling {
		return nil, errors.Errorf("PerPadCeiling cannot exceed GlobalVoiceCeiling %d, got %d",
			config.GlobalVoiceCeiling, config.PerPadCeiling)
	}

	// Validate VoiceTimeout
	if config.VoiceTimeout <= 0 {
		config.VoiceTimeout = DefaultVoiceTimeout
	} else if config.VoiceTimeout < time.Second {
		return nil, errors.Errorf("VoiceTimeout must be at least 1s, got %v", config.VoiceTimeout)
	}

	// Validate CleanupInterval
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	} else if config.CleanupInterval < 10*time.Millisecond {
		return nil, errors.Errorf("CleanupInterval must be at least 10ms, got %v", config.CleanupInterval)
	}

	if config.ErrorHandler == nil {
		config.ErrorHandler = &DefaultErrorHandler{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &VoiceManager{
		id:              uuid.New(),
		name:            "Voice Manager",
		ctx:             ctx,
		cancel:          cancel,
		voices:          make(map[string]*voice),
		padVoices:       make(map[int]map[string]struct{}),
		control:         control,
		globalCeiling:   config.GlobalVoiceCeiling,
		perPadCeiling:   config.PerPadCeiling,
		voiceTimeout:    config.VoiceTimeout,
		cleanupInterval: config.CleanupInterval,
		errorHandler:    config.ErrorHandler,
		subscribers:     make(map[int]chan Snapshot),
		now:             now,
	}

	m.maintenance = newMaintenance(m, config.CleanupInterval)

	return m, nil
}

// Allocate admits, steals for, or denies one voice. On success it returns
// the new voice id; on any failure it returns no voice, never an error.
// Safe to call repeatedly regardless of outcome.
func (m *VoiceManager) Allocate(req AllocateRequest) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.counters.denied++
		return "", false
	}
	if req.PadIndex < 0 {
		m.counters.denied++
		m.errorHandler.HandleError(errors.Errorf("allocate: negative pad index %d", req.PadIndex))
		return "", false
	}
	if req.SampleID == "" {
		m.counters.denied++
		m.errorHandler.HandleError(errors.Errorf("allocate: empty sample id for pad %d", req.PadIndex))
		return "", false
	}
	if req.Mode == "" {
		req.Mode = engine.ModeOneShot
	}
	if !req.Mode.IsValid() {
		m.counters.denied++
		m.errorHandler.HandleError(errors.Errorf("allocate: unknown playback mode %q", req.Mode))
		return "", false
	}
	if req.Velocity < 0 {
		req.Velocity = 0
	} else if req.Velocity > 1 {
		req.Velocity = 1
	}
	req.Priority = req.Priority.normalized()

	stole := false
	if !m.canAllocateLocked(req.PadIndex, req.Priority) {
		if !m.stealLocked(req.PadIndex, req.Priority) {
			m.counters.denied++
			return "", false
		}
		stole = true
	}

	handle, err := m.allocateEngineVoice(engine.Request{
		PadIndex:     req.PadIndex,
		SampleID:     req.SampleID,
		Velocity:     req.Velocity,
		Mode:         req.Mode,
		PriorityHint: req.Priority.engineHint(),
	})
	if err != nil {
		m.counters.denied++
		m.errorHandler.HandleError(errors.Wrapf(err, "engine refused voice for pad %d", req.PadIndex))
		if stole {
			m.publishLocked()
		}
		return "", false
	}

	m.nextSeq++
	v := &voice{
		id:        uuid.New(),
		handle:    handle,
		padIndex:  req.PadIndex,
		sampleID:  req.SampleID,
		velocity:  req.Velocity,
		mode:      req.Mode,
		stepIndex: req.StepIndex,
		priority:  req.Priority,
		startedAt: m.now(),
		seq:       m.nextSeq,
		active:    true,
	}

	key := v.id.String()
	m.voices[key] = v
	set, ok := m.padVoices[v.padIndex]
	if !ok {
		set = make(map[string]struct{})
		m.padVoices[v.padIndex] = set
	}
	set[key] = struct{}{}

	m.counters.allocated++
	m.publishLocked()
	return key, true
}

// canAllocateLocked applies the admission rules. At the global ceiling only
// high and critical requests are admitted without eviction; at the per-pad
// ceiling only priorities above normal are. Everything else goes through
// stealing.
func (m *VoiceManager) canAllocateLocked(padIndex int, p Priority) bool {
	if len(m.voices) >= m.globalCeiling {
		return p >= PriorityHigh
	}
	if len(m.padVoices[padIndex]) >= m.perPadCeiling {
		return p > PriorityNormal
	}
	return true
}

// stealLocked evicts at most one voice to make room for a request that
// failed admission. A pad retriggering itself gives up its own oldest voice
// first; otherwise the lowest-priority, oldest voice below the requested
// tier is taken. Returns false when no eligible victim exists.
func (m *VoiceManager) stealLocked(padIndex int, p Priority) bool {
	victim := m.oldestOnPadLocked(padIndex)
	if victim == nil {
		victim = m.weakestVictimLocked(p)
	}
	if victim == nil {
		return false
	}

	if err := m.releaseVoiceLocked(victim); err != nil {
		m.errorHandler.HandleError(err)
	}
	m.counters.stolen++
	return true
}

// oldestOnPadLocked returns the oldest voice owned by the pad, or nil when
// the pad owns none.
func (m *VoiceManager) oldestOnPadLocked(padIndex int) *voice {
	var oldest *voice
	for key := range m.padVoices[padIndex] {
		v, ok := m.voices[key]
		if !ok {
			m.errorHandler.HandleError(errors.Errorf("pad %d references unknown voice %s", padIndex, key))
			continue
		}
		if oldest == nil || v.olderThan(oldest) {
			oldest = v
		}
	}
	return oldest
}

// weakestVictimLocked returns the best steal candidate among voices with
// strictly lower priority than p: lowest tier first, oldest within a tier.
func (m *VoiceManager) weakestVictimLocked(p Priority) *voice {
	var best *voice
	for _, v := range m.voices {
		if v.priority >= p {
			continue
		}
		if best == nil || v.priority < best.priority ||
			(v.priority == best.priority && v.olderThan(best)) {
			best = v
		}
	}
	return best
}

// Release removes the voice and releases its engine handle. Releasing an
// unknown or already released id is a no-op.
func (m *VoiceManager) Release(voiceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.voices[voiceID]
	if !ok {
		return
	}
	if err := m.releaseVoiceLocked(v); err != nil {
		m.errorHandler.HandleError(err)
	}
	m.publishLocked()
}

// ReleaseAllForPad releases every voice currently owned by the pad. Safe to
// call on a pad with no active voices.
func (m *VoiceManager) ReleaseAllForPad(padIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.releasePadLocked(padIndex) > 0 {
		m.publishLocked()
	}
}

// ReleaseAll releases every tracked voice. Used for a full reset ("panic");
// the manager stays usable afterwards.
func (m *VoiceManager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	released := 0
	for _, v := range m.collectVoicesLocked() {
		if err := m.releaseVoiceLocked(v); err != nil {
			m.errorHandler.HandleError(err)
		}
		released++
	}
	if released > 0 {
		m.publishLocked()
	}
}

// PrepareForPatternPlayback reconciles live voices against a new pattern or
// sample assignment: pads absent from padSamples lose all their voices, and
// pads holding more than maxPolyphonyPerPad voices are trimmed oldest-first
// down to the budget.
func (m *VoiceManager) PrepareForPatternPlayback(padSamples map[int]string, maxPolyphonyPerPad int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if maxPolyphonyPerPad < 0 {
		maxPolyphonyPerPad = 0
	}

	released := 0

	for _, pad := range m.padIndexesLocked() {
		if _, ok := padSamples[pad]; !ok {
			released += m.releasePadLocked(pad)
		}
	}

	for _, pad := range m.padIndexesLocked() {
		excess := len(m.padVoices[pad]) - maxPolyphonyPerPad
		if excess <= 0 {
			continue
		}
		vs := m.padVoicesOldestFirstLocked(pad)
		for i := 0; i < excess && i < len(vs); i++ {
			if err := m.releaseVoiceLocked(vs[i]); err != nil {
				m.errorHandler.HandleError(err)
			}
			released++
		}
	}

	if released > 0 {
		m.publishLocked()
	}
}

// releasePadLocked releases every voice owned by the pad and returns how
// many were released.
func (m *VoiceManager) releasePadLocked(padIndex int) int {
	keys := make([]string, 0, len(m.padVoices[padIndex]))
	for key := range m.padVoices[padIndex] {
		keys = append(keys, key)
	}

	released := 0
	for _, key := range keys {
		v, ok := m.voices[key]
		if !ok {
			m.errorHandler.HandleError(errors.Errorf("pad %d references unknown voice %s", padIndex, key))
			delete(m.padVoices[padIndex], key)
			continue
		}
		if err := m.releaseVoiceLocked(v); err != nil {
			m.errorHandler.HandleError(err)
		}
		released++
	}
	if set, ok := m.padVoices[padIndex]; ok && len(set) == 0 {
		delete(m.padVoices, padIndex)
	}
	return released
}

// releaseVoiceLocked removes the voice from the table and the pad index,
// then releases its engine handle. The returned error is the engine's; the
// local bookkeeping has already succeeded by then.
func (m *VoiceManager) releaseVoiceLocked(v *voice) error {
	key := v.id.String()
	delete(m.voices, key)
	m.removePadMembershipLocked(key, v.padIndex)
	v.active = false
	m.counters.released++

	if err := m.releaseEngineVoice(v.handle); err != nil {
		return errors.Wrapf(err, "engine release failed for voice %s", key)
	}
	return nil
}

// removePadMembershipLocked drops the voice from its pad's set, deleting the
// set when it empties. A missing membership is reported but never fatal.
func (m *VoiceManager) removePadMembershipLocked(key string, padIndex int) {
	set, ok := m.padVoices[padIndex]
	if !ok {
		m.errorHandler.HandleError(errors.Errorf("pad %d has no voice set while releasing voice %s", padIndex, key))
		return
	}
	if _, ok := set[key]; !ok {
		m.errorHandler.HandleError(errors.Errorf("voice %s missing from pad %d voice set", key, padIndex))
	}
	delete(set, key)
	if len(set) == 0 {
		delete(m.padVoices, padIndex)
	}
}

// collectVoicesLocked returns all tracked voices as a slice so callers can
// release while iterating.
func (m *VoiceManager) collectVoicesLocked() []*voice {
	vs := make([]*voice, 0, len(m.voices))
	for _, v := range m.voices {
		vs = append(vs, v)
	}
	return vs
}

// padIndexesLocked returns the pads currently owning voices.
func (m *VoiceManager) padIndexesLocked() []int {
	pads := make([]int, 0, len(m.padVoices))
	for pad := range m.padVoices {
		pads = append(pads, pad)
	}
	return pads
}

// padVoicesOldestFirstLocked returns the pad's voices ordered oldest first.
func (m *VoiceManager) padVoicesOldestFirstLocked(padIndex int) []*voice {
	vs := make([]*voice, 0, len(m.padVoices[padIndex]))
	for key := range m.padVoices[padIndex] {
		if v, ok := m.voices[key]; ok {
			vs = append(vs, v)
		}
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].olderThan(vs[j]) })
	return vs
}

// allocateEngineVoice calls the engine, converting a panic into an error.
func (m *VoiceManager) allocateEngineVoice(req engine.Request) (h engine.Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h = engine.NoHandle
			err = errors.Errorf("engine allocate panicked: %v", r)
		}
	}()
	return m.control.AllocateVoice(req)
}

// releaseEngineVoice calls the engine, converting a panic into an error.
func (m *VoiceManager) releaseEngineVoice(handle engine.Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("engine release panicked: %v", r)
		}
	}()
	return m.control.ReleaseVoice(handle)
}

// Close stops the background cleanup loop, releases every tracked voice and
// closes subscriber channels. Idempotent; the manager accepts no further
// allocations afterwards.
func (m *VoiceManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	if err := m.maintenance.Stop(); err != nil {
		m.errorHandler.HandleError(err)
	}
	m.ReleaseAll()
	m.closeSubscribers()
	return nil
}

// UUID Helper Methods (following hybrid pattern)

// GetID returns the manager's UUID
func (m *VoiceManager) GetID() uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

// GetIDString returns the manager's UUID as string
func (m *VoiceManager) GetIDString() string {
	return m.GetID().String()
}

// GetName returns the manager name
func (m *VoiceManager) GetName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

// SetName sets the manager name
func (m *VoiceManager) SetName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
}

// IsClosed reports whether Close has been called.
func (m *VoiceManager) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// GetVoice returns a copy of the tracked voice with the given id.
func (m *VoiceManager) GetVoice(voiceID string) (VoiceInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.voices[voiceID]
	if !ok {
		return VoiceInfo{}, false
	}
	return v.info(m.now()), true
}

// ListVoices returns copies of all tracked voices, unordered.
func (m *VoiceManager) ListVoices() []VoiceInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	infos := make([]VoiceInfo, 0, len(m.voices))
	for _, v := range m.voices {
		infos = append(infos, v.info(now))
	}
	return infos
}

// GetActiveVoiceCount returns the number of tracked voices.
func (m *VoiceManager) GetActiveVoiceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.voices)
}

// GetPadVoiceCount returns the number of voices owned by the pad.
func (m *VoiceManager) GetPadVoiceCount(padIndex int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.padVoices[padIndex])
}

// GetMaintenance returns the background cleanup loop for external access
func (m *VoiceManager) GetMaintenance() *Maintenance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maintenance
}

// GetConfiguration returns the validated configuration in effect.
func (m *VoiceManager) GetConfiguration() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Config{
		GlobalVoiceCeiling: m.globalCeiling,
		PerPadCeiling:      m.perPadCeiling,
		VoiceTimeout:       m.voiceTimeout,
		CleanupInterval:    m.cleanupInterval,
		ErrorHandler:       m.errorHandler,
	}
}
