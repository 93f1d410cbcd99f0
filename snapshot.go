package padkit

import (
	"time"

	"github.com/beatfold/padkit/engine"
)

// Snapshot is the derived aggregate view of the voice table, recomputed and
// republished to subscribers after every mutation. It has no identity of its
// own and is always a pure function of the table.
type Snapshot struct {
	ActiveVoices int
	PerPriority  map[Priority]int
	PerPad       map[int]int
	AverageAge   time.Duration
	Timestamp    time.Time
}

// Statistics extends the snapshot with per-mode breakdowns, the oldest
// voice age and lifetime counters.
type Statistics struct {
	ActiveVoices int
	PerPriority  map[Priority]int
	PerPad       map[int]int
	PerMode      map[engine.PlaybackMode]int
	AverageAge   time.Duration
	OldestAge    time.Duration

	AllocatedTotal uint64
	StolenTotal    uint64
	DeniedTotal    uint64
	ReleasedTotal  uint64
}

// snapshotLocked computes the aggregate view under the manager lock.
func (m *VoiceManager) snapshotLocked() Snapshot {
	now := m.now()
	snap := Snapshot{
		ActiveVoices: len(m.voices),
		PerPriority:  make(map[Priority]int),
		PerPad:       make(map[int]int),
		Timestamp:    now,
	}

	var totalAge time.Duration
	for _, v := range m.voices {
		snap.PerPriority[v.priority]++
		snap.PerPad[v.padIndex]++
		totalAge += v.age(now)
	}
	if len(m.voices) > 0 {
		snap.AverageAge = totalAge / time.Duration(len(m.voices))
	}
	return snap
}

// GetSnapshot returns the current aggregate view.
func (m *VoiceManager) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// GetStatistics returns counts, per-priority and per-mode breakdowns, voice
// ages and lifetime counters. Pure read; never mutates state.
func (m *VoiceManager) GetStatistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	stats := Statistics{
		ActiveVoices:   len(m.voices),
		PerPriority:    make(map[Priority]int),
		PerPad:         make(map[int]int),
		PerMode:        make(map[engine.PlaybackMode]int),
		AllocatedTotal: m.counters.allocated,
		StolenTotal:    m.counters.stolen,
		DeniedTotal:    m.counters.denied,
		ReleasedTotal:  m.counters.released,
	}

	var totalAge time.Duration
	for _, v := range m.voices {
		age := v.age(now)
		stats.PerPriority[v.priority]++
		stats.PerPad[v.padIndex]++
		stats.PerMode[v.mode]++
		totalAge += age
		if age > stats.OldestAge {
			stats.OldestAge = age
		}
	}
	if len(m.voices) > 0 {
		stats.AverageAge = totalAge / time.Duration(len(m.voices))
	}
	return stats
}

// Subscribe registers an observer for aggregate snapshots. Every mutation
// publishes one snapshot; a subscriber that falls behind misses snapshots
// rather than blocking the manager. The returned cancel function
// unregisters the observer and closes its channel.
func (m *VoiceManager) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}

	m.subMu.Lock()
	defer m.subMu.Unlock()

	ch := make(chan Snapshot, buffer)
	if m.subsClosed {
		close(ch)
		return ch, func() {}
	}

	m.nextSubID++
	id := m.nextSubID
	m.subscribers[id] = ch

	cancel := func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publishLocked fans the current snapshot out to subscribers with
// non-blocking sends. Called with the manager lock held so observers see
// snapshots in mutation order.
func (m *VoiceManager) publishLocked() {
	snap := m.snapshotLocked()

	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// closeSubscribers closes all subscriber channels on shutdown.
func (m *VoiceManager) closeSubscribers() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	if m.subsClosed {
		return
	}
	m.subsClosed = true
	for id, ch := range m.subscribers {
		delete(m.subscribers, id)
		close(ch)
	}
}
