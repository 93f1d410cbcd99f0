package padkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatfold/padkit/engine"
)

func TestSnapshotAggregatesVoiceTable(t *testing.T) {
	m, _, clock, cleanup := newTestManager(t, Config{})
	defer cleanup()

	allocate(t, m, 0, "kick", PriorityNormal)
	allocate(t, m, 0, "kick", PriorityNormal)
	clock.Advance(4 * time.Second)
	allocate(t, m, 3, "hat", PriorityLow)
	clock.Advance(2 * time.Second)

	snap := m.GetSnapshot()
	assert.Equal(t, 3, snap.ActiveVoices)
	assert.Equal(t, map[Priority]int{PriorityNormal: 2, PriorityLow: 1}, snap.PerPriority)
	assert.Equal(t, map[int]int{0: 2, 3: 1}, snap.PerPad)
	// Ages are 6s, 6s and 2s on the frozen clock.
	assert.Equal(t, (6*time.Second+6*time.Second+2*time.Second)/3, snap.AverageAge)
	assert.Equal(t, clock.Now(), snap.Timestamp)
}

func TestSnapshotOfEmptyPool(t *testing.T) {
	m, _, _, cleanup := newTestManager(t, Config{})
	defer cleanup()

	snap := m.GetSnapshot()
	assert.Equal(t, 0, snap.ActiveVoices)
	assert.Empty(t, snap.PerPriority)
	assert.Empty(t, snap.PerPad)
	assert.Equal(t, time.Duration(0), snap.AverageAge)
}

func TestStatisticsBreakdownsAndCounters(t *testing.T) {
	m, _, clock, cleanup := newTestManager(t, Config{})
	defer cleanup()

	_, ok := m.Allocate(AllocateRequest{PadIndex: 0, SampleID: "kick", Mode: engine.ModeOneShot})
	require.True(t, ok)
	clock.Advance(3 * time.Second)
	id, ok := m.Allocate(AllocateRequest{PadIndex: 1, SampleID: "bass", Mode: engine.ModeSustained, Priority: PriorityHigh})
	require.True(t, ok)

	m.Release(id)
	_, ok = m.Allocate(AllocateRequest{PadIndex: -1, SampleID: "kick"})
	require.False(t, ok)

	stats := m.GetStatistics()
	assert.Equal(t, 1, stats.ActiveVoices)
	assert.Equal(t, map[engine.PlaybackMode]int{engine.ModeOneShot: 1}, stats.PerMode)
	assert.Equal(t, map[Priority]int{PriorityNormal: 1}, stats.PerPriority)
	assert.Equal(t, 3*time.Second, stats.OldestAge)
	assert.Equal(t, 3*time.Second, stats.AverageAge)

	assert.Equal(t, uint64(2), stats.AllocatedTotal)
	assert.Equal(t, uint64(0), stats.StolenTotal)
	assert.Equal(t, uint64(1), stats.DeniedTotal)
	assert.Equal(t, uint64(1), stats.ReleasedTotal)

	// A pure read: asking twice changes nothing.
	assert.Equal(t, stats, m.GetStatistics())
}

func TestSubscribeReceivesEveryMutation(t *testing.T) {
	m, _, _, cleanup := newTestManager(t, Config{})
	defer cleanup()

	snapshots, unsubscribe := m.Subscribe(8)
	defer unsubscribe()

	id := allocate(t, m, 0, "kick", PriorityNormal)
	allocate(t, m, 1, "snare", PriorityNormal)
	m.Release(id)

	want := []int{1, 2, 1}
	for i, expect := range want {
		select {
		case snap := <-snapshots:
			assert.Equal(t, expect, snap.ActiveVoices, "snapshot %d", i)
		default:
			t.Fatalf("Missing snapshot %d", i)
		}
	}
}

func TestSlowSubscriberMissesSnapshotsWithoutBlocking(t *testing.T) {
	m, _, _, cleanup := newTestManager(t, Config{})
	defer cleanup()

	snapshots, unsubscribe := m.Subscribe(1)
	defer unsubscribe()

	for pad := 0; pad < 5; pad++ {
		allocate(t, m, pad, "kick", PriorityNormal)
	}
	assert.Equal(t, 5, m.GetActiveVoiceCount(), "a full subscriber never stalls allocation")

	// Only the first snapshot fit; the rest were dropped, not queued.
	require.Len(t, snapshots, 1)
	snap := <-snapshots
	assert.Equal(t, 1, snap.ActiveVoices)

	// With the buffer free again the next mutation comes through.
	allocate(t, m, 9, "clap", PriorityNormal)
	require.Len(t, snapshots, 1)
	snap = <-snapshots
	assert.Equal(t, 6, snap.ActiveVoices)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m, _, _, cleanup := newTestManager(t, Config{})
	defer cleanup()

	snapshots, unsubscribe := m.Subscribe(1)
	unsubscribe()
	unsubscribe()

	_, open := <-snapshots
	assert.False(t, open)

	// Publishing after the observer left must not panic.
	allocate(t, m, 0, "kick", PriorityNormal)
}

func TestSubscribeAfterCloseYieldsClosedChannel(t *testing.T) {
	m, _, _, cleanup := newTestManager(t, Config{})
	cleanup()

	snapshots, unsubscribe := m.Subscribe(1)
	defer unsubscribe()

	_, open := <-snapshots
	assert.False(t, open)
}

func TestConcurrentSubscribersSeeMutationOrder(t *testing.T) {
	m, _, _, cleanup := newTestManager(t, Config{})
	defer cleanup()

	first, cancelFirst := m.Subscribe(16)
	defer cancelFirst()
	second, cancelSecond := m.Subscribe(16)
	defer cancelSecond()

	for pad := 0; pad < 4; pad++ {
		allocate(t, m, pad, "kick", PriorityNormal)
	}

	for _, snapshots := range []<-chan Snapshot{first, second} {
		last := 0
		for len(snapshots) > 0 {
			snap := <-snapshots
			assert.Greater(t, snap.ActiveVoices, last, "voice counts must grow monotonically while only allocating")
			last = snap.ActiveVoices
		}
		assert.Equal(t, 4, last)
	}
}
