package padkit

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/beatfold/padkit/engine"
)

// Cleanup policy constants. The one-shot cutoff is the longest plausible
// playback duration for a one-shot sample.
const (
	highUtilizationThreshold = 0.8
	maxOneShotDuration       = 10 * time.Second
)

// Optimize runs one maintenance pass immediately. The background loop calls
// the same pass on its own cadence; failures are absorbed and reported
// through the error handler, never returned.
func (m *VoiceManager) Optimize() {
	m.runCleanupPass()
}

// runCleanupPass releases voices that have reached the voice timeout,
// low-priority voices while utilization sits above the high-water mark, and
// one-shot voices past the one-shot cutoff. Returns how many voices were
// reclaimed and how many engine releases failed.
func (m *VoiceManager) runCleanupPass() (reclaimed, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	sweepLow := len(m.voices) > int(float64(m.globalCeiling)*highUtilizationThreshold)

	var victims []*voice
	for _, v := range m.voices {
		switch {
		case v.age(now) >= m.voiceTimeout:
			victims = append(victims, v)
		case sweepLow && v.priority == PriorityLow:
			victims = append(victims, v)
		case v.mode == engine.ModeOneShot && v.age(now) > maxOneShotDuration:
			victims = append(victims, v)
		}
	}

	for _, v := range victims {
		if err := m.releaseVoiceLocked(v); err != nil {
			m.errorHandler.HandleError(err)
			failed++
		}
		reclaimed++
	}

	if reclaimed > 0 {
		m.publishLocked()
	}
	return reclaimed, failed
}

// Maintenance owns the periodic cleanup loop of a voice manager. One tick
// equals one cleanup pass; a pass with a failed release pushes the next
// tick out to the backoff interval, after which normal cadence resumes.
// The loop never terminates on error.
type Maintenance struct {
	manager *VoiceManager

	mu        sync.RWMutex
	isRunning bool
	stopped   bool

	baseInterval    time.Duration
	backoffInterval time.Duration
	currentInterval time.Duration

	// Pass statistics
	passCount       int64
	reclaimedTotal  int64
	failedPasses    int64
	averagePassTime time.Duration
	maxPassTime     time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// CleanupStats describes the cleanup loop's activity so far.
type CleanupStats struct {
	Passes          int64
	Reclaimed       int64
	FailedPasses    int64
	AveragePassTime time.Duration
	MaxPassTime     time.Duration
	CurrentInterval time.Duration
}

// newMaintenance creates the cleanup loop without starting it.
func newMaintenance(manager *VoiceManager, interval time.Duration) *Maintenance {
	return &Maintenance{
		manager:         manager,
		baseInterval:    interval,
		backoffInterval: backoffFactor * interval,
		currentInterval: interval,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the cleanup loop.
func (mt *Maintenance) Start() error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.isRunning {
		return errors.New("cleanup loop is already running")
	}
	if mt.stopped {
		return errors.New("cleanup loop cannot restart after Stop")
	}

	mt.isRunning = true
	mt.wg.Add(1)
	go mt.cleanupLoop()
	return nil
}

// Stop halts the cleanup loop and waits for an in-flight pass to finish.
func (mt *Maintenance) Stop() error {
	mt.mu.Lock()
	if !mt.isRunning {
		mt.mu.Unlock()
		return nil
	}
	mt.isRunning = false
	mt.stopped = true
	mt.mu.Unlock()

	mt.stopOnce.Do(func() { close(mt.stopChan) })
	mt.wg.Wait()
	return nil
}

// IsRunning returns whether the cleanup loop is active.
func (mt *Maintenance) IsRunning() bool {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.isRunning
}

// GetInterval returns the interval before the next pass. It equals the
// backoff interval while the loop is recovering from a failed pass.
func (mt *Maintenance) GetInterval() time.Duration {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.currentInterval
}

// GetCleanupStats returns pass counts and timing statistics.
func (mt *Maintenance) GetCleanupStats() CleanupStats {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	return CleanupStats{
		Passes:          mt.passCount,
		Reclaimed:       mt.reclaimedTotal,
		FailedPasses:    mt.failedPasses,
		AveragePassTime: mt.averagePassTime,
		MaxPassTime:     mt.maxPassTime,
		CurrentInterval: mt.currentInterval,
	}
}

// ForceCleanup triggers an immediate pass (useful for testing)
func (mt *Maintenance) ForceCleanup() {
	if mt.IsRunning() {
		mt.runPass()
	}
}

// cleanupLoop runs passes on the current cadence until the manager shuts
// down.
func (mt *Maintenance) cleanupLoop() {
	defer mt.wg.Done()

	currentInterval := mt.GetInterval()
	ticker := time.NewTicker(currentInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mt.manager.ctx.Done():
			return
		case <-mt.stopChan:
			return
		case <-ticker.C:
			mt.runPass()

			// Reset ticker when the pass outcome changed the cadence
			if next := mt.GetInterval(); next != currentInterval {
				ticker.Stop()
				ticker = time.NewTicker(next)
				currentInterval = next
			}
		}
	}
}

// runPass executes one cleanup pass and updates cadence and statistics.
func (mt *Maintenance) runPass() {
	start := time.Now()
	reclaimed, failed := mt.manager.runCleanupPass()
	elapsed := time.Since(start)

	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.passCount++
	mt.reclaimedTotal += int64(reclaimed)

	// Update running average (simple exponential moving average)
	if mt.passCount == 1 {
		mt.averagePassTime = elapsed
	} else {
		mt.averagePassTime = time.Duration(float64(mt.averagePassTime)*0.9 + float64(elapsed)*0.1)
	}
	if elapsed > mt.maxPassTime {
		mt.maxPassTime = elapsed
	}

	if failed > 0 {
		mt.failedPasses++
		mt.currentInterval = mt.backoffInterval
	} else {
		mt.currentInterval = mt.baseInterval
	}
}
