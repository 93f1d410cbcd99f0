package engine

import (
	"sync"

	"github.com/pkg/errors"
)

// DefaultStubCapacity is the voice capacity of a StubControl when none is given.
const DefaultStubCapacity = 64

// StubCounts is a snapshot of a StubControl's lifetime counters.
type StubCounts struct {
	Allocated   int64
	Released    int64
	Refused     int64
	BadReleases int64
}

// StubControl is an in-memory Control implementation with no audio behind it.
// It enforces a fixed capacity, records every request it accepts, and can be
// told to refuse or panic on upcoming allocations. Tests and examples run
// against it the same way production code runs against a real engine binding.
type StubControl struct {
	mu         sync.Mutex
	capacity   int
	nextHandle Handle
	active     map[Handle]Request

	counts      StubCounts
	last        Request
	hasLast     bool
	failNext    int
	failRelease int
	panicNext   bool
}

// NewStubControl creates a stub engine with the given voice capacity.
// Non-positive capacity falls back to DefaultStubCapacity.
func NewStubControl(capacity int) *StubControl {
	if capacity <= 0 {
		capacity = DefaultStubCapacity
	}
	return &StubControl{
		capacity: capacity,
		active:   make(map[Handle]Request),
	}
}

// AllocateVoice implements Control. It validates the request, honors any
// injected failure or panic, and refuses once capacity is reached.
func (s *StubControl) AllocateVoice(req Request) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.panicNext {
		s.panicNext = false
		panic("stub engine: injected allocation panic")
	}
	if s.failNext > 0 {
		s.failNext--
		s.counts.Refused++
		return NoHandle, errors.New("stub engine: injected allocation failure")
	}

	if req.SampleID == "" {
		s.counts.Refused++
		return NoHandle, errors.New("stub engine: empty sample id")
	}
	if req.PadIndex < 0 {
		s.counts.Refused++
		return NoHandle, errors.Errorf("stub engine: negative pad index %d", req.PadIndex)
	}
	if !req.Mode.IsValid() {
		s.counts.Refused++
		return NoHandle, errors.Errorf("stub engine: unknown playback mode %q", req.Mode)
	}
	if req.Velocity < 0 || req.Velocity > 1 {
		s.counts.Refused++
		return NoHandle, errors.Errorf("stub engine: velocity %.3f out of range", req.Velocity)
	}
	if len(s.active) >= s.capacity {
		s.counts.Refused++
		return NoHandle, errors.Errorf("stub engine: no free voices (capacity %d)", s.capacity)
	}

	s.nextHandle++
	h := s.nextHandle
	s.active[h] = req
	s.counts.Allocated++
	s.last = req
	s.hasLast = true
	return h, nil
}

// ReleaseVoice implements Control. Releasing an unknown or already released
// handle is an error so callers' single-release discipline stays observable.
func (s *StubControl) ReleaseVoice(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[h]; !ok {
		s.counts.BadReleases++
		return errors.Errorf("stub engine: release of unknown voice handle %d", h)
	}
	if s.failRelease > 0 {
		s.failRelease--
		delete(s.active, h)
		return errors.New("stub engine: injected release failure")
	}
	delete(s.active, h)
	s.counts.Released++
	return nil
}

// FailAllocations makes the next n allocation attempts fail.
func (s *StubControl) FailAllocations(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// FailReleases makes the next n release attempts fail. The voice behind the
// handle is still dropped so the stub does not leak it.
func (s *StubControl) FailReleases(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRelease = n
}

// PanicOnNextAllocate makes the next allocation attempt panic.
func (s *StubControl) PanicOnNextAllocate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicNext = true
}

// ActiveCount returns the number of live voices inside the stub.
func (s *StubControl) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// ActiveRequests returns the requests behind all live voices, unordered.
func (s *StubControl) ActiveRequests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs := make([]Request, 0, len(s.active))
	for _, req := range s.active {
		reqs = append(reqs, req)
	}
	return reqs
}

// Holds reports whether the given handle is live inside the stub.
func (s *StubControl) Holds(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[h]
	return ok
}

// Counts returns a snapshot of the lifetime counters.
func (s *StubControl) Counts() StubCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// LastRequest returns the most recently accepted request, if any.
func (s *StubControl) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}
