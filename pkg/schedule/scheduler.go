// Package schedule decides when accumulated transcript segments become a
// model-facing turn. It supports a quiet-period debounce policy and an
// immediate flush policy, and serializes model cycles so that at most one is
// in flight per session.
package schedule

import (
	"strings"
	"sync"
	"time"

	"github.com/voxhall/meetbot/pkg/transcript"
)

// Policy selects the flush trigger.
type Policy int

const (
	// PolicyDebounce restarts a quiet-period timer on every arrival and
	// flushes only when the timer fires with no intervening segments. A
	// burst of rapid speaker turns collapses into a single model cycle.
	PolicyDebounce Policy = iota

	// PolicyImmediate flushes as soon as any new segment arrives, trading
	// batching for latency.
	PolicyImmediate
)

// DefaultDebounceDelay is the quiet period before a flush under
// PolicyDebounce.
const DefaultDebounceDelay = 2 * time.Second

// FlushFunc receives the formatted user-turn content and runs one full model
// cycle. It is invoked from the scheduler's own goroutine and is never
// re-entered: a flush that lands while a cycle runs is coalesced into exactly
// one follow-up invocation after the current cycle returns.
type FlushFunc func(content string)

// Scheduler buffers newly observed segments and triggers flushes per policy.
type Scheduler struct {
	policy Policy
	delay  time.Duration
	flush  FlushFunc

	mu      sync.Mutex
	pending []transcript.Segment
	timer   *time.Timer
	running bool
	queued  bool
	stopped bool
}

// New creates a scheduler. A non-positive delay falls back to the default.
func New(policy Policy, delay time.Duration, flush FlushFunc) *Scheduler {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Scheduler{policy: policy, delay: delay, flush: flush}
}

// Add buffers new segments and arms the flush trigger. Under debounce any
// pending timer is cancelled and restarted, so concurrent timers can never
// both fire for overlapping content.
func (s *Scheduler) Add(segments []transcript.Segment) {
	if len(segments) == 0 {
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, segments...)

	if s.policy == PolicyImmediate {
		s.mu.Unlock()
		go s.fire()
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
	s.mu.Unlock()
}

// Stop cancels any pending timer and prevents further flushes. Called first
// during shutdown so a stray flush cannot fire mid-teardown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
}

// Pending returns the number of buffered segments, for status reporting.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// fire drains the buffer into one flush. If a cycle is already running the
// drain is deferred: the running fire loops and picks the buffered segments
// up once its cycle completes, keeping cycles strictly serialized.
func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	if s.running {
		s.queued = true
		s.mu.Unlock()
		return
	}
	s.running = true
	segments := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.flush(Format(segments))

	for {
		s.mu.Lock()
		if s.stopped || !s.queued || len(s.pending) == 0 {
			s.running = false
			s.queued = false
			s.mu.Unlock()
			return
		}
		s.queued = false
		segments := s.pending
		s.pending = nil
		s.mu.Unlock()

		s.flush(Format(segments))
	}
}

// Format concatenates segments into user-turn content, one
// "speaker: text" line per segment. A missing speaker renders as "unknown".
func Format(segments []transcript.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "unknown"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(seg.Text))
	}
	return b.String()
}
