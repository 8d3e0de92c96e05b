package schedule

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxhall/meetbot/pkg/transcript"
)

func segs(lines ...string) []transcript.Segment {
	out := make([]transcript.Segment, len(lines))
	for i, line := range lines {
		speaker, text, _ := strings.Cut(line, "|")
		out[i] = transcript.Segment{Speaker: speaker, Text: text}
	}
	return out
}

// flushRecorder collects flush contents.
type flushRecorder struct {
	mu       sync.Mutex
	contents []string
}

func (r *flushRecorder) flush(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contents = append(r.contents, content)
}

func (r *flushRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.contents))
	copy(out, r.contents)
	return out
}

func TestDebounceCollapsesBurst(t *testing.T) {
	rec := &flushRecorder{}
	s := New(PolicyDebounce, 60*time.Millisecond, rec.flush)
	defer s.Stop()

	// Arrivals spaced well under the delay: only the final timer may fire.
	s.Add(segs("alice|one"))
	time.Sleep(20 * time.Millisecond)
	s.Add(segs("bob|two"))
	time.Sleep(20 * time.Millisecond)
	s.Add(segs("alice|three"))

	time.Sleep(150 * time.Millisecond)

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 flush for the burst, got %d: %v", len(got), got)
	}
	want := "alice: one\nbob: two\nalice: three"
	if got[0] != want {
		t.Errorf("expected %q, got %q", want, got[0])
	}
}

func TestDebounceLoneUtteranceStillFires(t *testing.T) {
	rec := &flushRecorder{}
	s := New(PolicyDebounce, 40*time.Millisecond, rec.flush)
	defer s.Stop()

	s.Add(segs("Alice|hello Bot"))
	time.Sleep(120 * time.Millisecond)

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 flush, got %d", len(got))
	}
	if got[0] != "Alice: hello Bot" {
		t.Errorf("expected %q, got %q", "Alice: hello Bot", got[0])
	}
}

func TestImmediateFlushesWithoutDelay(t *testing.T) {
	rec := &flushRecorder{}
	s := New(PolicyImmediate, time.Hour, rec.flush)
	defer s.Stop()

	s.Add(segs("alice|now"))
	time.Sleep(50 * time.Millisecond)

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("expected immediate flush, got %d", len(got))
	}
}

func TestSingleFlightSerializesCycles(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 8)

	var mu sync.Mutex
	var running, maxRunning int
	var flushes []string

	flush := func(content string) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		flushes = append(flushes, content)
		mu.Unlock()

		started <- struct{}{}
		<-release

		mu.Lock()
		running--
		mu.Unlock()
	}

	s := New(PolicyImmediate, 0, flush)
	defer s.Stop()

	s.Add(segs("alice|first"))
	<-started

	// These land while the first cycle is still running: they must buffer
	// and coalesce into exactly one follow-up flush.
	s.Add(segs("bob|second"))
	s.Add(segs("carol|third"))
	time.Sleep(30 * time.Millisecond)

	close(release)
	<-started
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if maxRunning != 1 {
		t.Errorf("expected cycles to be serialized, saw %d concurrent", maxRunning)
	}
	if len(flushes) != 2 {
		t.Fatalf("expected first flush plus one coalesced follow-up, got %d: %v", len(flushes), flushes)
	}
	want := "bob: second\ncarol: third"
	if flushes[1] != want {
		t.Errorf("expected coalesced flush %q, got %q", want, flushes[1])
	}
}

func TestStopCancelsPendingTimer(t *testing.T) {
	rec := &flushRecorder{}
	s := New(PolicyDebounce, 30*time.Millisecond, rec.flush)

	s.Add(segs("alice|never spoken"))
	s.Stop()
	time.Sleep(80 * time.Millisecond)

	if got := rec.all(); len(got) != 0 {
		t.Errorf("expected no flush after Stop, got %v", got)
	}
}

func TestAddAfterStopIsIgnored(t *testing.T) {
	rec := &flushRecorder{}
	s := New(PolicyImmediate, 0, rec.flush)
	s.Stop()

	s.Add(segs("alice|too late"))
	time.Sleep(40 * time.Millisecond)

	if got := rec.all(); len(got) != 0 {
		t.Errorf("expected no flush after Stop, got %v", got)
	}
}

func TestFormatUnknownSpeaker(t *testing.T) {
	got := Format([]transcript.Segment{{Text: " hello "}})
	if got != "unknown: hello" {
		t.Errorf("expected %q, got %q", "unknown: hello", got)
	}
}
