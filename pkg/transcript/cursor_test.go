package transcript

import (
	"testing"
	"time"
)

func seg(text, speaker string, endOffsetSec int) Segment {
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	return Segment{
		Text:    text,
		Speaker: speaker,
		Start:   base.Add(time.Duration(endOffsetSec-1) * time.Second),
		End:     base.Add(time.Duration(endOffsetSec) * time.Second),
	}
}

func TestCursorExactlyOnce(t *testing.T) {
	c := NewCursor(time.Time{})

	// Simulate a growing transcript across polls: each poll returns the full
	// history, the cursor must emit each segment exactly once overall.
	full := []Segment{}
	polls := [][]Segment{
		{seg("hello", "alice", 1)},
		{seg("hello", "alice", 1), seg("hi there", "bob", 2)},
		{seg("hello", "alice", 1), seg("hi there", "bob", 2)}, // no growth
		{seg("hello", "alice", 1), seg("hi there", "bob", 2), seg("ok", "alice", 3), seg("bye", "bob", 4)},
	}

	var got []Segment
	for _, poll := range polls {
		got = append(got, c.Advance(poll)...)
	}
	full = append(full, seg("hello", "alice", 1), seg("hi there", "bob", 2), seg("ok", "alice", 3), seg("bye", "bob", 4))

	if len(got) != len(full) {
		t.Fatalf("expected %d segments across polls, got %d", len(full), len(got))
	}
	for i := range full {
		if got[i].Text != full[i].Text {
			t.Errorf("segment %d: expected %q, got %q", i, full[i].Text, got[i].Text)
		}
	}
}

func TestCursorNoNewSegments(t *testing.T) {
	c := NewCursor(time.Time{})
	first := c.Advance([]Segment{seg("hello", "alice", 1)})
	if len(first) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(first))
	}

	pos := c.Position()
	again := c.Advance([]Segment{seg("hello", "alice", 1)})
	if len(again) != 0 {
		t.Errorf("expected no segments on repeat poll, got %d", len(again))
	}
	if !c.Position().Equal(pos) {
		t.Errorf("cursor moved on empty advance: %v -> %v", pos, c.Position())
	}
}

func TestCursorSkipsBlankText(t *testing.T) {
	c := NewCursor(time.Time{})
	got := c.Advance([]Segment{
		seg("  ", "alice", 1),
		seg("real words", "bob", 2),
		seg("", "", 3),
	})
	if len(got) != 1 {
		t.Fatalf("expected 1 non-blank segment, got %d", len(got))
	}
	if got[0].Text != "real words" {
		t.Errorf("expected %q, got %q", "real words", got[0].Text)
	}
}

func TestCursorIgnoresRetroactiveEdits(t *testing.T) {
	c := NewCursor(time.Time{})
	c.Advance([]Segment{seg("hello", "alice", 5)})

	// An earlier entry is edited in place but nothing new appended.
	got := c.Advance([]Segment{seg("hello, everyone", "alice", 5)})
	if len(got) != 0 {
		t.Errorf("expected retroactive edit to be ignored, got %d segments", len(got))
	}
}

func TestCursorStartsAtMeetingStart(t *testing.T) {
	start := time.Date(2026, 8, 25, 10, 0, 2, 0, time.UTC)
	c := NewCursor(start)

	got := c.Advance([]Segment{
		seg("before join", "alice", 1),
		seg("after join", "bob", 3),
	})
	if len(got) != 1 {
		t.Fatalf("expected 1 segment after meeting start, got %d", len(got))
	}
	if got[0].Text != "after join" {
		t.Errorf("expected %q, got %q", "after join", got[0].Text)
	}
}
