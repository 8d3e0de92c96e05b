package transcript

import (
	"strings"
	"time"
)

// Cursor tracks how much of the ever-growing transcript has been consumed.
// It is time-based: the cursor is the maximum End timestamp seen so far,
// which stays correct even when the transcript source retroactively edits
// earlier entries without appending at the tail.
//
// Not safe for concurrent use; the poller is the only caller.
type Cursor struct {
	last time.Time
}

// NewCursor returns a cursor positioned at the given meeting start time.
// A zero start consumes the transcript from the beginning.
func NewCursor(start time.Time) *Cursor {
	return &Cursor{last: start}
}

// Advance returns the segments from the full transcript that are strictly
// newer than the cursor and carry non-blank text, then moves the cursor to
// the maximum End of the returned set. A segment is never returned twice
// across the polling history. No new segments is a no-op.
func (c *Cursor) Advance(all []Segment) []Segment {
	var fresh []Segment
	maxEnd := c.last
	for _, seg := range all {
		if !seg.End.After(c.last) {
			continue
		}
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		fresh = append(fresh, seg)
		if seg.End.After(maxEnd) {
			maxEnd = seg.End
		}
	}
	c.last = maxEnd
	return fresh
}

// Position returns the current cursor timestamp.
func (c *Cursor) Position() time.Time {
	return c.last
}
