package transcript

import (
	"context"
	"time"

	"github.com/voxhall/meetbot/internal/log"
)

// MinPollInterval is the floor for the transcript poll interval. Polls are
// strictly sequential; the floor keeps a misconfigured interval from
// hammering the transcript source.
const MinPollInterval = 100 * time.Millisecond

// DefaultPollInterval matches what live transcript servers comfortably
// sustain (observed 500ms-2s in the wild).
const DefaultPollInterval = time.Second

// Source reads one raw transcript snapshot. Implemented by the MCP gateway's
// resource reader; faked in tests.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
}

// Poller periodically reads the transcript source, advances the cursor, and
// hands newly appended segments to the callback. Read and decode failures
// skip the poll and leave the cursor untouched; the loop itself never stops
// on an error.
type Poller struct {
	source     Source
	interval   time.Duration
	cursor     *Cursor
	onSegments func([]Segment)
}

// NewPoller creates a poller that starts consuming at meeting start.
func NewPoller(source Source, interval time.Duration, start time.Time, onSegments func([]Segment)) *Poller {
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	return &Poller{
		source:     source,
		interval:   interval,
		cursor:     NewCursor(start),
		onSegments: onSegments,
	}
}

// Run polls until the context is cancelled. Each tick performs one full
// read-decode-advance pass before the next can begin, so polls never overlap.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Debug("transcript polling started", "interval", p.interval)

	for {
		select {
		case <-ctx.Done():
			log.Debug("transcript polling stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll performs a single read of the transcript source.
func (p *Poller) poll(ctx context.Context) {
	data, err := p.source.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Debug("transcript read failed", "error", err)
		return
	}

	segments, err := ParseSnapshot(data)
	if err != nil {
		log.Warn("skipping malformed transcript snapshot", "error", err)
		return
	}

	fresh := p.cursor.Advance(segments)
	if len(fresh) == 0 {
		return
	}

	log.Debug("new transcript segments", "count", len(fresh), "cursor", p.cursor.Position())
	p.onSegments(fresh)
}

// Position exposes the cursor position, mainly for status reporting.
func (p *Poller) Position() time.Time {
	return p.cursor.Position()
}
