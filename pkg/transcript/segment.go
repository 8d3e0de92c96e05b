// Package transcript consumes the live meeting transcript: it decodes
// transcript snapshots, tracks a consumption cursor over the append-only
// segment list, and polls the transcript resource at a fixed interval.
package transcript

import (
	"encoding/json"
	"fmt"
	"time"
)

// Segment is one timestamped, speaker-attributed utterance from the live
// transcript. New speech accumulates at the tail, but servers may revise
// earlier entries in place, so consumers track position by End time rather
// than by index.
type Segment struct {
	Text    string
	Start   time.Time
	End     time.Time
	Speaker string
}

// snapshot mirrors the transcript resource document.
type snapshot struct {
	Segments []wireSegment `json:"segments"`
}

type wireSegment struct {
	Text    string   `json:"text"`
	Start   flexTime `json:"start"`
	End     flexTime `json:"end"`
	Speaker *string  `json:"speaker"`
}

// flexTime accepts either an RFC3339 string or a float unix-seconds value.
// Transcript servers disagree on which one they emit.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	t.Time = time.Unix(0, int64(secs*float64(time.Second))).UTC()
	return nil
}

// ParseSnapshot decodes a transcript resource document of the form
// {"segments": [{text, start, end, speaker}, ...]}. A malformed document
// returns an error so the caller can skip that poll without advancing
// its cursor.
func ParseSnapshot(data []byte) ([]Segment, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode transcript snapshot: %w", err)
	}

	segments := make([]Segment, 0, len(snap.Segments))
	for _, ws := range snap.Segments {
		seg := Segment{
			Text:  ws.Text,
			Start: ws.Start.Time,
			End:   ws.End.Time,
		}
		if ws.Speaker != nil {
			seg.Speaker = *ws.Speaker
		}
		segments = append(segments, seg)
	}
	return segments, nil
}
