// Package archive persists a meeting record to SQLite: the meeting itself,
// every consumed transcript segment, and every user/bot exchange. The
// archive is best-effort; write failures never disturb the session.
package archive

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voxhall/meetbot/pkg/transcript"
)

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	id        TEXT PRIMARY KEY,
	url       TEXT NOT NULL,
	botName   TEXT NOT NULL,
	startedAt REAL NOT NULL,
	endedAt   REAL
);
CREATE TABLE IF NOT EXISTS segments (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	meetingId TEXT NOT NULL,
	speaker   TEXT NOT NULL,
	text      TEXT NOT NULL,
	startAt   REAL NOT NULL,
	endAt     REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_segments_meeting ON segments(meetingId, endAt);
CREATE TABLE IF NOT EXISTS exchanges (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	meetingId TEXT NOT NULL,
	role      TEXT NOT NULL,
	content   TEXT NOT NULL,
	createdAt REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_meeting ON exchanges(meetingId, createdAt);
`

// Store provides read-write access to the meetbot SQLite archive.
type Store struct {
	db *sql.DB
}

// Exchange is one archived user/bot exchange.
type Exchange struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Open opens (or creates) the archive database with WAL journaling.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginMeeting records a new meeting row.
func (s *Store) BeginMeeting(id, url, botName string) error {
	_, err := s.db.Exec(`
		INSERT INTO meetings (id, url, botName, startedAt)
		VALUES (?, ?, ?, ?)
	`, id, url, botName, unixFloat(time.Now()))
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

// EndMeeting stamps the meeting's end time.
func (s *Store) EndMeeting(id string) error {
	_, err := s.db.Exec(`
		UPDATE meetings SET endedAt = ? WHERE id = ?
	`, unixFloat(time.Now()), id)
	if err != nil {
		return fmt.Errorf("end meeting: %w", err)
	}
	return nil
}

// SaveSegment archives one consumed transcript segment.
func (s *Store) SaveSegment(meetingID string, seg transcript.Segment) error {
	_, err := s.db.Exec(`
		INSERT INTO segments (meetingId, speaker, text, startAt, endAt)
		VALUES (?, ?, ?, ?, ?)
	`, meetingID, seg.Speaker, seg.Text, unixFloat(seg.Start), unixFloat(seg.End))
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

// SaveExchange archives one user or bot exchange.
func (s *Store) SaveExchange(meetingID, role, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO exchanges (meetingId, role, content, createdAt)
		VALUES (?, ?, ?, ?)
	`, meetingID, role, content, unixFloat(time.Now()))
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// ExchangesForMeeting returns all exchanges for a meeting, oldest first.
func (s *Store) ExchangesForMeeting(meetingID string) ([]Exchange, error) {
	rows, err := s.db.Query(`
		SELECT role, content, createdAt
		FROM exchanges
		WHERE meetingId = ?
		ORDER BY createdAt ASC, id ASC
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var createdAt float64
		if err := rows.Scan(&e.Role, &e.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.CreatedAt = timeFromUnix(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SegmentCount returns how many segments are archived for a meeting.
func (s *Store) SegmentCount(meetingID string) (int, error) {
	row := s.db.QueryRow(`SELECT COUNT(*) FROM segments WHERE meetingId = ?`, meetingID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return n, nil
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
