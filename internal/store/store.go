package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS meetings (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		room        TEXT,
		start_time  REAL NOT NULL,
		end_time    REAL,
		audio_path  TEXT NOT NULL,
		audio_hash  TEXT,
		duration    INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS participants (
		id            TEXT PRIMARY KEY,
		meeting_id    TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		name          TEXT NOT NULL,
		speaker_label TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transcripts (
		id          TEXT PRIMARY KEY,
		meeting_id  TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		speaker_id  TEXT REFERENCES participants(id) ON DELETE SET NULL,
		text        TEXT NOT NULL,
		edited_text TEXT,
		is_edited   INTEGER NOT NULL DEFAULT 0,
		start_time  REAL NOT NULL,
		end_time    REAL NOT NULL,
		confidence  REAL,
		created_at  REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transcripts_meeting
		ON transcripts(meeting_id, start_time);
`

// Store wraps the meetingd SQLite database.
type Store struct {
	db *sql.DB
}

// pragmas is applied per connection via the DSN so every pooled connection
// sees the same settings.
const pragmas = "_pragma=busy_timeout(10000)" +
	"&_pragma=journal_mode(WAL)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=foreign_keys(1)"

// Open opens (and if needed initializes) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?"+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory database. Used by tests. The pool is pinned
// to one connection so every query sees the same in-memory database.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateMeeting inserts a new meeting row and returns it.
func (s *Store) CreateMeeting(ctx context.Context, title, room, audioPath string, startedAt time.Time) (Meeting, error) {
	m := Meeting{
		ID:        uuid.NewString(),
		Title:     title,
		Room:      room,
		StartedAt: startedAt,
		AudioPath: audioPath,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, title, room, start_time, audio_path)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.Title, m.Room, unix(m.StartedAt), m.AudioPath)
	if err != nil {
		return Meeting{}, fmt.Errorf("insert meeting: %w", err)
	}

	return m, nil
}

// FinishMeeting records the end time, duration and audio hash of a meeting.
func (s *Store) FinishMeeting(ctx context.Context, id string, endedAt time.Time, durationSec int, audioHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET end_time = ?, duration = ?, audio_hash = ? WHERE id = ?
	`, unix(endedAt), durationSec, audioHash, id)
	if err != nil {
		return fmt.Errorf("finish meeting: %w", err)
	}
	return nil
}

// Meeting returns one meeting by id, or sql.ErrNoRows.
func (s *Store) Meeting(ctx context.Context, id string) (Meeting, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, room, start_time, end_time, audio_path, audio_hash, duration
		FROM meetings WHERE id = ?
	`, id)
	return scanMeeting(row)
}

// Meetings returns all meetings, newest first.
func (s *Store) Meetings(ctx context.Context) ([]Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, room, start_time, end_time, audio_path, audio_hash, duration
		FROM meetings ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	defer rows.Close()
	return collectMeetings(rows)
}

// SearchMeetings returns meetings whose title or transcript text matches query,
// newest first.
func (s *Store) SearchMeetings(ctx context.Context, query string) ([]Meeting, error) {
	term := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT m.id, m.title, m.room, m.start_time, m.end_time, m.audio_path, m.audio_hash, m.duration
		FROM meetings m
		LEFT JOIN transcripts t ON m.id = t.meeting_id
		WHERE m.title LIKE ? OR t.text LIKE ?
		ORDER BY m.start_time DESC
	`, term, term)
	if err != nil {
		return nil, fmt.Errorf("search meetings: %w", err)
	}
	defer rows.Close()
	return collectMeetings(rows)
}

// DeleteMeeting removes a meeting; participants and fragments cascade.
func (s *Store) DeleteMeeting(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	return nil
}

// InsertFragment appends a transcript fragment with no speaker assigned.
func (s *Store) InsertFragment(ctx context.Context, meetingID, text string, start, end float64, createdAt time.Time) (Fragment, error) {
	f := Fragment{
		ID:        uuid.NewString(),
		MeetingID: meetingID,
		Text:      text,
		Start:     start,
		End:       end,
		CreatedAt: createdAt,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, meeting_id, text, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.ID, f.MeetingID, f.Text, f.Start, f.End, unix(f.CreatedAt))
	if err != nil {
		return Fragment{}, fmt.Errorf("insert fragment: %w", err)
	}

	return f, nil
}

// FragmentsForMeeting returns a meeting's fragments ordered by start time.
func (s *Store) FragmentsForMeeting(ctx context.Context, meetingID string) ([]Fragment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meeting_id, speaker_id, text, edited_text, is_edited,
		       start_time, end_time, confidence, created_at
		FROM transcripts
		WHERE meeting_id = ?
		ORDER BY start_time ASC
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("query fragments: %w", err)
	}
	defer rows.Close()

	var frags []Fragment
	for rows.Next() {
		var f Fragment
		var speakerID, editedText sql.NullString
		var confidence sql.NullFloat64
		var edited int
		var createdAt float64
		if err := rows.Scan(&f.ID, &f.MeetingID, &speakerID, &f.Text, &editedText,
			&edited, &f.Start, &f.End, &confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		if speakerID.Valid {
			f.SpeakerID = &speakerID.String
		}
		if editedText.Valid {
			f.EditedText = &editedText.String
		}
		if confidence.Valid {
			f.Confidence = &confidence.Float64
		}
		f.Edited = edited != 0
		f.CreatedAt = timeFromUnix(createdAt)
		frags = append(frags, f)
	}
	return frags, rows.Err()
}

// UpdateFragmentText applies a user edit to one fragment.
func (s *Store) UpdateFragmentText(ctx context.Context, id, text string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE transcripts SET text = ?, edited_text = ?, is_edited = 1 WHERE id = ?
	`, text, text, id)
	if err != nil {
		return fmt.Errorf("update fragment text: %w", err)
	}
	return nil
}

// CreateParticipant inserts one participant for a diarization speaker label.
func (s *Store) CreateParticipant(ctx context.Context, meetingID, name, label string) (Participant, error) {
	p := Participant{
		ID:           uuid.NewString(),
		MeetingID:    meetingID,
		Name:         name,
		SpeakerLabel: label,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (id, meeting_id, name, speaker_label)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.MeetingID, p.Name, p.SpeakerLabel)
	if err != nil {
		return Participant{}, fmt.Errorf("insert participant: %w", err)
	}

	return p, nil
}

// ParticipantsForMeeting returns a meeting's participants.
func (s *Store) ParticipantsForMeeting(ctx context.Context, meetingID string) ([]Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meeting_id, name, speaker_label
		FROM participants WHERE meeting_id = ?
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var parts []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.MeetingID, &p.Name, &p.SpeakerLabel); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// RenameSpeaker updates the display name of every participant carrying the
// given diarization label within one meeting.
func (s *Store) RenameSpeaker(ctx context.Context, meetingID, label, name string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE participants SET name = ? WHERE meeting_id = ? AND speaker_label = ?
	`, name, meetingID, label)
	if err != nil {
		return fmt.Errorf("rename speaker: %w", err)
	}
	return nil
}

// AssignSpeakers sets the speaker of each listed fragment in a single
// transaction so a partial alignment is never visible to readers.
func (s *Store) AssignSpeakers(ctx context.Context, assignments map[string]string) error {
	if len(assignments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("assign speakers: begin tx: %w", err)
	}

	for fragmentID, participantID := range assignments {
		if _, err := tx.ExecContext(ctx, `
			UPDATE transcripts SET speaker_id = ? WHERE id = ?
		`, participantID, fragmentID); err != nil {
			tx.Rollback()
			return fmt.Errorf("assign speaker: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("assign speakers: commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (Meeting, error) {
	var m Meeting
	var room, audioHash sql.NullString
	var startTime float64
	var endTime sql.NullFloat64
	if err := row.Scan(&m.ID, &m.Title, &room, &startTime, &endTime,
		&m.AudioPath, &audioHash, &m.Duration); err != nil {
		return Meeting{}, err
	}
	m.Room = room.String
	m.AudioHash = audioHash.String
	m.StartedAt = timeFromUnix(startTime)
	if endTime.Valid {
		t := timeFromUnix(endTime.Float64)
		m.EndedAt = &t
	}
	return m, nil
}

func collectMeetings(rows *sql.Rows) ([]Meeting, error) {
	var meetings []Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
