// Package store persists meetings, participants and transcript fragments in SQLite.
package store

import "time"

// Meeting is one recording session's durable record.
type Meeting struct {
	ID        string
	Title     string
	Room      string
	StartedAt time.Time
	EndedAt   *time.Time
	AudioPath string
	AudioHash string
	Duration  int // seconds, computed at stop
}

// Fragment is one unit of recognized speech with an approximate time interval.
// Start and End are offsets in seconds relative to the meeting start.
type Fragment struct {
	ID         string
	MeetingID  string
	SpeakerID  *string
	Text       string
	EditedText *string
	Edited     bool
	Start      float64
	End        float64
	Confidence *float64
	CreatedAt  time.Time
}

// Participant is a speaker identity within one meeting, created from a
// diarization label.
type Participant struct {
	ID           string
	MeetingID    string
	Name         string
	SpeakerLabel string
}
