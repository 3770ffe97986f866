package export

import (
	"strings"
	"testing"

	"github.com/devbydaniel/meetingd/internal/store"
)

func strPtr(s string) *string { return &s }

func TestRenderTwoFragmentsInOrder(t *testing.T) {
	speakerID := "p-1"
	fragments := []store.Fragment{
		{Text: "good morning", Start: 5, End: 7, SpeakerID: &speakerID},
		{Text: "hello everyone", Start: 65, End: 67},
	}
	participants := []store.Participant{
		{ID: "p-1", Name: "Speaker SPEAKER_00"},
	}

	var b strings.Builder
	if err := Render(&b, fragments, participants); err != nil {
		t.Fatalf("Render: %v", err)
	}

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	if lines[0] != "[00:00:05] Speaker SPEAKER_00: good morning" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "[00:01:05] Unknown: hello everyone" {
		t.Errorf("line 1 = %q", lines[1])
	}

	// Each line starts with an 8-character HH:MM:SS timestamp in brackets.
	for _, line := range lines {
		if len(line) < 10 || line[0] != '[' || line[9] != ']' {
			t.Errorf("line %q missing [HH:MM:SS] prefix", line)
		}
	}
}

func TestRenderUsesEditedText(t *testing.T) {
	fragments := []store.Fragment{
		{Text: "helo wrld", EditedText: strPtr("hello world"), Edited: true, Start: 0, End: 2},
	}

	var b strings.Builder
	if err := Render(&b, fragments, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}

	if !strings.Contains(b.String(), "hello world") {
		t.Errorf("output = %q, want edited text", b.String())
	}
}

func TestRenderHourBoundary(t *testing.T) {
	fragments := []store.Fragment{
		{Text: "late", Start: 3725, End: 3727}, // 1h 2m 5s
	}

	var b strings.Builder
	if err := Render(&b, fragments, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(b.String(), "[01:02:05]") {
		t.Errorf("output = %q, want [01:02:05] prefix", b.String())
	}
}

func TestRenderEmpty(t *testing.T) {
	var b strings.Builder
	if err := Render(&b, nil, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if b.Len() != 0 {
		t.Errorf("output = %q, want empty", b.String())
	}
}
