package output

import (
	"fmt"
	"io"
	"time"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) RecordingStarted(meetingID, title string) {
	fmt.Fprintf(f.w, "⏺️  Recording started: %s (%s)\n", title, meetingID)
}

func (f *Formatter) RecordingStopped() {
	fmt.Fprintf(f.w, "⏹️  Recording stopped. Speaker diarization runs in the background.\n")
}

func (f *Formatter) NotRecording() {
	fmt.Fprintf(f.w, "ℹ️  No recording in progress\n")
}

func (f *Formatter) Status(recording bool, processing bool, meetingID string) {
	if recording {
		fmt.Fprintf(f.w, "⏺️  Recording meeting %s\n", meetingID)
	} else {
		fmt.Fprintf(f.w, "ℹ️  Idle\n")
	}
	if processing {
		fmt.Fprintf(f.w, "🔊 Diarization in progress\n")
	}
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func (f *Formatter) LiveFragment(text string) {
	fmt.Fprintf(f.w, "💬 %s\n", text)
}

func (f *Formatter) DeviceListHeader() {
	fmt.Fprintf(f.w, "🎤 Input devices:\n\n")
}

func (f *Formatter) DeviceListItem(name, id string) {
	if id != name {
		fmt.Fprintf(f.w, "  %s\n    id: %s\n", name, id)
	} else {
		fmt.Fprintf(f.w, "  %s\n", name)
	}
}

func (f *Formatter) MeetingListHeader() {
	fmt.Fprintf(f.w, "📁 Meetings:\n\n")
}

func (f *Formatter) MeetingListItem(id, title string, startedAt time.Time, duration time.Duration, finished bool) {
	status := " ⏺️"
	if finished {
		status = ""
	}
	fmt.Fprintf(f.w, "  %s  %s  %s (%s)%s\n",
		id, startedAt.Format("2006-01-02 15:04"), title, formatDuration(duration), status)
}

func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	mark := "✅"
	if !ok {
		mark = "❌"
	}
	fmt.Fprintf(f.w, "%s %s: %s\n", mark, name, detail)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
