// Package export renders a meeting transcript as plain text.
package export

import (
	"fmt"
	"io"

	"github.com/devbydaniel/meetingd/internal/store"
)

// Render writes one line per fragment, ordered as given (callers load
// fragments ordered by start time):
//
//	[HH:MM:SS] <speaker>: <text>
//
// Fragments without an assigned speaker are attributed to "Unknown". A
// user-edited fragment exports its edited text.
func Render(w io.Writer, fragments []store.Fragment, participants []store.Participant) error {
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
	}

	for _, f := range fragments {
		speaker := "Unknown"
		if f.SpeakerID != nil {
			if name, ok := names[*f.SpeakerID]; ok {
				speaker = name
			}
		}

		text := f.Text
		if f.Edited && f.EditedText != nil {
			text = *f.EditedText
		}

		if _, err := fmt.Fprintf(w, "[%s] %s: %s\n", timestamp(f.Start), speaker, text); err != nil {
			return err
		}
	}
	return nil
}

// timestamp formats a second offset as HH:MM:SS.
func timestamp(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
