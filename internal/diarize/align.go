package diarize

import (
	"context"
	"fmt"

	"github.com/devbydaniel/meetingd/internal/store"
)

// Align materializes one participant per distinct speaker label and assigns
// each stored transcript fragment to the first segment containing the
// fragment's midpoint. The speaker updates are applied atomically; fragments
// whose midpoint falls outside every segment keep a null speaker. Align is
// idempotent: a rerun reuses the meeting's existing participants per label
// and overwrites assignments, ending in the same state as a single run.
func Align(ctx context.Context, st *store.Store, meetingID string, segments []Segment) error {
	existing, err := st.ParticipantsForMeeting(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("align: %w", err)
	}

	participants := make(map[string]string) // label -> participant id
	for _, p := range existing {
		participants[p.SpeakerLabel] = p.ID
	}
	for _, seg := range segments {
		if _, ok := participants[seg.Speaker]; ok {
			continue
		}
		p, err := st.CreateParticipant(ctx, meetingID, "Speaker "+seg.Speaker, seg.Speaker)
		if err != nil {
			return fmt.Errorf("align: %w", err)
		}
		participants[seg.Speaker] = p.ID
	}

	fragments, err := st.FragmentsForMeeting(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("align: %w", err)
	}

	assignments := make(map[string]string) // fragment id -> participant id
	for _, frag := range fragments {
		mid := (frag.Start + frag.End) / 2
		for _, seg := range segments {
			if mid >= seg.Start && mid <= seg.End {
				assignments[frag.ID] = participants[seg.Speaker]
				break
			}
		}
	}

	if err := st.AssignSpeakers(ctx, assignments); err != nil {
		return fmt.Errorf("align: %w", err)
	}
	return nil
}
