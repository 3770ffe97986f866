package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/meetingd/internal/output"
	"github.com/devbydaniel/meetingd/internal/store"
)

func NewDeleteCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <meeting-id>",
		Short: "Delete a meeting and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)
			meetingID := args[0]

			st, err := store.Open(deps.Config.DBPath())
			if err != nil {
				return err
			}
			defer st.Close()

			meeting, err := st.Meeting(cmd.Context(), meetingID)
			if err != nil {
				return fmt.Errorf("meeting %s not found", meetingID)
			}
			if err := st.DeleteMeeting(cmd.Context(), meetingID); err != nil {
				return err
			}
			if meeting.AudioPath != "" {
				if err := os.Remove(meeting.AudioPath); err != nil && !os.IsNotExist(err) {
					formatter.Warning("could not remove audio file: " + meeting.AudioPath)
				}
			}

			formatter.Success("Meeting deleted: " + meeting.Title)
			return nil
		},
	}
}

func NewRenameSpeakerCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "rename-speaker <meeting-id> <speaker-label> <name>",
		Short: "Give a diarized speaker a real name",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)
			meetingID, label, name := args[0], args[1], args[2]

			st, err := store.Open(deps.Config.DBPath())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.RenameSpeaker(cmd.Context(), meetingID, label, name); err != nil {
				return err
			}

			formatter.Success(fmt.Sprintf("Speaker %s is now %q", label, name))
			return nil
		},
	}
}

func NewEditCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <fragment-id> <text>",
		Short: "Correct the text of a transcript fragment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)
			fragmentID, text := args[0], args[1]

			st, err := store.Open(deps.Config.DBPath())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.UpdateFragmentText(cmd.Context(), fragmentID, text); err != nil {
				return err
			}

			formatter.Success("Fragment updated")
			return nil
		},
	}
}
