package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/meetingd/internal/export"
	"github.com/devbydaniel/meetingd/internal/output"
	"github.com/devbydaniel/meetingd/internal/store"
)

func NewExportCmd(deps *Dependencies) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <meeting-id>",
		Short: "Export a meeting transcript as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)
			meetingID := args[0]

			st, err := store.Open(deps.Config.DBPath())
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := st.Meeting(cmd.Context(), meetingID); err != nil {
				return fmt.Errorf("meeting %s not found", meetingID)
			}

			fragments, err := st.FragmentsForMeeting(cmd.Context(), meetingID)
			if err != nil {
				return err
			}
			participants, err := st.ParticipantsForMeeting(cmd.Context(), meetingID)
			if err != nil {
				return err
			}

			w := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if err := export.Render(w, fragments, participants); err != nil {
				return err
			}

			if outPath != "" {
				formatter.Success("Transcript exported: " + outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to file instead of stdout")

	return cmd
}
