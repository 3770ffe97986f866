package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/meetingd/internal/output"
	"github.com/devbydaniel/meetingd/internal/store"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)

			st, err := store.Open(deps.Config.DBPath())
			if err != nil {
				return err
			}
			defer st.Close()

			var meetings []store.Meeting
			if search != "" {
				meetings, err = st.SearchMeetings(cmd.Context(), search)
			} else {
				meetings, err = st.Meetings(cmd.Context())
			}
			if err != nil {
				return err
			}

			if len(meetings) == 0 {
				formatter.Info("No meetings found")
				return nil
			}

			formatter.MeetingListHeader()
			for _, m := range meetings {
				formatter.MeetingListItem(m.ID, m.Title, m.StartedAt,
					time.Duration(m.Duration)*time.Second, m.EndedAt != nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by title or transcript content")

	return cmd
}
