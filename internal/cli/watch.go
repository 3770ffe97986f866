package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/meetingd/internal/daemon"
	"github.com/devbydaniel/meetingd/internal/output"
)

func NewWatchCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream live transcript fragments and status events",
		Long:  "Subscribe to the daemon's event stream and print live transcript fragments, recording status changes, and diarization results until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)

			client, err := daemon.Connect(deps.Config.SocketPath)
			if err != nil {
				return daemonUnavailable(err)
			}
			defer client.Close()

			resp, err := client.SendCommand(daemon.Command{Cmd: "subscribe"})
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("subscribe: %s", resp.Error)
			}

			// Interrupt unblocks ReadEvent by closing the connection.
			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				client.Close()
			}()

			formatter.Info("Watching for events (Ctrl+C to stop)")
			for {
				ev, err := client.ReadEvent()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				printEvent(formatter, ev)
			}
		},
	}
}

func printEvent(f *output.Formatter, ev daemon.Event) {
	switch ev.Event {
	case "fragment":
		f.LiveFragment(ev.Text)
	case "status":
		switch {
		case ev.Error != "":
			f.Error(ev.Error)
		case ev.DiarizationComplete != nil && *ev.DiarizationComplete:
			f.Success("Speaker diarization complete")
		case ev.Recording != nil && *ev.Recording:
			f.Info("Recording started: " + ev.MeetingID)
		case ev.Processing != nil && *ev.Processing:
			f.Info("Recording stopped, diarization in progress")
		default:
			f.Info("Idle")
		}
	case "library":
		f.Info("Meeting library updated")
	}
}
