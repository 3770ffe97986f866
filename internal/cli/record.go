package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/meetingd/internal/daemon"
	"github.com/devbydaniel/meetingd/internal/output"
)

func NewStartCmd(deps *Dependencies) *cobra.Command {
	var title string
	var room string
	var device string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start recording a meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)

			client, err := daemon.Connect(deps.Config.SocketPath)
			if err != nil {
				return daemonUnavailable(err)
			}
			defer client.Close()

			resp, err := client.SendCommand(daemon.Command{
				Cmd:    "start",
				Title:  title,
				Room:   room,
				Device: device,
			})
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("starting recording: %s", resp.Error)
			}

			formatter.RecordingStarted(resp.MeetingID, title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "Untitled meeting", "Meeting title")
	cmd.Flags().StringVarP(&room, "room", "r", "", "Room label")
	cmd.Flags().StringVarP(&device, "device", "d", "", "Audio input device id (default: first available)")

	return cmd
}

func NewStopCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active recording",
		Long:  "Stop the active recording and finalize the audio file. Speaker diarization continues in the background; subscribe to events or check status to follow it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)

			client, err := daemon.Connect(deps.Config.SocketPath)
			if err != nil {
				return daemonUnavailable(err)
			}
			defer client.Close()

			resp, err := client.SendCommand(daemon.Command{Cmd: "stop"})
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("stopping recording: %s", resp.Error)
			}

			if resp.Stopped != nil && *resp.Stopped {
				formatter.RecordingStopped()
			} else {
				formatter.NotRecording()
			}
			return nil
		},
	}
}

func NewStatusCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)

			client, err := daemon.Connect(deps.Config.SocketPath)
			if err != nil {
				return daemonUnavailable(err)
			}
			defer client.Close()

			resp, err := client.SendCommand(daemon.Command{Cmd: "status"})
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("status: %s", resp.Error)
			}

			recording := resp.Recording != nil && *resp.Recording
			processing := resp.Processing != nil && *resp.Processing
			formatter.Status(recording, processing, resp.MeetingID)
			return nil
		},
	}
}

func daemonUnavailable(err error) error {
	return fmt.Errorf("daemon not reachable (is 'meetingd serve' running?): %w", err)
}
