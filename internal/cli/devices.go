package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/meetingd/internal/audio"
	"github.com/devbydaniel/meetingd/internal/output"
)

func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)

			enumerator := &audio.FFmpegEnumerator{FFmpegPath: deps.Config.FFmpegPath}
			devices, err := enumerator.ListInputDevices(cmd.Context())
			if err != nil {
				return err
			}

			if len(devices) == 0 {
				formatter.Info("No input devices found")
				return nil
			}

			formatter.DeviceListHeader()
			for _, d := range devices {
				formatter.DeviceListItem(d.Name, d.ID)
			}
			return nil
		},
	}
}
