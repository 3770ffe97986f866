package cli

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/meetingd/internal/output"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(os.Stdout)
			ok := true

			if _, err := exec.LookPath(deps.Config.FFmpegPath); err != nil {
				f.SetupCheck("ffmpeg", false, "not found at "+deps.Config.FFmpegPath)
				ok = false
			} else {
				f.SetupCheck("ffmpeg", true, deps.Config.FFmpegPath)
			}

			if _, err := exec.LookPath(deps.Config.PythonPath); err != nil {
				f.SetupCheck("python", false, "not found at "+deps.Config.PythonPath)
				ok = false
			} else {
				f.SetupCheck("python", true, deps.Config.PythonPath)
			}

			if _, err := os.Stat(deps.Config.STTScript); err != nil {
				f.SetupCheck("recognizer script", false, "missing: "+deps.Config.STTScript)
				ok = false
			} else {
				f.SetupCheck("recognizer script", true, deps.Config.STTScript)
			}

			if _, err := os.Stat(deps.Config.DiarizeScript); err != nil {
				f.SetupCheck("diarization script", false, "missing: "+deps.Config.DiarizeScript)
				ok = false
			} else {
				f.SetupCheck("diarization script", true, deps.Config.DiarizeScript)
			}

			f.SetupCheck("data directory", true, deps.Config.DataDir)

			if ok {
				f.Success("\nAll prerequisites met. Ready to record!")
			} else {
				f.Warning("\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}
