package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devbydaniel/meetingd/internal/app"
	"github.com/devbydaniel/meetingd/internal/logger"
)

func NewServeCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the recording daemon",
		Long:  "Run the daemon: open the meeting store, listen on the control socket, and serve start/stop/status/devices/subscribe commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(logger.Config{
				Level:      slog.LevelInfo,
				JSONFormat: deps.Config.LogJSON,
			})
			logger.SetDefault(log)

			application, err := app.New(deps.Config, log)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if err := application.Server.ListenAndServe(ctx, deps.Config.SocketPath); err != nil {
				return err
			}

			// Shut down an active recording cleanly before exiting.
			if stopped, err := application.Recorder.Stop(context.Background()); err != nil {
				log.Error("stopping recording on shutdown", "err", err)
			} else if stopped {
				log.Info("active recording stopped on shutdown")
			}

			return nil
		},
	}
}
