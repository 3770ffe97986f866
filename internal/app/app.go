package app

import (
	"log/slog"

	"github.com/devbydaniel/meetingd/config"
	"github.com/devbydaniel/meetingd/internal/audio"
	"github.com/devbydaniel/meetingd/internal/broadcast"
	"github.com/devbydaniel/meetingd/internal/daemon"
	"github.com/devbydaniel/meetingd/internal/diarize"
	"github.com/devbydaniel/meetingd/internal/recorder"
	"github.com/devbydaniel/meetingd/internal/store"
)

// App wires the daemon's components together.
type App struct {
	Store       *store.Store
	Recorder    *recorder.Recorder
	Enumerator  audio.Enumerator
	Broadcaster *broadcast.Broadcaster
	Server      *daemon.Server
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	enumerator := &audio.FFmpegEnumerator{FFmpegPath: cfg.FFmpegPath}

	pipeline := &audio.Pipeline{
		FFmpegPath: cfg.FFmpegPath,
		PythonPath: cfg.PythonPath,
		STTScript:  cfg.STTScript,
		LogDir:     cfg.LogDir,
		Logger:     log,
	}

	diarizer := &diarize.PyannoteRunner{
		PythonPath: cfg.PythonPath,
		Script:     cfg.DiarizeScript,
	}

	broadcaster := broadcast.New()

	rec := recorder.New(recorder.Options{
		Store:         st,
		Pipeline:      pipeline,
		Enumerator:    enumerator,
		Diarizer:      diarizer,
		Broadcaster:   broadcaster,
		RecordingsDir: cfg.RecordingsDir,
		Logger:        log,
	})

	srv := &daemon.Server{
		Recorder:    rec,
		Enumerator:  enumerator,
		Broadcaster: broadcaster,
		Logger:      log,
	}

	return &App{
		Store:       st,
		Recorder:    rec,
		Enumerator:  enumerator,
		Broadcaster: broadcaster,
		Server:      srv,
	}, nil
}

// Close releases the app's resources after detached work has drained.
func (a *App) Close() error {
	a.Recorder.Wait()
	return a.Store.Close()
}
