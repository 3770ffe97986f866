// Package recorder owns the recording session lifecycle: it sequences the
// capture pipeline, ingests live transcript fragments, and kicks off speaker
// diarization when a session ends.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devbydaniel/meetingd/internal/audio"
	"github.com/devbydaniel/meetingd/internal/broadcast"
	"github.com/devbydaniel/meetingd/internal/diarize"
	"github.com/devbydaniel/meetingd/internal/store"
)

var (
	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNoInputDevice is returned when no device was given and none could be found.
	ErrNoInputDevice = errors.New("no input device found")
)

// fragmentWindow is the assumed utterance lookback for live fragments: the
// recognizer emits no per-fragment timestamps, so a fragment is stamped
// [elapsed-window, elapsed].
const fragmentWindow = 2 * time.Second

// Pipeline is the capture/recognition process pair contract.
type Pipeline interface {
	Start(device, outputPath string, onFragment func(text string)) error
	Stop(ctx context.Context) error
}

// session holds the in-memory state of the one active recording.
type session struct {
	meetingID string
	startedAt time.Time
	audioPath string
}

// Recorder is the recording session state machine. At most one session is
// active at any time.
type Recorder struct {
	store         *store.Store
	pipeline      Pipeline
	enumerator    audio.Enumerator
	diarizer      diarize.Runner
	broadcaster   *broadcast.Broadcaster
	recordingsDir string
	log           *slog.Logger

	now func() time.Time

	mu         sync.Mutex
	sess       *session
	bg         sync.WaitGroup
	processing atomic.Bool
}

// Options bundles the Recorder's collaborators.
type Options struct {
	Store         *store.Store
	Pipeline      Pipeline
	Enumerator    audio.Enumerator
	Diarizer      diarize.Runner
	Broadcaster   *broadcast.Broadcaster
	RecordingsDir string
	Logger        *slog.Logger
}

func New(opts Options) *Recorder {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		store:         opts.Store,
		pipeline:      opts.Pipeline,
		enumerator:    opts.Enumerator,
		diarizer:      opts.Diarizer,
		broadcaster:   opts.Broadcaster,
		recordingsDir: opts.RecordingsDir,
		log:           log,
		now:           time.Now,
	}
}

// Start begins a new recording session. With an empty device the first
// enumerated input device is used. On any failure the recorder is back in the
// idle state and no meeting row remains.
func (r *Recorder) Start(ctx context.Context, title, room, device string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess != nil {
		return "", ErrAlreadyRecording
	}

	if device == "" {
		devices, err := r.enumerator.ListInputDevices(ctx)
		if err != nil {
			return "", fmt.Errorf("enumerating devices: %w", err)
		}
		if len(devices) == 0 {
			return "", ErrNoInputDevice
		}
		device = devices[0].ID
		r.log.Info("no device specified, using first found", "device", devices[0].Name)
	}

	startedAt := r.now()
	audioPath := filepath.Join(r.recordingsDir, fmt.Sprintf("meeting-%d.wav", startedAt.UnixMilli()))

	meeting, err := r.store.CreateMeeting(ctx, title, room, audioPath, startedAt)
	if err != nil {
		return "", fmt.Errorf("creating meeting: %w", err)
	}

	if err := r.pipeline.Start(device, audioPath, r.handleFragment); err != nil {
		// Do not leave a meeting row that looks like it is recording forever.
		if delErr := r.store.DeleteMeeting(ctx, meeting.ID); delErr != nil {
			r.log.Error("removing aborted meeting", "err", delErr)
		}
		return "", fmt.Errorf("starting pipeline: %w", err)
	}

	r.sess = &session{
		meetingID: meeting.ID,
		startedAt: startedAt,
		audioPath: audioPath,
	}

	r.broadcaster.Status(broadcast.Status{Recording: true, MeetingID: meeting.ID})
	r.log.Info("recording started", "meeting", meeting.ID, "title", title)

	return meeting.ID, nil
}

// Stop ends the active session. It returns (false, nil) when idle. It waits
// for the pipeline to shut down and the audio artifact to be finalized, then
// launches diarization detached: the caller never waits on it, its outcome is
// only reported through the broadcaster.
func (r *Recorder) Stop(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess == nil {
		return false, nil
	}

	if err := r.pipeline.Stop(ctx); err != nil {
		// A missing raw file is reported later by the diarization step; any
		// other pipeline failure must not wedge the session either.
		r.log.Error("pipeline stop", "err", err)
	}

	sess := r.sess
	endedAt := r.now()
	durationSec := int(math.Round(endedAt.Sub(sess.startedAt).Seconds()))

	hash, err := hashFile(sess.audioPath)
	if err != nil {
		r.log.Warn("hashing audio artifact", "err", err)
	}

	if err := r.store.FinishMeeting(ctx, sess.meetingID, endedAt, durationSec, hash); err != nil {
		r.log.Error("updating meeting duration", "err", err)
	}

	r.sess = nil
	r.broadcaster.Status(broadcast.Status{Recording: false, Processing: true, MeetingID: sess.meetingID})
	r.log.Info("recording stopped", "meeting", sess.meetingID, "duration_sec", durationSec)

	r.bg.Add(1)
	r.processing.Store(true)
	go r.runDiarization(sess.meetingID, sess.audioPath)

	return true, nil
}

// Recording reports whether a session is active and, if so, its meeting id.
func (r *Recorder) Recording() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return false, ""
	}
	return true, r.sess.meetingID
}

// Processing reports whether a diarization task is in flight. It does not
// block a new recording from starting.
func (r *Recorder) Processing() bool {
	return r.processing.Load()
}

// Wait blocks until all detached post-processing has finished. Used on
// daemon shutdown.
func (r *Recorder) Wait() {
	r.bg.Wait()
}

// handleFragment ingests one live transcript fragment. Fragments delivered
// while no session is active are dropped.
func (r *Recorder) handleFragment(text string) {
	if text == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return
	}

	now := r.now()
	elapsed := now.Sub(r.sess.startedAt).Seconds()
	start := math.Max(0, elapsed-fragmentWindow.Seconds())

	frag, err := r.store.InsertFragment(context.Background(), r.sess.meetingID, text, start, elapsed, now)
	if err != nil {
		r.log.Error("persisting fragment", "err", err)
		return
	}

	r.broadcaster.Fragment(broadcast.FragmentEvent{
		MeetingID: frag.MeetingID,
		Text:      frag.Text,
		Start:     frag.Start,
		End:       frag.End,
	})
}

// runDiarization is the detached post-processing task for one finished
// meeting. It never panics the recorder and never blocks a later session; all
// outcomes are delivered through the broadcaster.
func (r *Recorder) runDiarization(meetingID, audioPath string) {
	defer r.bg.Done()
	defer r.processing.Store(false)
	ctx := context.Background()

	if _, err := os.Stat(audioPath); err != nil {
		r.log.Error("recording file not found", "path", audioPath)
		r.broadcaster.Status(broadcast.Status{MeetingID: meetingID, Error: "recording file missing"})
		r.broadcaster.LibraryChanged()
		return
	}

	r.log.Info("starting diarization", "path", audioPath)
	segments, err := r.diarizer.Run(ctx, audioPath)
	if err != nil {
		r.log.Error("diarization failed", "err", err)
		r.broadcaster.Status(broadcast.Status{MeetingID: meetingID, Error: "diarization failed"})
		return
	}

	if err := diarize.Align(ctx, r.store, meetingID, segments); err != nil {
		r.log.Error("aligning diarization", "err", err)
		r.broadcaster.Status(broadcast.Status{MeetingID: meetingID, Error: "diarization failed"})
		return
	}

	r.log.Info("diarization complete", "meeting", meetingID, "segments", len(segments))
	r.broadcaster.Status(broadcast.Status{MeetingID: meetingID, DiarizationComplete: true})
	r.broadcaster.LibraryChanged()
}
