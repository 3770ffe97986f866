package recorder

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/devbydaniel/meetingd/internal/audio"
	"github.com/devbydaniel/meetingd/internal/broadcast"
	"github.com/devbydaniel/meetingd/internal/diarize"
	"github.com/devbydaniel/meetingd/internal/store"
)

type fakePipeline struct {
	mu         sync.Mutex
	startCalls int
	stopCalls  int
	device     string
	outputPath string
	onFragment func(string)
	startErr   error
	// writeAudioOnStop simulates the raw->wav conversion producing the artifact.
	writeAudioOnStop bool
}

func (p *fakePipeline) Start(device, outputPath string, onFragment func(string)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.startCalls++
	p.device = device
	p.outputPath = outputPath
	p.onFragment = onFragment
	return nil
}

func (p *fakePipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCalls++
	if p.writeAudioOnStop {
		return os.WriteFile(p.outputPath, []byte("RIFFwav"), 0o644)
	}
	return audio.ErrRawMissing
}

type fakeEnumerator struct {
	devices []audio.Device
	err     error
}

func (e *fakeEnumerator) ListInputDevices(ctx context.Context) ([]audio.Device, error) {
	return e.devices, e.err
}

type fakeDiarizer struct {
	segments []diarize.Segment
	err      error
}

func (d *fakeDiarizer) Run(ctx context.Context, audioPath string) ([]diarize.Segment, error) {
	return d.segments, d.err
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	rec      *Recorder
	pipeline *fakePipeline
	store    *store.Store
	bus      *broadcast.Broadcaster
	clock    *clock
	events   <-chan broadcast.Event
}

func newFixture(t *testing.T, pipeline *fakePipeline, diarizer diarize.Runner) *fixture {
	t.Helper()

	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := broadcast.New()
	events, cancel := bus.Subscribe()
	t.Cleanup(cancel)

	clk := &clock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}

	rec := New(Options{
		Store:    st,
		Pipeline: pipeline,
		Enumerator: &fakeEnumerator{devices: []audio.Device{
			{Name: "Mic1", ID: "@device_x"},
			{Name: "Mic2", ID: "@device_y"},
		}},
		Diarizer:      diarizer,
		Broadcaster:   bus,
		RecordingsDir: t.TempDir(),
	})
	rec.now = clk.Now

	return &fixture{rec: rec, pipeline: pipeline, store: st, bus: bus, clock: clk, events: events}
}

func (f *fixture) drainEvents() []broadcast.Event {
	var events []broadcast.Event
	for {
		select {
		case ev := <-f.events:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestStartWhileRecordingRejected(t *testing.T) {
	f := newFixture(t, &fakePipeline{}, &fakeDiarizer{})
	ctx := context.Background()

	meetingID, err := f.rec.Start(ctx, "first", "", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := f.rec.Start(ctx, "second", "", ""); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second Start err = %v, want ErrAlreadyRecording", err)
	}

	// The original session is untouched.
	recording, id := f.rec.Recording()
	if !recording || id != meetingID {
		t.Errorf("recording = %v id = %q, want active session %q", recording, id, meetingID)
	}
	if f.pipeline.startCalls != 1 {
		t.Errorf("pipeline started %d times, want 1", f.pipeline.startCalls)
	}
}

func TestStartSelectsFirstDevice(t *testing.T) {
	f := newFixture(t, &fakePipeline{}, &fakeDiarizer{})

	if _, err := f.rec.Start(context.Background(), "m", "", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if f.pipeline.device != "@device_x" {
		t.Errorf("device = %q, want first enumerated id", f.pipeline.device)
	}
}

func TestStartNoDevices(t *testing.T) {
	f := newFixture(t, &fakePipeline{}, &fakeDiarizer{})
	f.rec.enumerator = &fakeEnumerator{}

	if _, err := f.rec.Start(context.Background(), "m", "", ""); !errors.Is(err, ErrNoInputDevice) {
		t.Fatalf("err = %v, want ErrNoInputDevice", err)
	}

	if recording, _ := f.rec.Recording(); recording {
		t.Error("recorder should be idle after device failure")
	}
}

func TestStartPipelineFailureResetsState(t *testing.T) {
	pipeline := &fakePipeline{startErr: errors.New("spawn failed")}
	f := newFixture(t, pipeline, &fakeDiarizer{})
	ctx := context.Background()

	if _, err := f.rec.Start(ctx, "m", "", ""); err == nil {
		t.Fatal("expected start error")
	}

	if recording, _ := f.rec.Recording(); recording {
		t.Error("recorder should be idle after pipeline failure")
	}

	// No half-started meeting row is left behind.
	meetings, err := f.store.Meetings(ctx)
	if err != nil {
		t.Fatalf("Meetings: %v", err)
	}
	if len(meetings) != 0 {
		t.Errorf("got %d meetings, want 0", len(meetings))
	}

	// A new session can start once the failure is gone.
	pipeline.startErr = nil
	if _, err := f.rec.Start(ctx, "m", "", ""); err != nil {
		t.Fatalf("Start after recovery: %v", err)
	}
}

func TestFragmentTiming(t *testing.T) {
	f := newFixture(t, &fakePipeline{}, &fakeDiarizer{})
	ctx := context.Background()

	meetingID, err := f.rec.Start(ctx, "m", "", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.clock.Advance(5 * time.Second)
	f.pipeline.onFragment("hello")

	frags, err := f.store.FragmentsForMeeting(ctx, meetingID)
	if err != nil {
		t.Fatalf("FragmentsForMeeting: %v", err)
	}
	if len(frags) != 1 {
		t.Fatalf("got %d fragments, want 1", len(frags))
	}
	if frags[0].Start != 3.0 || frags[0].End != 5.0 {
		t.Errorf("fragment span = [%v, %v], want [3, 5]", frags[0].Start, frags[0].End)
	}
}

func TestFragmentTimingClampsToZero(t *testing.T) {
	f := newFixture(t, &fakePipeline{}, &fakeDiarizer{})
	ctx := context.Background()

	meetingID, _ := f.rec.Start(ctx, "m", "", "")

	f.clock.Advance(500 * time.Millisecond)
	f.pipeline.onFragment("early")

	frags, _ := f.store.FragmentsForMeeting(ctx, meetingID)
	if len(frags) != 1 {
		t.Fatalf("got %d fragments, want 1", len(frags))
	}
	if frags[0].Start != 0 {
		t.Errorf("start = %v, want 0", frags[0].Start)
	}
	if frags[0].End < frags[0].Start {
		t.Errorf("end %v before start %v", frags[0].End, frags[0].Start)
	}
}

func TestFragmentsOrderedAcrossSession(t *testing.T) {
	f := newFixture(t, &fakePipeline{}, &fakeDiarizer{})
	ctx := context.Background()

	meetingID, _ := f.rec.Start(ctx, "m", "", "")

	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Second)
		f.pipeline.onFragment("fragment")
	}

	frags, _ := f.store.FragmentsForMeeting(ctx, meetingID)
	if len(frags) != 5 {
		t.Fatalf("got %d fragments, want 5", len(frags))
	}
	for i := 1; i < len(frags); i++ {
		if frags[i].Start < frags[i-1].Start {
			t.Errorf("fragment %d start %v before %v", i, frags[i].Start, frags[i-1].Start)
		}
	}
}

func TestFragmentAfterStopDropped(t *testing.T) {
	f := newFixture(t, &fakePipeline{writeAudioOnStop: true}, &fakeDiarizer{})
	ctx := context.Background()

	meetingID, _ := f.rec.Start(ctx, "m", "", "")
	onFragment := f.pipeline.onFragment

	if _, err := f.rec.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	f.rec.Wait()

	onFragment("too late")

	frags, _ := f.store.FragmentsForMeeting(ctx, meetingID)
	if len(frags) != 0 {
		t.Errorf("got %d fragments, want 0 (late fragment must be dropped)", len(frags))
	}
}

func TestStopWhenIdle(t *testing.T) {
	f := newFixture(t, &fakePipeline{}, &fakeDiarizer{})

	stopped, err := f.rec.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped {
		t.Error("stopped = true, want false when idle")
	}
}

func TestStopFinalizesMeetingAndRunsDiarizationDetached(t *testing.T) {
	diarizer := &fakeDiarizer{segments: []diarize.Segment{
		{Speaker: "SPEAKER_00", Start: 0, End: 60},
	}}
	f := newFixture(t, &fakePipeline{writeAudioOnStop: true}, diarizer)
	ctx := context.Background()

	meetingID, _ := f.rec.Start(ctx, "m", "Room B", "")
	f.clock.Advance(90 * time.Second)
	f.pipeline.onFragment("hello")

	stopped, err := f.rec.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !stopped {
		t.Fatal("stopped = false, want true")
	}

	// Stop transitions to idle synchronously, before diarization finishes.
	if recording, _ := f.rec.Recording(); recording {
		t.Error("recorder should be idle immediately after Stop")
	}

	f.rec.Wait()

	m, err := f.store.Meeting(ctx, meetingID)
	if err != nil {
		t.Fatalf("Meeting: %v", err)
	}
	if m.EndedAt == nil {
		t.Error("meeting end time not set")
	}
	if m.Duration != 90 {
		t.Errorf("duration = %d, want 90", m.Duration)
	}
	if m.AudioHash == "" {
		t.Error("audio hash not recorded")
	}

	parts, _ := f.store.ParticipantsForMeeting(ctx, meetingID)
	if len(parts) != 1 {
		t.Fatalf("got %d participants, want 1", len(parts))
	}

	frags, _ := f.store.FragmentsForMeeting(ctx, meetingID)
	if frags[0].SpeakerID == nil || *frags[0].SpeakerID != parts[0].ID {
		t.Error("fragment not assigned to diarized speaker")
	}

	events := f.drainEvents()
	var sawProcessing, sawComplete, sawLibrary bool
	for _, ev := range events {
		if ev.Status != nil && ev.Status.Processing {
			sawProcessing = true
		}
		if ev.Status != nil && ev.Status.DiarizationComplete {
			sawComplete = true
		}
		if ev.LibraryChanged {
			sawLibrary = true
		}
	}
	if !sawProcessing || !sawComplete || !sawLibrary {
		t.Errorf("events missing: processing=%v complete=%v library=%v",
			sawProcessing, sawComplete, sawLibrary)
	}
}

func TestStopDiarizationFailureLeavesSpeakersNull(t *testing.T) {
	diarizer := &fakeDiarizer{err: errors.New("pipeline load failed")}
	f := newFixture(t, &fakePipeline{writeAudioOnStop: true}, diarizer)
	ctx := context.Background()

	meetingID, _ := f.rec.Start(ctx, "m", "", "")
	f.clock.Advance(time.Second)
	f.pipeline.onFragment("hello")

	if _, err := f.rec.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	f.rec.Wait()

	frags, _ := f.store.FragmentsForMeeting(ctx, meetingID)
	if frags[0].SpeakerID != nil {
		t.Error("fragment should keep null speaker after diarization failure")
	}

	var sawError bool
	for _, ev := range f.drainEvents() {
		if ev.Status != nil && ev.Status.Error == "diarization failed" {
			sawError = true
		}
	}
	if !sawError {
		t.Error("diarization failure was not broadcast")
	}

	// Failure never blocks the next session.
	if _, err := f.rec.Start(ctx, "next", "", ""); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
}

func TestStopMissingRecordingFileStillResolves(t *testing.T) {
	// The pipeline produces no artifact: conversion found nothing to convert.
	f := newFixture(t, &fakePipeline{writeAudioOnStop: false}, &fakeDiarizer{})
	ctx := context.Background()

	f.rec.Start(ctx, "m", "", "")

	stopped, err := f.rec.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !stopped {
		t.Fatal("stopped = false, want true")
	}
	f.rec.Wait()

	var sawMissing bool
	for _, ev := range f.drainEvents() {
		if ev.Status != nil && ev.Status.Error == "recording file missing" {
			sawMissing = true
		}
	}
	if !sawMissing {
		t.Error("missing recording file was not reported")
	}

	if recording, _ := f.rec.Recording(); recording {
		t.Error("recorder should be idle")
	}
}
