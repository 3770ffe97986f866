package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/devbydaniel/meetingd/internal/audio"
	"github.com/devbydaniel/meetingd/internal/broadcast"
	"github.com/devbydaniel/meetingd/internal/recorder"
)

// Server accepts NDJSON commands on a Unix socket and streams events to
// subscribers.
type Server struct {
	Recorder    *recorder.Recorder
	Enumerator  audio.Enumerator
	Broadcaster *broadcast.Broadcaster
	Logger      *slog.Logger
}

// ListenAndServe listens on socketPath until ctx is cancelled. A stale socket
// file from a previous run is removed first.
func (s *Server) ListenAndServe(ctx context.Context, socketPath string) error {
	os.Remove(socketPath)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log().Info("daemon listening", "socket", socketPath)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			enc.Encode(Response{OK: false, Error: "malformed command"})
			continue
		}

		if cmd.Cmd == "subscribe" {
			enc.Encode(Response{OK: true})
			s.streamEvents(ctx, conn, enc)
			return
		}

		enc.Encode(s.dispatch(ctx, cmd))
	}
}

func (s *Server) dispatch(ctx context.Context, cmd Command) Response {
	switch cmd.Cmd {
	case "start":
		meetingID, err := s.Recorder.Start(ctx, cmd.Title, cmd.Room, cmd.Device)
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true, MeetingID: meetingID, Recording: BoolPtr(true)}

	case "stop":
		stopped, err := s.Recorder.Stop(ctx)
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true, Stopped: BoolPtr(stopped)}

	case "status":
		rec, meetingID := s.Recorder.Recording()
		return Response{
			OK:         true,
			MeetingID:  meetingID,
			Recording:  BoolPtr(rec),
			Processing: BoolPtr(s.Recorder.Processing()),
		}

	case "devices":
		devices, err := s.Enumerator.ListInputDevices(ctx)
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		infos := make([]DeviceInfo, len(devices))
		for i, d := range devices {
			infos[i] = DeviceInfo{Name: d.Name, ID: d.ID}
		}
		return Response{OK: true, Devices: infos}

	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", cmd.Cmd)}
	}
}

// streamEvents forwards broadcaster events to one subscribed connection until
// it disconnects or the server shuts down.
func (s *Server) streamEvents(ctx context.Context, conn net.Conn, enc *json.Encoder) {
	events, cancel := s.Broadcaster.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := enc.Encode(toWireEvent(ev)); err != nil {
				return
			}
		}
	}
}

func toWireEvent(ev broadcast.Event) Event {
	switch {
	case ev.Status != nil:
		st := ev.Status
		out := Event{
			Event:     "status",
			Recording: BoolPtr(st.Recording),
			MeetingID: st.MeetingID,
			Error:     st.Error,
		}
		out.Processing = BoolPtr(st.Processing)
		if st.DiarizationComplete {
			out.DiarizationComplete = BoolPtr(true)
		}
		return out
	case ev.Fragment != nil:
		f := ev.Fragment
		return Event{
			Event:     "fragment",
			MeetingID: f.MeetingID,
			Text:      f.Text,
			Start:     floatPtr(f.Start),
			End:       floatPtr(f.End),
		}
	default:
		return Event{Event: "library"}
	}
}

func (s *Server) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
