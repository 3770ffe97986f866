package audio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// ErrRawMissing reports that the capture process left no raw audio behind, so
// the final artifact cannot be produced.
var ErrRawMissing = errors.New("raw recording file missing")

const (
	sampleRate = 16000
	channels   = 1
	gain       = "4.0"
)

// recognizerLine is one newline-delimited record from the streaming recognizer.
type recognizerLine struct {
	Text string `json:"text"`
}

// Pipeline runs the capture/recognition process pair for one recording at a
// time. The capture process fans its stream out to a raw file and a pipe; the
// recognition process reads the pipe and emits transcript fragments.
type Pipeline struct {
	FFmpegPath string
	PythonPath string
	STTScript  string
	LogDir     string
	Logger     *slog.Logger

	mu          sync.Mutex
	gen         int // generation token; guards callbacks from replaced processes
	capture     *exec.Cmd
	recognizer  *exec.Cmd
	captureDone chan struct{}
	outputPath  string
	logFile     *os.File
}

// Start spawns the process pair recording from device into outputPath (the
// final artifact location; the raw stream lands at outputPath+".raw"). Each
// non-empty recognized text fragment is delivered to onFragment. Any process
// pair left over from a previous start is force-terminated first.
func (p *Pipeline) Start(device, outputPath string, onFragment func(text string)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.killLocked()
	p.gen++
	gen := p.gen
	p.outputPath = outputPath

	log := p.logger()
	log.Info("starting capture pipeline", "device", device, "output", outputPath)

	p.openLogFile()

	// Recognition process first so its stdin is ready for the capture fan-out.
	recognizer := exec.Command(p.PythonPath, "-u", p.STTScript)
	recognizer.Stderr = p.logWriter("recognizer")

	recStdin, err := recognizer.StdinPipe()
	if err != nil {
		return fmt.Errorf("recognizer stdin: %w", err)
	}
	recStdout, err := recognizer.StdoutPipe()
	if err != nil {
		return fmt.Errorf("recognizer stdout: %w", err)
	}

	if err := recognizer.Start(); err != nil {
		return fmt.Errorf("starting recognizer: %w", err)
	}
	p.recognizer = recognizer

	go scanRecognizerOutput(recStdout, onFragment)
	go func() {
		err := recognizer.Wait()
		log.Info("recognizer exited", "err", err)
	}()

	rawPath := outputPath + ".raw"
	capture := exec.Command(p.FFmpegPath,
		"-f", "dshow",
		"-i", "audio="+device,
		"-ac", fmt.Sprint(channels),
		"-ar", fmt.Sprint(sampleRate),
		"-filter_complex", "[0:a]volume="+gain+",asplit[file_out][stream_out]",
		"-map", "[file_out]",
		"-c:a", "pcm_s16le",
		"-y",
		"-f", "s16le",
		rawPath,
		"-map", "[stream_out]",
		"-c:a", "pcm_s16le",
		"-f", "s16le",
		"pipe:1",
	)
	capture.Stdout = recStdin
	capture.Stderr = p.logWriter("capture")

	if err := capture.Start(); err != nil {
		recStdin.Close()
		p.killLocked()
		return fmt.Errorf("starting capture: %w", err)
	}
	p.capture = capture

	done := make(chan struct{})
	p.captureDone = done

	go func() {
		err := capture.Wait()
		recStdin.Close() // pipe closure tells the recognizer to finish
		log.Info("capture exited", "err", err)

		p.mu.Lock()
		if p.gen == gen {
			// Still the current pair: clear the handle and make sure the
			// recognizer goes down with the capture process.
			p.capture = nil
			if p.recognizer != nil && p.recognizer.Process != nil {
				p.recognizer.Process.Kill()
			}
		}
		p.mu.Unlock()

		close(done)
	}()

	return nil
}

// Stop terminates the process pair, waits for the capture process to exit and
// converts the raw stream into the final artifact. It returns once the
// artifact is on disk, or ErrRawMissing when there is nothing to convert.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	gen := p.gen
	capture := p.capture
	recognizer := p.recognizer
	done := p.captureDone
	outputPath := p.outputPath
	p.mu.Unlock()

	log := p.logger()
	log.Info("stopping capture pipeline")

	// Capture goes down first; its pipe closure ends the recognizer. The
	// explicit recognizer kill is a fallback.
	if capture != nil && capture.Process != nil {
		capture.Process.Kill()
	}
	if recognizer != nil && recognizer.Process != nil {
		recognizer.Process.Kill()
	}

	if done == nil {
		p.closeLogFile()
		return nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		p.closeLogFile()
		return ctx.Err()
	}

	err := p.convert(ctx, outputPath)

	// A newer Start may have replaced the session while the conversion ran;
	// only the still-current stop may clear the session fields.
	p.mu.Lock()
	if p.gen == gen {
		p.captureDone = nil
		p.outputPath = ""
	}
	p.mu.Unlock()

	p.closeLogFile()
	return err
}

// convert turns outputPath+".raw" (s16le mono 16 kHz) into the final wav.
func (p *Pipeline) convert(ctx context.Context, outputPath string) error {
	rawPath := outputPath + ".raw"
	info, err := os.Stat(rawPath)
	if err != nil {
		p.logger().Error("raw recording missing, skipping conversion", "path", rawPath)
		return ErrRawMissing
	}
	p.logger().Info("converting raw recording", "path", rawPath, "bytes", info.Size())

	cmd := exec.CommandContext(ctx, p.FFmpegPath,
		"-f", "s16le",
		"-ar", fmt.Sprint(sampleRate),
		"-ac", fmt.Sprint(channels),
		"-i", rawPath,
		"-y",
		outputPath,
	)
	cmd.Stderr = p.logWriter("converter")

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("converting recording: %w", err)
	}

	os.Remove(rawPath)
	return nil
}

// scanRecognizerOutput reads newline-delimited JSON records and forwards each
// non-empty text field. Malformed lines and records without text are skipped.
func scanRecognizerOutput(r io.Reader, onFragment func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec recognizerLine
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Text != "" {
			onFragment(rec.Text)
		}
	}
}

// killLocked force-terminates any tracked processes. Callers hold p.mu.
func (p *Pipeline) killLocked() {
	if p.capture != nil && p.capture.Process != nil {
		p.capture.Process.Kill()
		p.capture = nil
	}
	if p.recognizer != nil && p.recognizer.Process != nil {
		p.recognizer.Process.Kill()
		p.recognizer = nil
	}
}

func (p *Pipeline) openLogFile() {
	if p.LogDir == "" {
		return
	}
	f, err := os.OpenFile(filepath.Join(p.LogDir, "streaming-debug.log"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		p.logger().Warn("opening pipeline log file", "err", err)
		return
	}
	if p.logFile != nil {
		p.logFile.Close()
	}
	p.logFile = f
}

func (p *Pipeline) closeLogFile() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.logFile != nil {
		p.logFile.Close()
		p.logFile = nil
	}
}

// logWriter returns the sink for a subprocess's stderr: the diagnostic log
// file when available, otherwise discard.
func (p *Pipeline) logWriter(name string) io.Writer {
	if p.logFile != nil {
		return &prefixWriter{w: p.logFile, prefix: "[" + name + "] "}
	}
	return io.Discard
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// prefixWriter prepends a tag to every chunk written through it.
type prefixWriter struct {
	w      io.Writer
	prefix string
	mu     sync.Mutex
}

func (pw *prefixWriter) Write(b []byte) (int, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if _, err := io.WriteString(pw.w, pw.prefix); err != nil {
		return 0, err
	}
	return pw.w.Write(b)
}
