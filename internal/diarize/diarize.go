// Package diarize runs the offline speaker-diarization job and reconciles its
// segments against a meeting's stored transcript.
package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/shopspring/decimal"
)

// Segment is one speaker-labeled time interval, in seconds relative to the
// start of the recording. Segments are ephemeral: consumed during alignment,
// never persisted.
type Segment struct {
	Speaker string
	Start   float64
	End     float64
}

// Runner executes the offline diarization job on a finished audio file.
type Runner interface {
	Run(ctx context.Context, audioPath string) ([]Segment, error)
}

// PyannoteRunner invokes the bundled python diarization script.
type PyannoteRunner struct {
	PythonPath string
	Script     string
}

type rawSegment struct {
	Speaker string          `json:"speaker"`
	Start   decimal.Decimal `json:"start"`
	End     decimal.Decimal `json:"end"`
}

// Run executes the script and parses its stdout. The script reports failure
// as a JSON document with a top-level "error" field.
func (r *PyannoteRunner) Run(ctx context.Context, audioPath string) ([]Segment, error) {
	cmd := exec.CommandContext(ctx, r.PythonPath, r.Script, audioPath)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running diarization: %w (stderr: %s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	return ParseResult(out)
}

// ParseResult decodes the diarization job's JSON output: either an array of
// segments or an object carrying an error message.
func ParseResult(out []byte) ([]Segment, error) {
	out = bytes.TrimSpace(out)

	var failure struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(out, &failure); err == nil && failure.Error != "" {
		return nil, errors.New(failure.Error)
	}

	var raw []rawSegment
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("decoding diarization output: %w", err)
	}

	segments := make([]Segment, len(raw))
	for i, s := range raw {
		segments[i] = Segment{
			Speaker: s.Speaker,
			Start:   s.Start.InexactFloat64(),
			End:     s.End.InexactFloat64(),
		}
	}
	return segments, nil
}
