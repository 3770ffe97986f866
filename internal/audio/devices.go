// Package audio drives the external capture subsystem: device enumeration,
// the capture/recognition process pair, and raw audio conversion.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Device is one audio input endpoint. ID is the string the capture subsystem
// accepts as a capture handle; it may differ from the display name.
type Device struct {
	Name string
	ID   string
}

// Enumerator lists the available audio input devices.
type Enumerator interface {
	ListInputDevices(ctx context.Context) ([]Device, error)
}

// FFmpegEnumerator enumerates DirectShow devices by parsing ffmpeg's
// device-listing diagnostic output.
type FFmpegEnumerator struct {
	FFmpegPath string
}

// ListInputDevices spawns the capture subsystem in device-listing mode and
// parses its stderr. A spawn failure (binary missing) is returned as an error;
// the listing invocation itself always exits non-zero and that is not a failure.
func (e *FFmpegEnumerator) ListInputDevices(ctx context.Context) ([]Device, error) {
	cmd := exec.CommandContext(ctx, e.FFmpegPath,
		"-list_devices", "true",
		"-f", "dshow",
		"-i", "dummy",
	)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// The dummy input makes ffmpeg exit non-zero after printing the list.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("listing devices: %w", err)
		}
	}

	return parseDeviceList(stderr.String()), nil
}

var (
	deviceNameRe = regexp.MustCompile(`\[dshow @ [^\]]+\]\s+"([^"]+)"`)
	quotedRe     = regexp.MustCompile(`"([^"]+)"`)
)

// parseDeviceList extracts audio capture devices from dshow diagnostic output.
// The output interleaves an audio section and a video section; only audio
// entries count. A device's ID defaults to its display name and is overwritten
// by an "Alternative name" line when one follows, because dshow sometimes needs
// the opaque alternative string as the actual capture handle.
func parseDeviceList(output string) []Device {
	var devices []Device
	inAudioSection := false
	current := -1 // index into devices of the candidate awaiting an alternative name

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "DirectShow audio devices"):
			inAudioSection = true
			continue
		case strings.Contains(line, "DirectShow video devices"):
			inAudioSection = false
			continue
		}

		if m := deviceNameRe.FindStringSubmatch(line); m != nil && !strings.Contains(line, "Alternative name") {
			name := m[1]
			if name == "dummy" || strings.HasPrefix(name, "@device_") {
				current = -1
				continue
			}
			if strings.Contains(line, "(audio)") || (inAudioSection && !strings.Contains(line, "(video)")) {
				devices = append(devices, Device{Name: name, ID: name})
				current = len(devices) - 1
			} else {
				current = -1
			}
			continue
		}

		if current >= 0 && strings.Contains(line, "Alternative name") {
			if m := quotedRe.FindStringSubmatch(line); m != nil {
				devices[current].ID = m[1]
			}
		}
	}

	return devices
}
