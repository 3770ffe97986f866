// Package daemon implements the meetingd control surface: NDJSON commands and
// event streaming over a Unix socket.
package daemon

// Command is sent from a client to the daemon.
type Command struct {
	Cmd    string `json:"cmd"`
	Title  string `json:"title,omitempty"`
	Room   string `json:"room,omitempty"`
	Device string `json:"device,omitempty"`
}

// DeviceInfo is one entry of a "devices" response.
type DeviceInfo struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK         bool         `json:"ok"`
	MeetingID  string       `json:"meetingId,omitempty"`
	Recording  *bool        `json:"recording,omitempty"`
	Processing *bool        `json:"processing,omitempty"`
	Stopped    *bool        `json:"stopped,omitempty"`
	Devices    []DeviceInfo `json:"devices,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Event is streamed to subscribed clients.
type Event struct {
	Event string `json:"event"` // "status", "fragment" or "library"

	// status fields
	Recording           *bool  `json:"recording,omitempty"`
	Processing          *bool  `json:"processing,omitempty"`
	DiarizationComplete *bool  `json:"diarizationComplete,omitempty"`
	Error               string `json:"error,omitempty"`

	// fragment fields
	MeetingID string   `json:"meetingId,omitempty"`
	Text      string   `json:"text,omitempty"`
	Start     *float64 `json:"start,omitempty"`
	End       *float64 `json:"end,omitempty"`
}

// BoolPtr returns a pointer to b. Convenience for building responses.
func BoolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }
