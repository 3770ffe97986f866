// Package broadcast fans session status, transcript fragments and library
// change notifications out to subscribers.
package broadcast

import "sync"

// Status describes a session-state transition or pipeline milestone.
type Status struct {
	Recording           bool   `json:"recording"`
	Processing          bool   `json:"processing"`
	DiarizationComplete bool   `json:"diarizationComplete,omitempty"`
	MeetingID           string `json:"meetingId,omitempty"`
	Error               string `json:"error,omitempty"`
}

// FragmentEvent carries one live transcript fragment.
type FragmentEvent struct {
	MeetingID string  `json:"meetingId"`
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

// Event is the union delivered to subscribers.
type Event struct {
	Status         *Status        `json:"status,omitempty"`
	Fragment       *FragmentEvent `json:"fragment,omitempty"`
	LibraryChanged bool           `json:"libraryChanged,omitempty"`
}

// Broadcaster delivers events to any number of subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func New() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber and returns its event channel together
// with a cancel func that closes it.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Status publishes a session-status event.
func (b *Broadcaster) Status(s Status) {
	b.publish(Event{Status: &s})
}

// Fragment publishes a transcript-fragment event.
func (b *Broadcaster) Fragment(f FragmentEvent) {
	b.publish(Event{Fragment: &f})
}

// LibraryChanged signals that the set of stored meetings changed.
func (b *Broadcaster) LibraryChanged() {
	b.publish(Event{LibraryChanged: true})
}
