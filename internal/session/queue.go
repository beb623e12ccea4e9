package session

import "sync"

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventText replaces the whole story with Event.Text.
	EventText EventType = iota + 1
	// EventAppend adds Event.Text as a new line at the end of the story.
	EventAppend
	// EventRestart resets the game.
	EventRestart
	// EventHelpTick runs one pass of the struggle monitor.
	EventHelpTick
	// EventShowHelp opens help for Event.RuleID.
	EventShowHelp
	// EventHideHelp closes help for Event.RuleID.
	EventHideHelp
	// EventExport produces the story payload.
	EventExport
	// EventState reports the current state without changing it.
	EventState
)

var eventNames = [...]string{
	EventText:     "text",
	EventAppend:   "append",
	EventRestart:  "restart",
	EventHelpTick: "help_tick",
	EventShowHelp: "show_help",
	EventHideHelp: "hide_help",
	EventExport:   "export",
	EventState:    "state",
}

func (t EventType) String() string {
	if t > 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event is one request for the session loop.
type Event struct {
	Type   EventType
	Text   string
	RuleID int
	Export ExportOptions
}

// inbox is the unbounded FIFO between producers (stdin, the file watcher,
// the help ticker) and the session loop. put never blocks.
type inbox struct {
	mu      sync.Mutex
	pending []Event
	shut    bool
	wake    chan struct{} // cap 1; closed on shutdown
}

func newInbox() *inbox {
	return &inbox{wake: make(chan struct{}, 1)}
}

// put appends ev. It reports false once the inbox is shut.
func (b *inbox) put(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shut {
		return false
	}
	b.pending = append(b.pending, ev)
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return true
}

// take removes the oldest event. done is true when the inbox is shut and
// nothing is left, which is the loop's cue to return.
func (b *inbox) take() (ev Event, ok, done bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return Event{}, false, b.shut
	}
	ev = b.pending[0]
	b.pending[0] = Event{}
	b.pending = b.pending[1:]
	if len(b.pending) == 0 {
		b.pending = nil
	}
	return ev, true, false
}

// ready fires after a put, and stays fired after shutdown.
func (b *inbox) ready() <-chan struct{} {
	return b.wake
}

func (b *inbox) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// shutdown rejects further puts. Events already queued can still be taken.
func (b *inbox) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.shut {
		b.shut = true
		close(b.wake)
	}
}
