package observer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// ReadingMessageID tags reading records in logs.
	ReadingMessageID = "pulsewatch.reading"
	// CommandMessageID identifies start/stop commands on message buses.
	CommandMessageID = "pulsewatch.command"
)

// Reading is a normalized sensor sample.
type Reading struct {
	ID        uuid.UUID `json:"id"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Int truncates the value toward zero.
func (r Reading) Int() int {
	return int(r.Value)
}

// EventKind tags an Event.
type EventKind int

const (
	// KindReading carries a Reading.
	KindReading EventKind = iota + 1
	// KindStreamEnded marks that monitoring stopped.
	KindStreamEnded
	// KindFault carries an error raised while starting or streaming.
	KindFault
)

func (k EventKind) String() string {
	switch k {
	case KindReading:
		return "reading"
	case KindStreamEnded:
		return "stream_ended"
	case KindFault:
		return "fault"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is what subscribers receive. Reading is set only for KindReading
// and Err only for KindFault.
type Event struct {
	Kind    EventKind
	Reading Reading
	Err     error
}

func readingEvent(r Reading) Event { return Event{Kind: KindReading, Reading: r} }
func endedEvent() Event           { return Event{Kind: KindStreamEnded} }
func faultEvent(err error) Event  { return Event{Kind: KindFault, Err: err} }

// Command is a start/stop instruction sent to an observer.
type Command string

const (
	CommandStart Command = "start"
	CommandStop  Command = "stop"
)

// ParseCommand parses a command name, ignoring case and surrounding space.
func ParseCommand(s string) (Command, error) {
	switch Command(strings.ToLower(strings.TrimSpace(s))) {
	case CommandStart:
		return CommandStart, nil
	case CommandStop:
		return CommandStop, nil
	default:
		return "", fmt.Errorf("unknown command %q", s)
	}
}
