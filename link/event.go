package link

import (
	"fmt"

	"github.com/moffa90/go-pybricks/protocol"
)

// EventKind discriminates inbound events.
type EventKind int

const (
	EventStatus EventKind = iota
	EventStdout
	EventAppData
)

func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventStdout:
		return "stdout"
	case EventAppData:
		return "app-data"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one decoded inbound notification.
type Event struct {
	Kind EventKind

	// Status is set for EventStatus
	Status protocol.StatusReport

	// Text is set for EventStdout
	Text string

	// Data is set for EventAppData
	Data []byte
}

// decodeEvent turns a notification frame into an Event.
func decodeEvent(frame []byte) (Event, error) {
	eventType, err := protocol.ParseEventType(frame)
	if err != nil {
		return Event{}, err
	}

	switch eventType {
	case protocol.EventStatusReport:
		report, err := protocol.ParseStatusReport(frame)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventStatus, Status: report}, nil
	case protocol.EventWriteStdout:
		text, err := protocol.ParseWriteStdout(frame)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventStdout, Text: text}, nil
	case protocol.EventWriteAppData:
		data, err := protocol.ParseWriteAppData(frame)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventAppData, Data: data}, nil
	default:
		return Event{}, &protocol.UnknownEventError{Type: eventType}
	}
}
