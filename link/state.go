package link

import "fmt"

// State is the link-side connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StdoutDelivery selects how WriteStdout text reaches subscribers.
type StdoutDelivery int

const (
	// StdoutImmediate delivers each WriteStdout frame as it arrives.
	StdoutImmediate StdoutDelivery = iota

	// StdoutBatched accumulates text and delivers it right before the next
	// status report.
	StdoutBatched
)

func (d StdoutDelivery) String() string {
	switch d {
	case StdoutImmediate:
		return "immediate"
	case StdoutBatched:
		return "batched"
	default:
		return fmt.Sprintf("delivery(%d)", int(d))
	}
}

// ParseStdoutDelivery parses "immediate" or "batched".
func ParseStdoutDelivery(s string) (StdoutDelivery, error) {
	switch s {
	case "", "immediate":
		return StdoutImmediate, nil
	case "batched":
		return StdoutBatched, nil
	default:
		return 0, fmt.Errorf("unknown stdout delivery %q (want immediate or batched)", s)
	}
}
