package at

import "strings"

// EventKind enumerates the classes of unsolicited lines.
type EventKind int

const (
	EventUnrecognized EventKind = iota
	EventTransmitConfirmed
	EventDownlink
)

func (k EventKind) String() string {
	switch k {
	case EventTransmitConfirmed:
		return "transmit_confirmed"
	case EventDownlink:
		return "downlink"
	default:
		return "unrecognized"
	}
}

// Event is a classified line received outside a command window.
type Event struct {
	Kind EventKind
	// Payload is the downlink payload; set only for EventDownlink.
	Payload string
	// Raw is the trimmed line the event was classified from.
	Raw string
}

// ClassifyEvent maps one unsolicited line to an Event. A transmit
// confirmation wins over a downlink marker. The downlink payload is the
// final ':' field; the receive-window token after "+EVT:RX_" is never a
// payload, so "+EVT:RX_C" alone or with an empty last field is unrecognized.
func ClassifyEvent(line string) Event {
	line = strings.TrimSpace(line)

	switch {
	case strings.Contains(line, EvtTxDone):
		return Event{Kind: EventTransmitConfirmed, Raw: line}

	case strings.Contains(line, EvtRx):
		rest := line[strings.Index(line, EvtRx)+len(EvtRx):]
		fields := strings.Split(rest, FieldSeparator)
		if len(fields) < 2 {
			return Event{Kind: EventUnrecognized, Raw: line}
		}
		payload := strings.TrimSpace(fields[len(fields)-1])
		if payload == "" {
			return Event{Kind: EventUnrecognized, Raw: line}
		}
		return Event{Kind: EventDownlink, Payload: payload, Raw: line}
	}

	return Event{Kind: EventUnrecognized, Raw: line}
}
