package ir

// Event is the telemetry record of one applied transformation.
type Event struct {
	Pass   string
	LoopID int
	PC     uint32
	Args   []interface{} // Alternating key, value pairs.
}

// EventWriter receives one event per transformation applied by a pass.
type EventWriter interface {
	Emit(e Event)
}

// NopEventWriter discards events.
type NopEventWriter struct{}

func (NopEventWriter) Emit(Event) {}

// EventList records events in memory.
type EventList struct {
	Events []Event
}

func (l *EventList) Emit(e Event) { l.Events = append(l.Events, e) }

// Count returns the number of recorded events of pass.
func (l *EventList) Count(pass string) int {
	n := 0
	for _, e := range l.Events {
		if e.Pass == pass {
			n++
		}
	}
	return n
}
