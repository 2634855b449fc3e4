package daq

import "time"

// Event is one named sampling trigger the ECU application raises by
// id. Ids are dense over [0, n) in declaration order, which is also
// the order the A2L IF_DATA XCP event list uses.
type Event struct {
	ID             uint16
	Name           string
	CyclePeriod    time.Duration
	Priority       uint8
	Index          *uint16 // set for one of several instances of a repeated event
	DefaultDaqList *uint16 // pre-bound DAQ list id, if any
}

// EventList is the table of declared events: append-only during
// startup, immutable thereafter.
type EventList struct {
	events []Event
}

// Add declares a new event and returns its dense id.
func (l *EventList) Add(name string, cycle time.Duration, priority uint8) uint16 {
	id := uint16(len(l.events))
	l.events = append(l.events, Event{ID: id, Name: name, CyclePeriod: cycle, Priority: priority})
	return id
}

// Len reports the number of declared events.
func (l *EventList) Len() int { return len(l.events) }

// Get returns the event at id, and false if id is out of range.
func (l *EventList) Get(id uint16) (Event, bool) {
	if int(id) >= len(l.events) {
		return Event{}, false
	}
	return l.events[id], true
}

// ByName resolves an event by its declared name, for A2L-driven
// SET_DAQ_LIST_MODE configuration.
func (l *EventList) ByName(name string) (uint16, bool) {
	for _, e := range l.events {
		if e.Name == name {
			return e.ID, true
		}
	}
	return 0, false
}

// All returns every declared event, for GET_DAQ_EVENT_INFO.
func (l *EventList) All() []Event { return l.events }
