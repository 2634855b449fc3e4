package daq

import (
	"code.hybscloud.com/xcp/addr"
	"code.hybscloud.com/xcp/platform"
)

// State is a DAQ list's position in the STOPPED → PREPARED → RUNNING
// lifecycle.
type State uint32

const (
	Stopped State = iota
	Prepared
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Prepared:
		return "PREPARED"
	case Running:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// Direction distinguishes measurement (ECU → client) from stimulation
// (client → ECU). STIM sampling itself is not implemented, but the
// flag is modeled so SET_DAQ_LIST_MODE/GET_DAQ_LIST_MODE round-trip it.
type Direction uint8

const (
	DirDAQ Direction = iota
	DirSTIM
)

// OdtEntry is one (extension, address, size) field sampled into an
// ODT, filled by SET_DAQ_PTR + WRITE_DAQ.
type OdtEntry struct {
	Ext       addr.Extension
	Addr      uint32
	Size      int
	BitOffset uint8
}

// Odt is one Object Descriptor Table: its own slice of entries, whose
// sizes size() sums on each call. The engine does not set FirstEntry.
type Odt struct {
	FirstEntry int
	entries    []OdtEntry
}

func (o *Odt) size() int {
	n := 0
	for _, e := range o.entries {
		n += e.Size
	}
	return n
}

// DaqList is one ordered set of ODTs bound to a single event.
type DaqList struct {
	id          int
	state       platform.Uint32
	EventID     uint16
	Direction   Direction
	Timestamped bool
	Priority    uint8
	odts        []*Odt
}

// ID is the DAQ list's allocation-order index, the id ALLOC_DAQ returns
// and every later command addresses it by.
func (l *DaqList) ID() int { return l.id }

// State reports the list's current lifecycle state. Lock-free: the hot
// Trigger path reads this without taking the engine's table mutex.
func (l *DaqList) State() State { return State(l.state.LoadAcquire()) }

// OdtCount reports the number of ODTs allocated to this list.
func (l *DaqList) OdtCount() int { return len(l.odts) }
