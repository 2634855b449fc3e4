package daq

import (
	"sync"

	"code.hybscloud.com/xcp/addr"
	"code.hybscloud.com/xcp/platform"
)

// Resolver is the subset of addr.Resolver the hot Trigger path needs;
// accepted as an interface so tests can fake memory without a real
// process address space.
type Resolver interface {
	Read(ext addr.Extension, address uint32, n int, evBase uint32) ([]byte, error)
}

// Queue is the subset of queue.Queue the Trigger path needs.
type Queue interface {
	Acquire(n int) (buf []byte, err error)
	Commit(buf []byte, flush bool)
}

// Clock is the subset of platform.Clock the Trigger path needs.
type Clock interface {
	Now() uint32
}

const pidBase = 0xAA // packet identifier of a list's first ODT

// Engine owns the DAQ tables and the event-trigger hot path. One
// Engine per xcp.Server.
type Engine struct {
	mu       sync.Mutex
	Events   EventList
	lists    []*DaqList
	resolver Resolver
	q        Queue
	clock    Clock

	memBudget int
	memUsed   int

	ptrList, ptrOdt, ptrEntry int
	ptrSet                    bool

	eventBases []platform.Uint32
}

// NewEngine creates a DAQ engine. memBudget bounds the total ODT-entry
// bytes a client may allocate across every DAQ list.
func NewEngine(resolver Resolver, q Queue, clock Clock, memBudget int) *Engine {
	return &Engine{resolver: resolver, q: q, clock: clock, memBudget: memBudget}
}

// BindEvents installs the event table. Must be called once at startup,
// before any DAQ list references an event id.
func (e *Engine) BindEvents(events EventList) {
	e.Events = events
	e.eventBases = make([]platform.Uint32, events.Len())
}

// SetResolver installs the address resolver Trigger scatter-reads
// through. Split from NewEngine because the resolver itself needs the
// engine as its addr.EventBaser for DYN addresses; the two have a
// construction-order cycle that a setter breaks. Must be called once,
// before the first Trigger.
func (e *Engine) SetResolver(r Resolver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolver = r
}

// EventBase implements addr.EventBaser: the last base pointer observed
// for eventID at Trigger time, for DYN address resolution.
func (e *Engine) EventBase(eventID uint16) (uint32, bool) {
	if int(eventID) >= len(e.eventBases) {
		return 0, false
	}
	return e.eventBases[eventID].LoadAcquire(), true
}

// allStopped reports whether every DAQ list is STOPPED. Caller must
// hold mu.
func (e *Engine) allStopped() bool {
	for _, l := range e.lists {
		if l.State() != Stopped {
			return false
		}
	}
	return true
}

// AllocDaq allocates count fresh DAQ lists, discarding any existing
// tables; ALLOC_DAQ is the first step of (re)configuration.
func (e *Engine) AllocDaq(count int) error {
	if count < 0 {
		return ErrOutOfRange
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.allStopped() {
		return ErrSequence
	}
	e.lists = make([]*DaqList, count)
	for i := range e.lists {
		e.lists[i] = &DaqList{id: i}
	}
	e.memUsed = 0
	e.ptrSet = false
	return nil
}

// FreeDaq clears every table back to empty.
func (e *Engine) FreeDaq() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.allStopped() {
		return ErrSequence
	}
	e.lists = nil
	e.memUsed = 0
	e.ptrSet = false
	return nil
}

func (e *Engine) list(id int) (*DaqList, error) {
	if id < 0 || id >= len(e.lists) {
		return nil, ErrUnknownDaqList
	}
	return e.lists[id], nil
}

// AllocOdt appends count empty ODTs to daqList.
func (e *Engine) AllocOdt(daqList, count int) error {
	if count < 0 {
		return ErrOutOfRange
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.allStopped() {
		return ErrSequence
	}
	l, err := e.list(daqList)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		l.odts = append(l.odts, &Odt{})
	}
	return nil
}

func (e *Engine) odt(daqList, odtIdx int) (*DaqList, *Odt, error) {
	l, err := e.list(daqList)
	if err != nil {
		return nil, nil, err
	}
	if odtIdx < 0 || odtIdx >= len(l.odts) {
		return nil, nil, ErrUnknownOdt
	}
	return l, l.odts[odtIdx], nil
}

// AllocOdtEntry appends count empty entries to one ODT, enforcing the
// engine's overall memory budget.
func (e *Engine) AllocOdtEntry(daqList, odtIdx, count int) error {
	if count < 0 {
		return ErrOutOfRange
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.allStopped() {
		return ErrSequence
	}
	_, o, err := e.odt(daqList, odtIdx)
	if err != nil {
		return err
	}
	// Every new entry is charged a worst-case 8 bytes against the
	// budget; the charge is not adjusted when WriteDaq sets the entry's
	// actual size.
	const worstCaseEntrySize = 8
	if e.memUsed+count*worstCaseEntrySize > e.memBudget {
		return ErrMemoryOverflow
	}
	e.memUsed += count * worstCaseEntrySize
	o.entries = append(o.entries, make([]OdtEntry, count)...)
	return nil
}

// SetDaqPtr positions the WRITE_DAQ cursor at entry entryIdx of
// (daqList, odtIdx). Subsequent WriteDaq/WriteDaqMultiple calls fill
// consecutive entries starting there.
func (e *Engine) SetDaqPtr(daqList, odtIdx, entryIdx int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.allStopped() {
		return ErrSequence
	}
	_, o, err := e.odt(daqList, odtIdx)
	if err != nil {
		return err
	}
	if entryIdx < 0 || entryIdx >= len(o.entries) {
		return ErrUnknownOdtEntry
	}
	e.ptrList, e.ptrOdt, e.ptrEntry = daqList, odtIdx, entryIdx
	e.ptrSet = true
	return nil
}

// WriteDaq fills the entry at the current SET_DAQ_PTR cursor and
// advances it by one.
func (e *Engine) WriteDaq(ext addr.Extension, size int, address uint32) error {
	return e.WriteDaqMultiple([]OdtEntry{{Ext: ext, Addr: address, Size: size}})
}

// WriteDaqMultiple fills a run of consecutive entries starting at the
// current cursor (WRITE_DAQ_MULTIPLE).
func (e *Engine) WriteDaqMultiple(entries []OdtEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.allStopped() {
		return ErrSequence
	}
	if !e.ptrSet {
		return ErrNoPtr
	}
	_, o, err := e.odt(e.ptrList, e.ptrOdt)
	if err != nil {
		return err
	}
	idx := e.ptrEntry
	for _, ent := range entries {
		if idx >= len(o.entries) {
			return ErrUnknownOdtEntry
		}
		o.entries[idx] = ent
		idx++
	}
	e.ptrEntry = idx
	return nil
}

// SetDaqListMode binds a DAQ list to an event and configures its
// direction/timestamp/priority flags, and moves the list to PREPARED.
func (e *Engine) SetDaqListMode(daqList int, eventID uint16, dir Direction, timestamped bool, priority uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.allStopped() {
		return ErrSequence
	}
	l, err := e.list(daqList)
	if err != nil {
		return err
	}
	if int(eventID) >= e.Events.Len() {
		return ErrUnknownEvent
	}
	l.EventID = eventID
	l.Direction = dir
	l.Timestamped = timestamped
	l.Priority = priority
	l.state.StoreRelease(uint32(Prepared))
	return nil
}

// GetDaqListMode returns the current binding of daqList.
func (e *Engine) GetDaqListMode(daqList int) (eventID uint16, dir Direction, timestamped bool, priority uint8, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, err := e.list(daqList)
	if err != nil {
		return 0, 0, false, 0, err
	}
	return l.EventID, l.Direction, l.Timestamped, l.Priority, nil
}

// StartStopDaqList starts or stops a single DAQ list.
func (e *Engine) StartStopDaqList(daqList int, start bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, err := e.list(daqList)
	if err != nil {
		return err
	}
	if start {
		if l.State() != Prepared {
			return ErrSequence
		}
		l.state.StoreRelease(uint32(Running))
	} else {
		l.state.StoreRelease(uint32(Stopped))
	}
	return nil
}

// StartStopSynch starts or stops every PREPARED/RUNNING list at once
// (START_STOP_SYNCH).
func (e *Engine) StartStopSynch(start bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range e.lists {
		if start {
			if l.State() == Prepared {
				l.state.StoreRelease(uint32(Running))
			}
		} else if l.State() == Running {
			l.state.StoreRelease(uint32(Stopped))
		}
	}
	return nil
}

// AnyRunning reports whether at least one DAQ list is RUNNING, for
// GET_STATUS's DAQ_RUNNING resource bit.
func (e *Engine) AnyRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range e.lists {
		if l.State() == Running {
			return true
		}
	}
	return false
}

// StopAll forces every list to STOPPED, as DISCONNECT requires.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range e.lists {
		l.state.StoreRelease(uint32(Stopped))
	}
}

// Trigger is the event-trigger hot path: called by an ECU application
// thread with the event's id and the base pointer used by any REL/DYN
// entries bound to it. Lock-free with respect to table mutation; it
// never takes e.mu, only reads each list's atomic state word; so it
// never contends with the cold configuration path once DAQ is running
// (mutation is rejected outright while running anyway, per ErrSequence
// above, but Trigger still must not block on mu).
func (e *Engine) Trigger(eventID uint16, base uintptr) {
	if int(eventID) < len(e.eventBases) {
		e.eventBases[eventID].StoreRelease(uint32(base))
	}
	evBase := uint32(base)
	ts := e.clock.Now()

	// lists is only ever replaced wholesale (AllocDaq/FreeDaq), both
	// rejected while any list is RUNNING, so reading the slice header
	// without mu is safe once a list has reached RUNNING.
	for _, l := range e.lists {
		if l.EventID != eventID || l.State() != Running {
			continue
		}
		e.triggerList(l, evBase, ts)
	}
}

func (e *Engine) triggerList(l *DaqList, evBase uint32, ts uint32) {
	for odtIdx, o := range l.odts {
		hdr := 1
		if odtIdx == 0 && l.Timestamped {
			hdr += 4
		}
		n := hdr + o.size()
		buf, err := e.q.Acquire(n)
		if err != nil {
			// Queue full: hot-path drops never surface as command
			// errors; the remaining ODTs of this list are skipped and
			// the client sees the gap via the transport counter
			// (queue.Overruns, folded in at Peek).
			return
		}
		buf[0] = pidBase + byte(odtIdx)
		off := 1
		if odtIdx == 0 && l.Timestamped {
			buf[1] = byte(ts)
			buf[2] = byte(ts >> 8)
			buf[3] = byte(ts >> 16)
			buf[4] = byte(ts >> 24)
			off += 4
		}
		for _, ent := range o.entries {
			data, err := e.resolver.Read(ent.Ext, ent.Addr, ent.Size, evBase)
			if err != nil {
				// Unreadable entry: zero-fill rather than abort the
				// whole ODT, so a single misconfigured entry doesn't
				// poison every other measurement in the packet. The
				// slot is a recycled arena buffer, so the bytes must
				// actually be cleared or a previous sample leaks.
				clear(buf[off : off+ent.Size])
				off += ent.Size
				continue
			}
			copy(buf[off:off+ent.Size], data)
			off += ent.Size
		}
		e.q.Commit(buf, false)
	}
}
