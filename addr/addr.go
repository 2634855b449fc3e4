// Package addr implements the address resolver: dispatch of a 1-byte
// extension + 4-byte address pair onto one of six memory spaces (ABS,
// SEG, REL, DYN, APP, A2L).
package addr

import (
	"errors"
	"unsafe"

	"code.hybscloud.com/xcp/calseg"
)

// Extension is the 1-byte address-extension field of an XCP address.
type Extension uint8

const (
	ABS Extension = iota
	SEG
	REL
	DYN
	APP
	A2L

	numExtensions
)

func (e Extension) String() string {
	switch e {
	case ABS:
		return "ABS"
	case SEG:
		return "SEG"
	case REL:
		return "REL"
	case DYN:
		return "DYN"
	case APP:
		return "APP"
	case A2L:
		return "A2L"
	default:
		return "unknown"
	}
}

// ErrAccessDenied is returned for an extension not declared supported
// at construction time, or for an address/range the target space
// rejects.
var ErrAccessDenied = errors.New("addr: access denied")

// AppMemory delegates APP-extension reads/writes to the application;
// the address space behind it is opaque to the engine.
type AppMemory interface {
	ReadApp(addr uint32, n int) ([]byte, error)
	WriteApp(addr uint32, data []byte) error
}

// A2LSource serves sequential reads of the A2L description file for
// the A2L extension (used by SHORT_UPLOAD/UPLOAD after SET_MTA into
// the A2L upload region).
type A2LSource interface {
	ReadA2L(offset, n int) ([]byte, error)
}

// EventBaser resolves a DAQ event id to its current base pointer, for
// DYN addresses, which embed the event id in the address word itself
// rather than receiving it from the caller.
type EventBaser interface {
	EventBase(eventID uint16) (uint32, bool)
}

// Resolver dispatches reads and writes across the six XCP extensions.
type Resolver struct {
	baseAddr uint32
	enabled  [numExtensions]bool

	calseg *calseg.Manager
	app    AppMemory
	a2l    A2LSource
	events EventBaser
}

// NewResolver builds a resolver over the process's base address (for
// ABS), the calibration manager (for SEG), and the application's APP/
// A2L/DYN callbacks. Only the extensions listed in enabled resolve;
// every other extension returns ErrAccessDenied.
func NewResolver(baseAddr uint32, cs *calseg.Manager, app AppMemory, a2l A2LSource, events EventBaser, enabled ...Extension) *Resolver {
	r := &Resolver{baseAddr: baseAddr, calseg: cs, app: app, a2l: a2l, events: events}
	for _, e := range enabled {
		if e < numExtensions {
			r.enabled[e] = true
		}
	}
	return r
}

// Read resolves n bytes at addr under extension ext. evBase is the
// current DAQ event's base pointer, consulted only for REL; every
// other extension ignores it (command handlers with no event context
// pass 0).
func (r *Resolver) Read(ext Extension, addr uint32, n int, evBase uint32) ([]byte, error) {
	if ext >= numExtensions || !r.enabled[ext] {
		return nil, ErrAccessDenied
	}
	switch ext {
	case ABS:
		return readHost(uintptr(r.baseAddr+addr), n), nil
	case SEG:
		segIdx, off, ok := DecodeSEG(addr)
		if !ok {
			return nil, ErrAccessDenied
		}
		return r.calseg.Read(segIdx, off, n)
	case REL:
		host := uint32(int64(evBase) + int64(int32(addr)))
		return readHost(uintptr(host), n), nil
	case DYN:
		eventID, off := decodeDYN(addr)
		base, ok := r.events.EventBase(eventID)
		if !ok {
			return nil, ErrAccessDenied
		}
		host := uint32(int64(base) + int64(off))
		return readHost(uintptr(host), n), nil
	case APP:
		return r.app.ReadApp(addr, n)
	case A2L:
		return r.a2l.ReadA2L(int(addr), n)
	default:
		return nil, ErrAccessDenied
	}
}

// Write stores data at addr under extension ext. evBase is consulted
// only for REL, exactly as in Read.
func (r *Resolver) Write(ext Extension, addr uint32, data []byte, evBase uint32) error {
	if ext >= numExtensions || !r.enabled[ext] {
		return ErrAccessDenied
	}
	switch ext {
	case ABS:
		writeHost(uintptr(r.baseAddr+addr), data)
		return nil
	case SEG:
		segIdx, off, ok := DecodeSEG(addr)
		if !ok {
			return ErrAccessDenied
		}
		return r.calseg.Write(segIdx, off, data)
	case REL:
		host := uint32(int64(evBase) + int64(int32(addr)))
		writeHost(uintptr(host), data)
		return nil
	case DYN:
		eventID, off := decodeDYN(addr)
		base, ok := r.events.EventBase(eventID)
		if !ok {
			return ErrAccessDenied
		}
		host := uint32(int64(base) + int64(off))
		writeHost(uintptr(host), data)
		return nil
	case APP:
		return r.app.WriteApp(addr, data)
	case A2L:
		return ErrAccessDenied // the A2L region is upload-only
	default:
		return ErrAccessDenied
	}
}

// segTopBit marks an address word as calibration-segment-relative
// within the high 16 bits.
const segTopBit = uint32(1) << 15

// EncodeSEG packs a calibration-segment index and byte offset into the
// wire address format: high 16 bits = 1+segIdx with the top bit set,
// low 16 bits = offset.
func EncodeSEG(segIdx int, offset uint16) uint32 {
	high := segTopBit | uint32(segIdx+1)
	return high<<16 | uint32(offset)
}

// DecodeSEG reverses EncodeSEG. ok is false if the top bit is unset
// (not a SEG-encoded address).
func DecodeSEG(addr uint32) (segIdx int, offset uint16, ok bool) {
	high := addr >> 16
	if high&segTopBit == 0 {
		return 0, 0, false
	}
	segIdx = int(high&^segTopBit) - 1
	if segIdx < 0 {
		return 0, 0, false
	}
	return segIdx, uint16(addr & 0xFFFF), true
}

// decodeDYN splits a DYN-encoded address, (event_id << 16) | offset16,
// into its event id and 16-bit signed offset.
func decodeDYN(addr uint32) (eventID uint16, offset int16) {
	return uint16(addr >> 16), int16(addr & 0xFFFF)
}

// readHost and writeHost access raw process memory by address; the
// entire point of an XCP server is exposing the ECU application's live
// memory to a calibration tool, so this is the domain's normal
// operation, not an escape hatch.
func readHost(addr uintptr, n int) []byte {
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(addr)), n))
	return out
}

func writeHost(addr uintptr, data []byte) {
	copy(unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(data)), data)
}
