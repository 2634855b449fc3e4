package daq

import "errors"

var (
	// ErrSequence is returned by every table-mutating call
	// (Alloc*/Free/SetDaqPtr/WriteDaq/SetDaqListMode) when at least one
	// DAQ list is not STOPPED. Mutation mid-measurement is rejected
	// outright rather than deferred to the next start/stop boundary.
	ErrSequence = errors.New("daq: list not stopped")
	// ErrUnknownEvent is returned for an event id outside [0, n).
	ErrUnknownEvent = errors.New("daq: unknown event id")
	// ErrUnknownDaqList is returned for a DAQ list id past AllocDaq's count.
	ErrUnknownDaqList = errors.New("daq: unknown DAQ list")
	// ErrUnknownOdt is returned for an ODT index past the list's AllocOdt count.
	ErrUnknownOdt = errors.New("daq: unknown ODT")
	// ErrUnknownOdtEntry is returned for an entry index past the ODT's
	// AllocOdtEntry count.
	ErrUnknownOdtEntry = errors.New("daq: unknown ODT entry")
	// ErrOutOfRange is returned for a count/argument outside its legal range.
	ErrOutOfRange = errors.New("daq: parameter out of range")
	// ErrMemoryOverflow is returned when an allocation would exceed the
	// engine's configured DAQ memory budget.
	ErrMemoryOverflow = errors.New("daq: memory overflow")
	// ErrDaqActive reports an operation forbidden while a DAQ list is
	// RUNNING. No Engine method returns it (they return ErrSequence);
	// proto maps it to DAQ_ACTIVE.
	ErrDaqActive = errors.New("daq: DAQ running")
	// ErrNoPtr is returned by WriteDaq/WriteDaqMultiple when no SetDaqPtr
	// cursor has been established yet.
	ErrNoPtr = errors.New("daq: no DAQ pointer set")
	// ErrCmdUnknown reports a DAQ command this engine does not
	// implement. No Engine method returns it; SET_DAQ_PACKED_MODE is
	// rejected by the proto dispatcher with CMD_UNKNOWN directly.
	ErrCmdUnknown = errors.New("daq: command not implemented")
)
