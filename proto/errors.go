package proto

import (
	"errors"
	"fmt"

	"code.hybscloud.com/xcp/a2l"
	"code.hybscloud.com/xcp/addr"
	"code.hybscloud.com/xcp/calseg"
	"code.hybscloud.com/xcp/daq"
)

// Code is one XCP negative-response error code. Values match the ASAM
// XCP wire codes except CodeCalActive, which has no standard XCP
// assignment; "atomic calibration transaction in progress" needs a
// distinct outcome and the nearest standard code (CMD_BUSY) would
// collide with the DAQ-active case, so it is given a local extension
// value in the vendor range.
type Code uint8

const (
	CodeSynch                      Code = 0x00
	CodeCmdBusy                    Code = 0x10
	CodeDaqActive                  Code = 0x11
	CodePgmActive                  Code = 0x12
	CodeCmdUnknown                 Code = 0x20
	CodeCmdSyntax                  Code = 0x21
	CodeOutOfRange                 Code = 0x22
	CodeWriteProtected             Code = 0x23
	CodeAccessDenied               Code = 0x24
	CodeAccessLocked               Code = 0x25
	CodePageNotValid               Code = 0x26
	CodeModeNotValid               Code = 0x27
	CodeSegmentNotValid            Code = 0x28
	CodeSequence                   Code = 0x29
	CodeDaqConfig                  Code = 0x2A
	CodeMemoryOverflow             Code = 0x30
	CodeGeneric                    Code = 0x31
	CodeVerify                     Code = 0x32
	CodeResourceTempNotAccessible  Code = 0x33
	CodeSubCmdUnknown              Code = 0x34
	CodeCalActive                  Code = 0xF0 // vendor extension, see doc above
)

func (c Code) String() string {
	switch c {
	case CodeSynch:
		return "SYNCH"
	case CodeCmdBusy:
		return "CMD_BUSY"
	case CodeDaqActive:
		return "DAQ_ACTIVE"
	case CodePgmActive:
		return "PGM_ACTIVE"
	case CodeCmdUnknown:
		return "CMD_UNKNOWN"
	case CodeCmdSyntax:
		return "CMD_SYNTAX"
	case CodeOutOfRange:
		return "OUT_OF_RANGE"
	case CodeWriteProtected:
		return "WRITE_PROTECTED"
	case CodeAccessDenied:
		return "ACCESS_DENIED"
	case CodeAccessLocked:
		return "ACCESS_LOCKED"
	case CodePageNotValid:
		return "PAGE_NOT_VALID"
	case CodeModeNotValid:
		return "MODE_NOT_VALID"
	case CodeSegmentNotValid:
		return "SEGMENT_NOT_VALID"
	case CodeSequence:
		return "SEQUENCE"
	case CodeDaqConfig:
		return "DAQ_CONFIG"
	case CodeMemoryOverflow:
		return "MEMORY_OVERFLOW"
	case CodeGeneric:
		return "GENERIC"
	case CodeVerify:
		return "VERIFY"
	case CodeResourceTempNotAccessible:
		return "RESOURCE_TEMPORARY_NOT_ACCESSIBLE"
	case CodeSubCmdUnknown:
		return "SUBCMD_UNKNOWN"
	case CodeCalActive:
		return "CAL_ACTIVE"
	default:
		return fmt.Sprintf("CODE(0x%02X)", uint8(c))
	}
}

// Error is an XCP negative response: first byte 0xFE, second byte the
// Code. Command handlers return *Error (or a plain
// error, mapped to CodeGeneric) instead of writing the response packet
// themselves; Dispatcher owns framing.
type Error struct {
	Code Code
}

func (e *Error) Error() string { return "xcp: " + e.Code.String() }

// NewError wraps code as a command-handler error.
func NewError(code Code) *Error { return &Error{Code: code} }

// codeOf maps any error returned by a lower layer (addr, calseg, daq) to
// an XCP response code. Errors that are already *Error pass through
// unchanged; a known sentinel from a lower package maps to its natural
// XCP code; everything else degrades to CodeGeneric rather than leaking
// an internal error type onto the wire.
func codeOf(err error) Code {
	if err == nil {
		return CodeSynch
	}
	if xe, ok := err.(*Error); ok {
		return xe.Code
	}
	switch {
	case errors.Is(err, calseg.ErrSegmentNotValid):
		return CodeSegmentNotValid
	case errors.Is(err, calseg.ErrPageNotValid):
		return CodePageNotValid
	case errors.Is(err, calseg.ErrAccessDenied):
		return CodeAccessDenied
	case errors.Is(err, calseg.ErrPoolExhausted):
		return CodeResourceTempNotAccessible
	case errors.Is(err, calseg.ErrTransactionActive):
		return CodeCalActive
	case errors.Is(err, calseg.ErrNoTransaction):
		return CodeSequence
	case errors.Is(err, calseg.ErrRange):
		return CodeOutOfRange
	case errors.Is(err, addr.ErrAccessDenied):
		return CodeAccessDenied
	case errors.Is(err, daq.ErrSequence):
		return CodeSequence
	case errors.Is(err, daq.ErrMemoryOverflow):
		return CodeMemoryOverflow
	case errors.Is(err, daq.ErrOutOfRange),
		errors.Is(err, daq.ErrUnknownEvent),
		errors.Is(err, daq.ErrUnknownDaqList),
		errors.Is(err, daq.ErrUnknownOdt),
		errors.Is(err, daq.ErrUnknownOdtEntry),
		errors.Is(err, daq.ErrNoPtr):
		return CodeOutOfRange
	case errors.Is(err, daq.ErrDaqActive):
		return CodeDaqActive
	case errors.Is(err, daq.ErrCmdUnknown):
		return CodeCmdUnknown
	case errors.Is(err, a2l.ErrUnknownKind):
		return CodeOutOfRange
	default:
		return CodeGeneric
	}
}
