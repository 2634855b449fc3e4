package xcp

import "code.hybscloud.com/xcp/proto"

// Error and Code are re-exported from proto so callers never need to
// import the protocol package directly just to inspect a returned
// error's XCP code; the same local-alias idiom platform.go uses for
// atomix.
type (
	Error = proto.Error
	Code  = proto.Code
)

const (
	CodeCmdBusy                   = proto.CodeCmdBusy
	CodeDaqActive                 = proto.CodeDaqActive
	CodeCmdUnknown                = proto.CodeCmdUnknown
	CodeCmdSyntax                 = proto.CodeCmdSyntax
	CodeOutOfRange                = proto.CodeOutOfRange
	CodeWriteProtected            = proto.CodeWriteProtected
	CodeAccessDenied              = proto.CodeAccessDenied
	CodeAccessLocked              = proto.CodeAccessLocked
	CodePageNotValid              = proto.CodePageNotValid
	CodeModeNotValid              = proto.CodeModeNotValid
	CodeSegmentNotValid           = proto.CodeSegmentNotValid
	CodeSequence                  = proto.CodeSequence
	CodeMemoryOverflow            = proto.CodeMemoryOverflow
	CodeGeneric                   = proto.CodeGeneric
	CodeResourceTempNotAccessible = proto.CodeResourceTempNotAccessible
	CodeCalActive                 = proto.CodeCalActive
)
