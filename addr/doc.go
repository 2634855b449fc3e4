// Package addr resolves an XCP (extension, address) pair (the pair
// every SET_MTA/UPLOAD/DOWNLOAD/SHORT_UPLOAD/SHORT_DOWNLOAD and DAQ
// ODT entry carries) against one of six memory spaces: absolute host
// memory, a calibration segment, an event-relative offset, an
// event-id-encoded offset, application-opaque memory, or the A2L
// upload region.
//
// Extensions not declared supported when the Resolver is built always
// fail ACCESS_DENIED, regardless of whether the underlying space could
// otherwise serve the address. This is a construction-time contract,
// not a runtime capability probe.
package addr
