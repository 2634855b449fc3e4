// Package xcp assembles an ASAM XCP v1.4 measurement/calibration
// server: one process-wide Server owning a transport queue, a
// calibration-segment manager, a DAQ engine, an address resolver and a
// protocol dispatcher, driven by two long-lived tasks
// (receive-and-dispatch, transmit) over an eth.Transport.
//
// All engine state lives in that one owned object, constructed at
// startup: New wires every sub-package together behind functional
// Options and an application-supplied Callbacks implementation, and
// returns a Server ready for Run.
package xcp
