// Package proto implements the XCP protocol layer: the session state
// machine, a command-dispatch table keyed on the first wire byte, and
// the handlers for the mandatory ASAM XCP v1.4 command set. It is the
// one package that talks to every other layer (calseg, addr, daq, a2l)
// and frames their results as XCP positive (0xFF) or negative
// (0xFE <code>) responses.
package proto
