// Package a2l is the thin boundary between the engine and the A2L
// description file, the plain-text ASAM database the application
// produces alongside the ECU. The engine's only contract with it is
// that GET_ID may report its name and upload its bytes, and that the
// EPK version string matches what the client expects.
//
// Nothing here parses or generates A2L text; the file's format
// belongs to the calibration tool. Ident and UploadCursor only
// implement the GET_ID / SHORT_UPLOAD sequencing.
package a2l
