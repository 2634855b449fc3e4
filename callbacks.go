package xcp

// Callbacks is the application-side hook set: the lifecycle
// notifications the core cannot derive on its own. All methods must be
// safe to call from the dispatch goroutine at any time once New has
// returned.
//
// The rest of the application surface, namely page management
// (calseg.Manager owns the dual-page model directly), freeze
// persistence (calseg.FreezeFunc, passed per-segment to
// Manager.AddSegment), APP-extension memory (addr.AppMemory), and
// identification (a2l.Source), is modeled as its own small interface
// close to the package that consumes it, rather than folded into one
// monolithic callback struct: each is exactly the shape its caller
// needs, and an application wires each one in independently.
type Callbacks interface {
	// OnConnect runs when a client CONNECTs. Returning false refuses
	// the connection (reported as ACCESS_DENIED rather than a positive
	// CONNECT response).
	OnConnect() bool

	// OnPrepareDaq runs once a DAQ list reaches PREPARED via
	// SET_DAQ_LIST_MODE, before any START_STOP_(DAQ_LIST|SYNCH).
	OnPrepareDaq()

	// OnStartDaq and OnStopDaq bracket the RUNNING state, letting the
	// application start/stop whatever produces the measured values
	// (e.g. its own mainloop ticker).
	OnStartDaq()
	OnStopDaq()

	// FlushPendingWrites is invoked after a DOWNLOAD/SHORT_DOWNLOAD
	// targeting application (APP-extension) memory. The engine never
	// coalesces writes itself, so an application that does not buffer
	// WriteApp can make this a no-op.
	FlushPendingWrites() error
}

// NopCallbacks is the zero-effort Callbacks implementation: accepts
// every connection and treats DAQ start/stop and flush as no-ops.
// Useful for demos and tests that only exercise calibration/SEG-address
// measurement, with no application-owned mainloop to notify.
type NopCallbacks struct{}

func (NopCallbacks) OnConnect() bool         { return true }
func (NopCallbacks) OnPrepareDaq()           {}
func (NopCallbacks) OnStartDaq()             {}
func (NopCallbacks) OnStopDaq()              {}
func (NopCallbacks) FlushPendingWrites() error { return nil }
