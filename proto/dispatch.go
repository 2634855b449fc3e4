package proto

import (
	"fmt"

	"code.hybscloud.com/iox"
	"github.com/rs/zerolog"

	"code.hybscloud.com/xcp/a2l"
	"code.hybscloud.com/xcp/addr"
	"code.hybscloud.com/xcp/calseg"
	"code.hybscloud.com/xcp/daq"
	"code.hybscloud.com/xcp/platform"
)

// ResponseQueue is the subset of queue.Queue the dispatcher needs to
// enqueue a command response; the same transport queue DAQ samples
// flow through, so the consumer-assigned counter totally orders
// responses and samples alike.
type ResponseQueue interface {
	Acquire(n int) (buf []byte, err error)
	Commit(buf []byte, flush bool)
}

// Hooks is the application-lifecycle callback surface the dispatcher
// drives: connection admission, DAQ prepare/start/stop notification,
// and the write-flush pairing after APP-extension downloads.
// xcp.Callbacks satisfies it; a nil Hooks behaves like an application
// that accepts everything and buffers nothing.
type Hooks interface {
	OnConnect() bool
	OnPrepareDaq()
	OnStartDaq()
	OnStopDaq()
	FlushPendingWrites() error
}

type nopHooks struct{}

func (nopHooks) OnConnect() bool           { return true }
func (nopHooks) OnPrepareDaq()             {}
func (nopHooks) OnStartDaq()               {}
func (nopHooks) OnStopDaq()                {}
func (nopHooks) FlushPendingWrites() error { return nil }

// handlerFunc implements one command. payload excludes the opcode
// byte. A returned error is mapped to an XCP negative-response code by
// codeOf; a nil error with nil body is a bare positive response.
type handlerFunc func(d *Dispatcher, payload []byte) ([]byte, error)

// Dispatcher is the command-dispatch table, keyed on the first wire
// byte, wired to every other engine layer.
type Dispatcher struct {
	Session *Session
	Cal     *calseg.Manager
	Resolve *addr.Resolver
	Daq     *daq.Engine
	A2L     a2l.Source
	Clock   platform.Clock
	Queue   ResponseQueue
	Logger  zerolog.Logger
	Hooks   Hooks

	handlers map[Opcode]handlerFunc
}

// NewDispatcher builds the full command table.
func NewDispatcher(session *Session, cal *calseg.Manager, resolver *addr.Resolver, daqEngine *daq.Engine, a2lSrc a2l.Source, clock platform.Clock, q ResponseQueue, logger zerolog.Logger, hooks Hooks) *Dispatcher {
	if hooks == nil {
		hooks = nopHooks{}
	}
	d := &Dispatcher{
		Session: session,
		Cal:     cal,
		Resolve: resolver,
		Daq:     daqEngine,
		A2L:     a2lSrc,
		Clock:   clock,
		Queue:   q,
		Logger:  logger,
		Hooks:   hooks,
	}
	d.handlers = map[Opcode]handlerFunc{
		OpConnect:                   cmdConnect,
		OpDisconnect:                cmdDisconnect,
		OpGetStatus:                 cmdGetStatus,
		OpSynch:                     cmdSynch,
		OpGetCommModeInfo:           cmdGetCommModeInfo,
		OpGetID:                     cmdGetID,
		OpSetRequest:                cmdSetRequest,
		OpGetSeed:                   cmdAccessDenied,
		OpUnlock:                    cmdAccessDenied,
		OpSetMTA:                    cmdSetMTA,
		OpUpload:                    cmdUpload,
		OpShortUpload:               cmdShortUpload,
		OpBuildChecksum:             cmdBuildChecksum,
		OpUserCmd:                   cmdUserCmd,
		OpDownload:                  cmdDownload,
		OpShortDownload:             cmdShortDownload,
		OpSetCalPage:                cmdSetCalPage,
		OpGetCalPage:                cmdGetCalPage,
		OpCopyCalPage:               cmdCopyCalPage,
		OpSetDaqPtr:                 cmdSetDaqPtr,
		OpWriteDaq:                  cmdWriteDaq,
		OpWriteDaqMultiple:          cmdWriteDaqMultiple,
		OpSetDaqListMode:            cmdSetDaqListMode,
		OpGetDaqListMode:            cmdGetDaqListMode,
		OpStartStopDaqList:          cmdStartStopDaqList,
		OpStartStopSynch:            cmdStartStopSynch,
		OpGetDaqClock:               cmdGetDaqClock,
		OpTimeCorrelationProperties: cmdTimeCorrelationProperties,
		OpGetDaqProcessorInfo:       cmdGetDaqProcessorInfo,
		OpGetDaqResolutionInfo:      cmdGetDaqResolutionInfo,
		OpGetDaqEventInfo:           cmdGetDaqEventInfo,
		OpFreeDaq:                   cmdFreeDaq,
		OpAllocDaq:                  cmdAllocDaq,
		OpAllocOdt:                  cmdAllocOdt,
		OpAllocOdtEntry:             cmdAllocOdtEntry,
		OpSetDaqPackedMode:          cmdUnknown,
	}
	return d
}

// Handle dispatches one raw command (opcode + payload, no transport
// header; the server strips that before calling Handle) and enqueues
// its response on Queue with flush requested. The commit signals the
// queue's Notify channel, so the transmit task drains it promptly.
func (d *Dispatcher) Handle(raw []byte) {
	if len(raw) == 0 {
		return
	}
	op := Opcode(raw[0])
	payload := raw[1:]

	h, ok := d.handlers[op]
	if !ok {
		h = cmdUnknown
	}

	// CONNECT is the one command legal while DISCONNECTED; every other
	// command requires an active session.
	if op != OpConnect && !d.Session.Connected() {
		d.respond(nil, NewError(CodeCmdBusy))
		return
	}

	body, err := h(d, payload)
	if err != nil {
		d.Logger.Debug().Str("opcode", fmt.Sprintf("0x%02X", uint8(op))).Err(err).Msg("command error")
	}
	d.respond(body, err)
}

func (d *Dispatcher) respond(body []byte, err error) {
	resp, release := buildResponse(body, err)
	defer release()
	buf, qerr := d.Queue.Acquire(len(resp))
	if qerr != nil {
		// Queue-full is transient (the client re-tries on its command
		// timeout); anything else is not supposed to happen.
		if iox.IsWouldBlock(qerr) {
			d.Logger.Warn().Msg("response dropped: transport queue full")
		} else {
			d.Logger.Error().Err(qerr).Msg("response dropped")
		}
		return
	}
	copy(buf, resp)
	d.Queue.Commit(buf, true)
}
