package xcp

import (
	"errors"
	"net"
	"sync"
	"time"

	"code.hybscloud.com/xcp/a2l"
	"code.hybscloud.com/xcp/addr"
	"code.hybscloud.com/xcp/calseg"
	"code.hybscloud.com/xcp/daq"
	"code.hybscloud.com/xcp/eth"
	"code.hybscloud.com/xcp/platform"
	"code.hybscloud.com/xcp/proto"
	"code.hybscloud.com/xcp/queue"
)

// Server is the process-wide XCP engine: one owned object holding the
// transport queue, calibration-segment manager, DAQ engine, address
// resolver and protocol dispatcher, driven by two long-lived tasks
// (receive-and-dispatch, transmit) over one eth.Transport.
type Server struct {
	cfg       config
	transport eth.Transport
	callbacks Callbacks

	clock      *platform.MonotonicClock
	queue      queue.Queue
	cal        *calseg.Manager
	resolver   *addr.Resolver
	daqEngine  *daq.Engine
	session    *proto.Session
	dispatcher *proto.Dispatcher

	running     platform.Bool
	stopCh      chan struct{}
	lastCmdNano platform.Int64
	wg          sync.WaitGroup

	// txMu serializes queue draining between the receive task's
	// post-dispatch drain and the transmit task: the queue contract
	// allows exactly one consumer inside Peek/Release at a time.
	txMu sync.Mutex
}

// a2lReaderAtSource bridges a2l.Source (whole-string GET_ID requests)
// to addr.A2LSource (offset reads once SET_MTA points into the A2L
// upload region): the underlying io.ReaderAt is opened once and read
// through an a2l.UploadCursor, whose Seek absorbs both the sequential
// SHORT_UPLOAD walk and a client re-reading an earlier range.
type a2lReaderAtSource struct {
	src a2l.Source

	mu  sync.Mutex
	cur *a2l.UploadCursor
}

func (a *a2lReaderAtSource) ReadA2L(offset, n int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cur == nil {
		r, _, err := a.src.OpenA2L()
		if err != nil {
			return nil, err
		}
		a.cur = a2l.NewUploadCursor(r)
	}
	a.cur.Seek(int64(offset))
	return a.cur.Read(n)
}

// New wires one Server. cal, app, a2lSrc and events are the
// application's static description of its memory: calibration
// segments, APP-extension memory, the A2L file, and the declared event
// list (daq.EventList is immutable after this call).
func New(transport eth.Transport, cal *calseg.Manager, app addr.AppMemory, a2lSrc a2l.Source, events daq.EventList, callbacks Callbacks, opts ...Option) *Server {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if callbacks == nil {
		callbacks = NopCallbacks{}
	}

	clock := platform.NewMonotonicClock(cfg.clockUnit)

	var q queue.Queue
	if cfg.useCASQueue {
		q = queue.NewCAS(cfg.queueCapacity, cfg.queueMaxEntry, cfg.queueMaxSegment)
	} else {
		q = queue.New(cfg.queueCapacity, cfg.queueMaxEntry, cfg.queueMaxSegment)
	}

	daqEngine := daq.NewEngine(nil, q, clock, cfg.daqMemBudget)
	daqEngine.BindEvents(events)

	resolver := addr.NewResolver(cfg.baseAddr, cal, app, &a2lReaderAtSource{src: a2lSrc}, daqEngine, cfg.extensions...)
	daqEngine.SetResolver(resolver)

	session := proto.NewSession(cfg.maxCTO, cfg.maxDTO, cfg.clusterID)
	dispatcher := proto.NewDispatcher(session, cal, resolver, daqEngine, a2lSrc, clock, q, cfg.logger, callbacks)

	return &Server{
		cfg:        cfg,
		transport:  transport,
		callbacks:  callbacks,
		clock:      clock,
		queue:      q,
		cal:        cal,
		resolver:   resolver,
		daqEngine:  daqEngine,
		session:    session,
		dispatcher: dispatcher,
		stopCh:     make(chan struct{}),
	}
}

// Daq exposes the DAQ engine so the application can call Trigger from
// its own event sources (e.g. a 100ms mainloop goroutine).
func (s *Server) Daq() *daq.Engine { return s.daqEngine }

// Clock exposes the server's clock, for an application that wants to
// timestamp its own state with the same ticks DAQ samples carry.
func (s *Server) Clock() *platform.MonotonicClock { return s.clock }

// Run starts the receive and transmit tasks and blocks until Stop is
// called or the transport fails fatally. The transport only owns the
// socket; a queue handle (not the transport) is what the protocol
// engine and DAQ engine both hold.
func (s *Server) Run() error {
	if !s.running.CompareAndSwapAcqRel(false, true) {
		return errors.New("xcp: server already running")
	}
	s.lastCmdNano.StoreRelease(time.Now().UnixNano())

	errCh := make(chan error, 2)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		errCh <- s.receiveLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.transmitLoop()
	}()

	err := <-errCh
	s.Stop()
	s.wg.Wait()
	return err
}

// Stop requests cooperative shutdown and unblocks any in-flight
// RecvCommand by closing the transport. There is no forceful path.
func (s *Server) Stop() {
	if !s.running.CompareAndSwapAcqRel(true, false) {
		return
	}
	close(s.stopCh)
	s.transport.Close()
}

func (s *Server) receiveLoop() error {
	for {
		select {
		case <-s.stopCh:
			return nil
		default:
		}

		framed, _, err := s.transport.RecvCommand(s.cfg.recvTimeout)
		if err != nil {
			if isTimeout(err) {
				s.checkConnTimeout()
				continue
			}
			select {
			case <-s.stopCh:
				return nil
			default:
			}
			// Fatal transport break: the server stops and the
			// calibration tool sees a closed connection, reconnecting
			// at its own initiative.
			s.cfg.logger.Error().Err(err).Msg("transport receive failed, stopping")
			return err
		}

		s.lastCmdNano.StoreRelease(time.Now().UnixNano())

		cmds, err := eth.SplitCommands(framed)
		if err != nil {
			s.cfg.logger.Debug().Err(err).Msg("malformed frame, dropped")
			continue
		}
		for _, cmd := range cmds {
			s.dispatcher.Handle(cmd)
		}
		s.drainOnce()
	}
}

// drainOnce sends at most one consolidated segment immediately after a
// dispatch, keeping command latency short. Bulk DAQ traffic still
// drains promptly via transmitLoop's Notify wakeups.
func (s *Server) drainOnce() {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	seg, ok := s.queue.Peek()
	if !ok {
		return
	}
	if err := s.transport.SendSegment(seg); err != nil {
		s.cfg.logger.Warn().Err(err).Msg("send failed")
	}
	s.queue.Release(seg)
}

func (s *Server) transmitLoop() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			s.drainAll()
			return
		case <-s.queue.Notify():
			s.drainAll()
		case <-ticker.C:
			s.drainAll()
		}
	}
}

func (s *Server) drainAll() {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	for {
		seg, ok := s.queue.Peek()
		if !ok {
			return
		}
		if err := s.transport.SendSegment(seg); err != nil {
			s.cfg.logger.Warn().Err(err).Msg("send failed")
		}
		s.queue.Release(seg)
	}
}

// checkConnTimeout implements the T7 idle timeout: if connected and
// idle past connTimeout, force-disconnect server-side so a stuck
// client's reconnect attempt succeeds instead of hanging against a
// half-open session.
func (s *Server) checkConnTimeout() {
	if s.cfg.connTimeout <= 0 || !s.session.Connected() {
		return
	}
	idle := time.Duration(time.Now().UnixNano()-s.lastCmdNano.LoadAcquire()) * time.Nanosecond
	if idle < s.cfg.connTimeout {
		return
	}
	s.cfg.logger.Warn().Dur("idle", idle).Msg("T7 connection timeout, disconnecting")
	wasRunning := s.daqEngine.AnyRunning()
	s.daqEngine.StopAll()
	if wasRunning {
		s.callbacks.OnStopDaq()
	}
	s.session.Disconnect()
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, errTimeoutSentinel)
}

var errTimeoutSentinel = errors.New("xcp: timeout")
