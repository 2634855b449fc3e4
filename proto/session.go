package proto

import "sync"

// Resource bits reported by CONNECT/GET_STATUS.
const (
	ResourceCAL  uint8 = 1 << 0
	ResourceDAQ  uint8 = 1 << 2
	ResourceSTIM uint8 = 1 << 3
	ResourcePGM  uint8 = 1 << 4 // never set: flash programming is not implemented
)

// Status bits reported by GET_STATUS.
const (
	StatusStoreCalReq uint8 = 1 << 0
	StatusStoreDaqReq uint8 = 1 << 1
	StatusClearDaqReq uint8 = 1 << 2
	StatusDaqRunning  uint8 = 1 << 6
	StatusResume      uint8 = 1 << 7
)

const (
	ProtocolLayerVersion  uint8 = 1
	TransportLayerVersion uint8 = 1
)

// Session is the connection state machine:
// DISCONNECTED ⇄ CONNECTED ⇄ CONNECTED+DAQ_RUNNING. One Session per
// xcp.Server; the server accepts a single client, so a single
// mutex-guarded struct is the whole model; there is no hot path here;
// every mutation happens on the command-dispatch goroutine.
type Session struct {
	mu sync.Mutex

	connected bool

	maxCTO    uint8
	maxDTO    uint16
	clusterID uint16

	mtaExt  uint8
	mtaAddr uint32

	resume bool
}

// NewSession configures the static facts CONNECT reports: MAX_CTO,
// MAX_DTO (both derived from the server's configured MTU/option set)
// and the DAQ cluster id, which is stored and reported by ClusterID.
func NewSession(maxCTO uint8, maxDTO uint16, clusterID uint16) *Session {
	return &Session{maxCTO: maxCTO, maxDTO: maxDTO, clusterID: clusterID}
}

// Connect transitions DISCONNECTED → CONNECTED. The mode byte (0x00
// normal / 0x01 user-defined) only affects whether the slave resumes a
// previously stored session; sessions are not persisted across
// restarts, so both modes behave identically here.
func (s *Session) Connect(mode uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
}

// Disconnect transitions to DISCONNECTED and clears the MTA.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.mtaExt, s.mtaAddr = 0, 0
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) MaxCTO() uint8   { return s.maxCTO }
func (s *Session) MaxDTO() uint16  { return s.maxDTO }
func (s *Session) ClusterID() uint16 { return s.clusterID }

// SetMTA stores the sliding Memory Transfer Address used by
// UPLOAD/DOWNLOAD/SHORT_UPLOAD/SHORT_DOWNLOAD.
func (s *Session) SetMTA(ext uint8, addr uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mtaExt, s.mtaAddr = ext, addr
}

// MTA returns the current extension/address pair.
func (s *Session) MTA() (ext uint8, addr uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mtaExt, s.mtaAddr
}

// AdvanceMTA slides the MTA forward by n bytes after an
// UPLOAD/DOWNLOAD.
func (s *Session) AdvanceMTA(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mtaAddr += n
}
