package xcp

import (
	"time"

	"github.com/rs/zerolog"

	"code.hybscloud.com/xcp/addr"
	"code.hybscloud.com/xcp/platform"
)

// config collects every Option's effect before New builds the wired
// Server: a plain struct of defaults, mutated in place by a chain of
// functional options.
type config struct {
	queueCapacity   int
	queueMaxEntry   int
	queueMaxSegment int
	useCASQueue     bool

	clockUnit platform.ClockUnit

	maxCTO    uint8
	maxDTO    uint16
	clusterID uint16

	baseAddr   uint32
	extensions []addr.Extension

	daqMemBudget int

	logger zerolog.Logger

	recvTimeout time.Duration
	connTimeout time.Duration // T7: close the session if idle this long
}

func defaultConfig() config {
	return config{
		queueCapacity:   1024,
		queueMaxEntry:   256,
		queueMaxSegment: 1400, // below a 1500-byte Ethernet MTU minus IP/UDP headers (1472)

		clockUnit: platform.ClockMicroseconds,

		maxCTO:    248, // the XCP-on-Ethernet maximum
		maxDTO:    1400 - 28,
		clusterID: 0,

		baseAddr:   0,
		extensions: []addr.Extension{addr.SEG, addr.A2L},

		daqMemBudget: 1 << 16,

		logger: zerolog.Nop(),

		recvTimeout: 100 * time.Millisecond,
		connTimeout: 0, // disabled unless WithConnectionTimeout is used
	}
}

// Option configures a Server at construction time.
type Option func(*config)

// WithQueue overrides the transport queue's capacity (slot count),
// per-entry byte cap, and the maximum bytes Peek consolidates into one
// transport segment.
func WithQueue(capacity, maxEntry, maxSegment int) Option {
	return func(c *config) {
		c.queueCapacity, c.queueMaxEntry, c.queueMaxSegment = capacity, maxEntry, maxSegment
	}
}

// WithCASQueue selects the CAS-loop queue variant (queue.NewCAS)
// instead of the default FAA variant.
func WithCASQueue() Option {
	return func(c *config) { c.useCASQueue = true }
}

// WithClockUnit selects the unit GET_DAQ_CLOCK reports ticks in.
func WithClockUnit(unit platform.ClockUnit) Option {
	return func(c *config) { c.clockUnit = unit }
}

// WithMTU derives MAX_DTO from an Ethernet MTU, subtracting the IP and
// UDP header overhead.
func WithMTU(mtu int) Option {
	return func(c *config) {
		c.maxDTO = uint16(mtu - 20 - 8)
		c.queueMaxSegment = mtu - 20 - 8
	}
}

// WithMaxCTO overrides MAX_CTO reported by CONNECT (default 248, the
// protocol maximum).
func WithMaxCTO(n uint8) Option {
	return func(c *config) { c.maxCTO = n }
}

// WithClusterID sets the DAQ cluster id the Session stores and reports
// through Session.ClusterID; no framing code in this module reads it.
func WithClusterID(id uint16) Option {
	return func(c *config) { c.clusterID = id }
}

// WithBaseAddr sets the process base address ABS addresses are offset
// from, typically the load address of the executable image.
func WithBaseAddr(base uint32) Option {
	return func(c *config) { c.baseAddr = base }
}

// WithExtensions declares which address extensions are enabled; any
// other extension resolves to ACCESS_DENIED. Replaces the default
// (SEG, A2L) entirely.
func WithExtensions(exts ...addr.Extension) Option {
	return func(c *config) { c.extensions = exts }
}

// WithDaqMemBudget caps total ODT-entry bytes across every allocated
// DAQ list.
func WithDaqMemBudget(n int) Option {
	return func(c *config) { c.daqMemBudget = n }
}

// WithLogger installs a structured logger. Default is zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRecvTimeout bounds how long the receive task blocks in one
// RecvCommand call before looping to check for shutdown; shorter
// values make Stop more responsive at the cost of a busier poll.
func WithRecvTimeout(d time.Duration) Option {
	return func(c *config) { c.recvTimeout = d }
}

// WithConnectionTimeout enables the T7 "no command within this window"
// server-side disconnect. Zero (the default) disables it.
func WithConnectionTimeout(d time.Duration) Option {
	return func(c *config) { c.connTimeout = d }
}
