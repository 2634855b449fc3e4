package queue

import (
	"sync"
	"unsafe"

	"code.hybscloud.com/spin"

	"code.hybscloud.com/xcp/platform"
)

// casSlot is one physical ring position for the CAS-based queue. Unlike
// the FAA variant's round/state word, a single seq counter carries both
// roles: seq==pos means free for round pos/capacity, seq==pos+1 means
// committed and ready for Peek, seq==pos+capacity means retired and
// free for the next lap. The gap between a successful tail CAS and the
// seq.StoreRelease in Commit *is* the RESERVED window; the consumer's
// seq==pos+1 check simply can't pass until Commit runs, so no extra
// state bits are needed.
type casSlot struct {
	seq    platform.Uint64
	pos    uint64 // producer-private scratch between Acquire and Commit
	length uint32
	flush  bool
	data   []byte
}

// casQueue is the CAS-based MPSC transport queue, adapted from lfq's
// mpsc_seq.go. It trades the FAA variant's 2n physical slots for n
// slots at the cost of a CAS retry loop instead of a blind FAA.
type casQueue struct {
	_    pad
	head platform.Uint64 // consumer drain counter
	_    pad
	tail platform.Uint64 // producers CAS here
	_    pad

	overruns platform.Uint32
	_        pad

	slots    []casSlot
	capacity uint64
	mask     uint64
	maxEntry int

	segMu      sync.Mutex
	segBuf     []byte
	maxSegment int
	pendingRel uint64

	counter      uint32
	lastReported uint32
	lastFlush    bool

	notify chan struct{}
}

// NewCAS creates the CAS-based transport queue. Same contract as New,
// different producer-side claiming strategy (CAS-retry over n slots
// rather than FAA over 2n).
func NewCAS(capacity, maxEntry, maxSegment int) Queue {
	if capacity < 2 {
		panic("queue: capacity must be >= 2")
	}
	if maxEntry < headerSize {
		panic("queue: maxEntry must be large enough for the transport header")
	}
	if maxSegment < maxEntry+headerSize {
		panic("queue: maxSegment must fit at least one maximum-size entry")
	}
	n := uint64(roundToPow2(capacity))

	q := &casQueue{
		slots:      make([]casSlot, n),
		capacity:   n,
		mask:       n - 1,
		maxEntry:   maxEntry,
		segBuf:     make([]byte, maxSegment),
		maxSegment: maxSegment,
		notify:     make(chan struct{}, 1),
	}
	arena := make([]byte, int(n)*maxEntry)
	for i := range q.slots {
		q.slots[i].seq.StoreRelaxed(uint64(i))
		q.slots[i].data = arena[i*maxEntry : (i+1)*maxEntry : (i+1)*maxEntry]
	}
	return q
}

func (q *casQueue) MaxEntry() int { return q.maxEntry }

func (q *casQueue) Acquire(n int) (buf []byte, err error) {
	if n < 0 || n > q.maxEntry {
		panic("queue: acquire length out of range")
	}
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		head := q.head.LoadAcquire()
		if tail >= head+q.capacity {
			q.overruns.AddAcqRel(1)
			return nil, ErrWouldBlock
		}

		s := &q.slots[tail&q.mask]
		seq := s.seq.LoadAcquire()

		if seq == tail {
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				s.pos = tail
				return s.data[:n:n], nil
			}
			// Lost the race; reread and retry.
		} else if seq < tail {
			q.overruns.AddAcqRel(1)
			return nil, ErrWouldBlock
		}
		sw.Once()
	}
}

func (q *casQueue) Commit(buf []byte, flush bool) {
	s := q.slotOf(buf)
	s.length = uint32(len(buf))
	s.flush = flush
	s.seq.StoreRelease(s.pos + 1)
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *casQueue) slotOf(buf []byte) *casSlot {
	base := unsafe.SliceData(q.slots[0].data)
	off := ptrDiff(unsafe.SliceData(buf), base)
	idx := off / q.maxEntry
	return &q.slots[idx]
}

func (q *casQueue) Peek() (seg []byte, ok bool) {
	q.segMu.Lock()
	defer q.segMu.Unlock()

	head := q.head.LoadRelaxed()
	n := 0
	consumed := uint64(0)
	sawFlush := false

	for {
		pos := head + consumed
		s := &q.slots[pos&q.mask]
		seq := s.seq.LoadAcquire()
		if seq != pos+1 {
			break
		}
		msgLen := headerSize + int(s.length)
		if n+msgLen > q.maxSegment {
			break
		}
		gap := uint32(0)
		if consumed == 0 {
			total := q.overruns.LoadAcquire()
			gap = total - q.lastReported
			q.lastReported = total
		}
		counter := uint16(q.counter)
		q.counter += 1 + gap
		packHeader(q.segBuf[n:n+headerSize], uint16(s.length), counter)
		copy(q.segBuf[n+headerSize:n+msgLen], s.data[:s.length])
		n += msgLen
		if s.flush {
			sawFlush = true
		}
		consumed++
	}

	if consumed == 0 {
		return nil, false
	}
	q.pendingRel = consumed
	q.lastFlush = sawFlush
	return q.segBuf[:n:n], true
}

func (q *casQueue) Flushed() bool {
	q.segMu.Lock()
	defer q.segMu.Unlock()
	return q.lastFlush
}

func (q *casQueue) Release(seg []byte) {
	q.segMu.Lock()
	consumed := q.pendingRel
	q.pendingRel = 0
	q.segMu.Unlock()
	if consumed == 0 {
		return
	}
	head := q.head.LoadRelaxed()
	for i := uint64(0); i < consumed; i++ {
		pos := head + i
		s := &q.slots[pos&q.mask]
		s.seq.StoreRelease(pos + q.capacity)
	}
	q.head.StoreRelease(head + consumed)
}

func (q *casQueue) Level() int {
	tail := q.tail.LoadAcquire()
	head := q.head.LoadAcquire()
	return int(tail - head)
}

func (q *casQueue) Clear() {
	q.segMu.Lock()
	defer q.segMu.Unlock()
	head := q.head.LoadRelaxed()
	tail := q.tail.LoadRelaxed()
	for pos := head; pos < tail; pos++ {
		q.slots[pos&q.mask].seq.StoreRelease(pos + q.capacity)
	}
	q.head.StoreRelease(tail)
	q.overruns.StoreRelaxed(0)
	q.lastReported = 0
	q.pendingRel = 0
}

func (q *casQueue) Overruns() uint32 { return q.overruns.LoadAcquire() }

func (q *casQueue) Notify() <-chan struct{} { return q.notify }
