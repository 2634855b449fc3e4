package calseg

import "sync"

// stagedWrite is one calibration write recorded between BeginTransaction
// and EndTransaction.
type stagedWrite struct {
	seg    int
	offset int
	data   []byte
}

// Manager owns the process-wide set of calibration segments and the
// atomic-transaction state shared across them (USER_CMD 0x01/0x02).
// One Manager per xcp.Server.
type Manager struct {
	mu      sync.Mutex
	segs    []*CalSeg
	byName  map[string]int
	txnOpen bool
	staged  []stagedWrite
}

// NewManager creates an empty calibration-segment manager.
func NewManager() *Manager {
	return &Manager{byName: make(map[string]int)}
}

// AddSegment registers a new calibration segment of size bytes, with
// scratchBuffers spare pool entries for page-republish operations
// (CopyCalPage, FreezeCalPage, transaction commit; two is enough for
// any single in-flight operation plus one retiring generation, but
// callers running many segments under heavy calibration traffic may
// want more). Returns the segment's index, used by every other Manager
// method and by GET_CAL_PAGE/SET_CAL_PAGE et al.'s segment parameter.
func (m *Manager) AddSegment(name string, size, scratchBuffers int, freeze FreezeFunc) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	pool := newPagePool(scratchBuffers, size)
	seg := newCalSeg(name, size, pool, freeze)
	idx := len(m.segs)
	m.segs = append(m.segs, seg)
	m.byName[name] = idx
	return idx
}

func (m *Manager) seg(idx int) (*CalSeg, error) {
	if idx < 0 || idx >= len(m.segs) {
		return nil, ErrSegmentNotValid
	}
	return m.segs[idx], nil
}

// IndexByName resolves a segment name to its index, for A2L-driven
// address resolution.
func (m *Manager) IndexByName(name string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.byName[name]
	return idx, ok
}

// Lock and Unlock delegate to the named segment's lock-free critical
// section. These are the calls the ECU application thread
// makes around reading calibration data, so they never take Manager's
// own mutex.
func (m *Manager) Lock(idx int) ([]byte, error) {
	s, err := m.seg(idx)
	if err != nil {
		return nil, err
	}
	return s.Lock(), nil
}

func (m *Manager) Unlock(idx int) error {
	s, err := m.seg(idx)
	if err != nil {
		return err
	}
	s.Unlock()
	return nil
}

func (m *Manager) GetCalPage(idx int) (int, error) {
	s, err := m.seg(idx)
	if err != nil {
		return 0, err
	}
	return s.GetCalPage(), nil
}

func (m *Manager) SetCalPage(idx, page int) error {
	s, err := m.seg(idx)
	if err != nil {
		return err
	}
	return s.SetCalPage(page)
}

func (m *Manager) CopyCalPage(idx, src, dst int) error {
	s, err := m.seg(idx)
	if err != nil {
		return err
	}
	return s.CopyCalPage(src, dst)
}

func (m *Manager) FreezeCalPage(idx int) error {
	s, err := m.seg(idx)
	if err != nil {
		return err
	}
	return s.FreezeCalPage()
}

func (m *Manager) BuildChecksum(idx, offset, length int) (uint32, error) {
	s, err := m.seg(idx)
	if err != nil {
		return 0, err
	}
	return s.BuildChecksum(offset, length)
}

func (m *Manager) Read(idx, offset, n int) ([]byte, error) {
	s, err := m.seg(idx)
	if err != nil {
		return nil, err
	}
	return s.Read(offset, n)
}

// Write lands a calibration write on the working page immediately, or,
// if an atomic transaction is open, stages it for EndTransaction to
// apply with the rest of the transaction in one step.
func (m *Manager) Write(idx, offset int, data []byte) error {
	s, err := m.seg(idx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.txnOpen {
		cp := make([]byte, len(data))
		copy(cp, data)
		m.staged = append(m.staged, stagedWrite{seg: idx, offset: offset, data: cp})
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return s.Write(offset, data)
}

// BeginTransaction opens an atomic calibration transaction (USER_CMD
// 0x01).
func (m *Manager) BeginTransaction() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txnOpen {
		return ErrTransactionActive
	}
	m.txnOpen = true
	m.staged = m.staged[:0]
	return nil
}

// EndTransaction closes the transaction (USER_CMD 0x02), publishing
// every staged write to its segment in one pass per segment so no
// concurrent Lock/Unlock critical section observes a partial set.
func (m *Manager) EndTransaction() error {
	m.mu.Lock()
	if !m.txnOpen {
		m.mu.Unlock()
		return ErrNoTransaction
	}
	staged := m.staged
	m.staged = nil
	m.txnOpen = false
	m.mu.Unlock()

	bySeg := make(map[int][]stagedWrite)
	order := make([]int, 0, len(bySeg))
	for _, w := range staged {
		if _, ok := bySeg[w.seg]; !ok {
			order = append(order, w.seg)
		}
		bySeg[w.seg] = append(bySeg[w.seg], w)
	}
	for _, idx := range order {
		s, err := m.seg(idx)
		if err != nil {
			return err
		}
		if err := s.applyTransaction(bySeg[idx]); err != nil {
			return err
		}
	}
	return nil
}
