package queue_test

import (
	"errors"
	"sync"
	"testing"

	"code.hybscloud.com/xcp/queue"
)

// queueFactories lets every test run against both transport queue
// implementations rather than duplicating each test body.
var queueFactories = []struct {
	name string
	new  func(capacity, maxEntry, maxSegment int) queue.Queue
}{
	{"FAA", queue.New},
	{"CAS", queue.NewCAS},
}

func TestAcquireCommitPeekRelease(t *testing.T) {
	for _, f := range queueFactories {
		t.Run(f.name, func(t *testing.T) {
			q := f.new(4, 16, 64)

			buf, err := q.Acquire(4)
			if err != nil {
				t.Fatalf("Acquire failed: %v", err)
			}
			copy(buf, "ping")
			q.Commit(buf, false)

			if got := q.Level(); got != 1 {
				t.Fatalf("Level() = %d, want 1", got)
			}

			seg, ok := q.Peek()
			if !ok {
				t.Fatalf("Peek returned nothing after Commit")
			}
			if len(seg) != 4+4 {
				t.Fatalf("segment length = %d, want 8", len(seg))
			}
			wantLen := uint16(4)
			gotLen := uint16(seg[0]) | uint16(seg[1])<<8
			if gotLen != wantLen {
				t.Fatalf("header length = %d, want %d", gotLen, wantLen)
			}
			if string(seg[4:8]) != "ping" {
				t.Fatalf("payload = %q, want %q", seg[4:8], "ping")
			}

			q.Release(seg)
			if got := q.Level(); got != 0 {
				t.Fatalf("Level() after Release = %d, want 0", got)
			}

			if _, ok := q.Peek(); ok {
				t.Fatalf("Peek succeeded on an empty queue")
			}
		})
	}
}

func TestPeekConsolidatesMultipleEntries(t *testing.T) {
	for _, f := range queueFactories {
		t.Run(f.name, func(t *testing.T) {
			q := f.new(8, 8, 256)

			for i := 0; i < 3; i++ {
				buf, err := q.Acquire(2)
				if err != nil {
					t.Fatalf("Acquire %d failed: %v", i, err)
				}
				buf[0] = byte(i)
				buf[1] = byte(i)
				q.Commit(buf, i == 2)
			}

			seg, ok := q.Peek()
			if !ok {
				t.Fatalf("Peek found nothing")
			}
			if len(seg) != 3*(4+2) {
				t.Fatalf("segment length = %d, want %d", len(seg), 3*(4+2))
			}
			if !q.Flushed() {
				t.Fatalf("Flushed() = false, want true (last entry requested a flush)")
			}

			var counters []uint16
			off := 0
			for off < len(seg) {
				dlc := uint16(seg[off]) | uint16(seg[off+1])<<8
				ctr := uint16(seg[off+2]) | uint16(seg[off+3])<<8
				counters = append(counters, ctr)
				off += 4 + int(dlc)
			}
			for i := 1; i < len(counters); i++ {
				if counters[i] != counters[i-1]+1 {
					t.Fatalf("transport counters not sequential: %v", counters)
				}
			}

			q.Release(seg)
			if q.Level() != 0 {
				t.Fatalf("Level() after Release = %d, want 0", q.Level())
			}
		})
	}
}

func TestAcquireOverrunWhenFull(t *testing.T) {
	for _, f := range queueFactories {
		t.Run(f.name, func(t *testing.T) {
			// maxSegment fits exactly one entry, forcing Peek to
			// consolidate one at a time so the counter-gap assertions
			// below line up with individual Release calls.
			q := f.new(2, 1, 5) // rounds up to capacity 2

			for i := 0; i < 2; i++ {
				buf, err := q.Acquire(1)
				if err != nil {
					t.Fatalf("Acquire %d should have succeeded: %v", i, err)
				}
				q.Commit(buf, false)
			}

			if _, err := q.Acquire(1); !errors.Is(err, queue.ErrWouldBlock) {
				t.Fatalf("Acquire on a full queue = %v, want ErrWouldBlock", err)
			}
			if got := q.Overruns(); got != 1 {
				t.Fatalf("Overruns() = %d, want 1", got)
			}

			// The transport counter folds the overrun gap into the next
			// entry Peek'd, rather than surfacing it as a command error.
			seg, ok := q.Peek()
			if !ok {
				t.Fatalf("Peek found nothing")
			}
			ctr0 := uint16(seg[2]) | uint16(seg[3])<<8
			q.Release(seg)

			buf, err := q.Acquire(1)
			if err != nil {
				t.Fatalf("Acquire after Release failed: %v", err)
			}
			q.Commit(buf, false)
			seg, ok = q.Peek()
			if !ok {
				t.Fatalf("Peek found nothing")
			}
			ctr1 := uint16(seg[2]) | uint16(seg[3])<<8
			if ctr1 != ctr0+2 {
				t.Fatalf("counter after one dropped entry = %d, want %d", ctr1, ctr0+2)
			}
		})
	}
}

func TestAcquireRejectsOversizeEntry(t *testing.T) {
	for _, f := range queueFactories {
		t.Run(f.name, func(t *testing.T) {
			q := f.new(4, 16, 64)
			defer func() {
				if recover() == nil {
					t.Fatalf("Acquire(n > maxEntry) did not panic")
				}
			}()
			q.Acquire(17)
		})
	}
}

func TestClearResetsState(t *testing.T) {
	for _, f := range queueFactories {
		t.Run(f.name, func(t *testing.T) {
			q := f.new(4, 8, 64)
			for i := 0; i < 3; i++ {
				buf, err := q.Acquire(1)
				if err != nil {
					t.Fatalf("Acquire %d failed: %v", i, err)
				}
				q.Commit(buf, false)
			}
			q.Clear()
			if got := q.Level(); got != 0 {
				t.Fatalf("Level() after Clear = %d, want 0", got)
			}
			if got := q.Overruns(); got != 0 {
				t.Fatalf("Overruns() after Clear = %d, want 0", got)
			}
			buf, err := q.Acquire(1)
			if err != nil {
				t.Fatalf("Acquire after Clear failed: %v", err)
			}
			q.Commit(buf, false)
			if got := q.Level(); got != 1 {
				t.Fatalf("Level() after post-Clear Acquire = %d, want 1", got)
			}
		})
	}
}

// TestConcurrentProducers exercises many goroutines racing Acquire/Commit
// against a single consumer draining via Peek/Release.
func TestConcurrentProducers(t *testing.T) {
	for _, f := range queueFactories {
		t.Run(f.name, func(t *testing.T) {
			const producers = 16
			const perProducer = 200
			q := f.new(32, 8, 512)

			var wg sync.WaitGroup
			done := make(chan struct{})
			var drained int
			go func() {
				for {
					select {
					case <-done:
						return
					case <-q.Notify():
					}
					for {
						seg, ok := q.Peek()
						if !ok {
							break
						}
						off := 0
						for off < len(seg) {
							dlc := uint16(seg[off]) | uint16(seg[off+1])<<8
							off += 4 + int(dlc)
							drained++
						}
						q.Release(seg)
					}
				}
			}()

			for i := 0; i < producers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < perProducer; j++ {
						for {
							buf, err := q.Acquire(1)
							if err == nil {
								buf[0] = 1
								q.Commit(buf, false)
								break
							}
						}
					}
				}()
			}
			wg.Wait()

			// Drain any stragglers the consumer goroutine hasn't picked
			// up yet before asserting on the final count.
			for q.Level() > 0 {
				seg, ok := q.Peek()
				if !ok {
					break
				}
				off := 0
				for off < len(seg) {
					dlc := uint16(seg[off]) | uint16(seg[off+1])<<8
					off += 4 + int(dlc)
					drained++
				}
				q.Release(seg)
			}
			close(done)

			if want := producers * perProducer; drained != want {
				t.Fatalf("drained %d entries, want %d", drained, want)
			}
		})
	}
}
