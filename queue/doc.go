// Package queue implements the transport queue: a bounded, lock-free
// multi-producer/single-consumer pipeline carrying framed transport
// messages from ECU event threads (and the protocol command handler)
// to the one goroutine that owns the socket.
//
// Unlike code.hybscloud.com/lfq's Queue[T], entries here are
// variable-length byte payloads bounded by a fixed maximum (the DAQ
// engine's entries are one ODT's worth of bytes; the protocol layer's
// entries are one command response). The algorithms are adapted from
// lfq's fixed-slot MPSC queues by giving every physical slot a
// fixed-capacity byte backing array and a used-length field, and by
// splitting the single Enqueue into an Acquire/Commit pair: producers
// write their payload between the two calls, and the consumer never
// reads a slot until Commit has published it.
//
// Two producer-side claiming strategies are provided:
//
//   - New: FAA-style slot claiming with a round/state word per slot,
//     adapted from lfq's mpsc.go. The default.
//   - NewCAS: producers claim a slot with a CAS retry loop over a
//     single seq counter per slot, adapted from mpsc_seq.go's shape.
//
// The consumer calls Peek to consolidate one or more committed entries
// into a single transport segment, assigning the real XCP transport
// counter at that point so counters are globally ordered regardless of
// producer interleaving, sends it, then Release.
package queue
