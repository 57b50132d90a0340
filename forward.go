// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

import "io"

// forwardQueueLen bounds how many datagrams a Forwarder holds between the
// source's burst delivery and the destination's drain.
const forwardQueueLen = 8

type forwardEntry struct {
	service    uint8
	subService uint8
	data       []byte
}

// Forwarder relays datagrams from a source Link to a destination Link while
// preserving datagram boundaries — a gateway between two buses.
//
// Semantics:
//   - One call to ForwardOnce completes at most one datagram end to end.
//   - Two-phase per datagram: 1) poll the source until a datagram is queued;
//     2) enqueue it on the destination and flush until its frames are on the
//     wire. Either phase may return early with ErrWouldBlock (retry later) or
//     ErrMore (usable progress, call again).
//   - Datagram payloads are copied into preallocated queue slots at intake;
//     steady-state forwarding does not allocate.
//   - A source Poll can deliver several datagrams at once; up to
//     forwardQueueLen are held and relayed in order. Beyond that, intake
//     answers ResponseInvalidRequest and the datagram is counted by Dropped.
//
// Retry rule: on ErrWouldBlock or ErrMore, retry ForwardOnce on the SAME
// instance — in-flight state (queued datagrams, the half-sent head) lives here.
type Forwarder struct {
	src *Link
	dst *Link

	q     [forwardQueueLen]forwardEntry
	head  int
	count int

	sent       bool // head already enqueued on dst, awaiting flush
	dropped    uint64
	eofPending bool
}

// NewForwarder constructs a Forwarder relaying src's inbound datagrams to dst.
// It attaches itself to src's receive path; src's own handler keeps running
// alongside it.
func NewForwarder(dst, src *Link) *Forwarder {
	f := &Forwarder{src: src, dst: dst}
	for i := range f.q {
		f.q[i].data = make([]byte, 0, src.e.opt.DatagramLengthMax)
	}
	src.forward = f.intake
	return f
}

func (f *Forwarder) intake(d Datagram) ResponseCode {
	if f.count == len(f.q) {
		f.dropped++
		return ResponseInvalidRequest
	}
	slot := &f.q[(f.head+f.count)%len(f.q)]
	slot.service = d.ServiceIndex
	slot.subService = d.SubServiceIndex
	slot.data = append(slot.data[:0], d.Data...)
	f.count++
	return ResponsePositive
}

// Dropped returns how many datagrams were discarded because the relay queue
// was full at intake time.
func (f *Forwarder) Dropped() uint64 { return f.dropped }

// Pending reports whether datagrams are queued or half-forwarded.
func (f *Forwarder) Pending() bool { return f.count > 0 || f.dst.Pending() }

// ForwardOnce forwards at most one datagram. The returned count is the number
// of wire bytes written to the destination in this call.
func (f *Forwarder) ForwardOnce() (n int, err error) {
	if f.count == 0 {
		if f.eofPending {
			return 0, io.EOF
		}
		_, err := f.src.Poll()
		if err != nil {
			if err == io.EOF {
				if f.count == 0 {
					return 0, io.EOF
				}
				// Final read delivered data together with EOF; forward it
				// before reporting end of stream.
				f.eofPending = true
			} else if f.count == 0 {
				return 0, err
			}
		}
		if f.count == 0 {
			return 0, nil
		}
	}

	head := &f.q[f.head]
	if !f.sent {
		err := f.dst.Send(Datagram{
			ServiceIndex:    head.service,
			SubServiceIndex: head.subService,
			Data:            head.data,
		})
		switch err {
		case nil:
			f.sent = true
		case ErrBufferFull:
			// Drain the destination ring, then retry the enqueue next call.
			wn, we := f.dst.Flush()
			if we != nil {
				return wn, we
			}
			return wn, ErrMore
		default:
			return 0, err
		}
	}

	wn, we := f.dst.Flush()
	if we != nil {
		return wn, we
	}
	f.sent = false
	f.head = (f.head + 1) % len(f.q)
	f.count--
	return wn, nil
}
