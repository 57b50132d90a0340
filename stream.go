// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

import (
	"io"
	"runtime"
	"time"
)

// Handler consumes reassembled datagrams. The Datagram's Data aliases an
// engine buffer reused for the next datagram; copy to retain.
type Handler func(Datagram) ResponseCode

// Link binds an Engine to an io.Reader/io.Writer transport pair.
//
// Non-blocking first: iox.ErrWouldBlock and iox.ErrMore are surfaced as
// control-flow signals (re-exposed as prlsc.ErrWouldBlock / prlsc.ErrMore).
// Flush additionally returns ErrWouldBlock when every queued service is still
// inside its rate-limit window; RateLimitWait reports the remaining ticks.
// Hot paths avoid allocations and return promptly.
//
// A Link is single-context like the Engine it wraps: poll and flush from one
// logical goroutine.
type Link struct {
	e          *Engine
	rd         io.Reader
	wr         io.Writer
	retryDelay time.Duration

	h       Handler
	forward Handler // set by NewForwarder

	// Staged escaped bytes of the frame currently being written, with
	// partial-write resume: out[outOff:] is the unwritten tail.
	out    []byte
	outOff int

	rbuf      []byte
	delivered int
	lastWait  Time
}

// NewLink returns a Link speaking the engine protocol over r and w. Either
// side may be nil for a one-directional link; the unused direction's methods
// return ErrInvalidArgument. A nil handler discards inbound datagrams.
func NewLink(r io.Reader, w io.Writer, h Handler, services []ServiceConfig, opts ...Option) (*Link, error) {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}

	l := &Link{
		rd:         r,
		wr:         w,
		retryDelay: o.RetryDelay,
		h:          h,
		rbuf:       make([]byte, 512),
	}
	e, err := NewEngine(Hooks{
		SendByte:   func(b byte) { l.out = append(l.out, b) },
		OnDatagram: l.deliver,
	}, services, opts...)
	if err != nil {
		return nil, err
	}
	l.e = e
	l.out = make([]byte, 0, 2*(e.opt.FrameLengthMax+frameOverhead))
	return l, nil
}

// NewLoopback returns a Link whose transmit side feeds its own receive side.
// Sent datagrams surface at the handler during Flush; there is no underlying
// transport and Poll is not available.
func NewLoopback(h Handler, services []ServiceConfig, opts ...Option) (*Link, error) {
	l, err := NewLink(nil, nil, h, services, opts...)
	if err != nil {
		return nil, err
	}
	l.wr = loopbackWriter{l}
	return l, nil
}

type loopbackWriter struct{ l *Link }

func (w loopbackWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		w.l.e.ReceiveByte(b)
	}
	return len(p), nil
}

// Engine exposes the underlying engine, primarily for the sticky error code
// and test/bypass surfaces.
func (l *Link) Engine() *Engine { return l.e }

func (l *Link) deliver(d Datagram) ResponseCode {
	l.delivered++
	rc := ResponseUnknownRequest
	if l.h != nil {
		rc = l.h(d)
	}
	if l.forward != nil {
		l.forward(d)
	}
	return rc
}

// Send enqueues one datagram for transmission. It does not write to the
// transport; call Flush to drain. ErrBufferFull is retryable after a Flush.
func (l *Link) Send(d Datagram) error {
	if l.wr == nil {
		return ErrInvalidArgument
	}
	s := int(d.ServiceIndex)
	if s >= len(l.e.services) {
		return ErrInvalidArgument
	}
	if len(d.Data) > l.e.opt.DatagramLengthMax ||
		(l.e.services[s].Stream && len(d.Data) > l.e.opt.FrameLengthMax) {
		return ErrTooLong
	}
	if l.e.TransmitDatagram(d) == 0 {
		return ErrBufferFull
	}
	return nil
}

// Flush drives the scheduler and byte pump, writing staged wire bytes to the
// transport until every eligible frame has gone out. It returns the number of
// wire bytes written and:
//   - nil when nothing remains to send,
//   - ErrWouldBlock when queued data is gated by a rate limit (see
//     RateLimitWait) or the transport pushed back,
//   - the transport's error otherwise.
//
// On ErrWouldBlock the caller retries Flush on the same Link; staged progress
// is kept across calls.
func (l *Link) Flush() (n int, err error) {
	if l.wr == nil {
		return 0, ErrInvalidArgument
	}
	for {
		for l.outOff < len(l.out) {
			wn, we := l.writeOnce(l.out[l.outOff:])
			l.outOff += wn
			n += wn
			if we != nil {
				return n, we
			}
		}

		if l.e.pump.phase == txPumpIdle {
			_, lifted, ok := l.e.PrepareServiceTransmission()
			if !ok {
				l.lastWait = lifted
				if lifted > 0 {
					return n, ErrWouldBlock
				}
				return n, nil
			}
			l.lastWait = 0
		}

		// Stage the armed frame's full wire encoding, then loop to write it.
		l.out = l.out[:0]
		l.outOff = 0
		for l.e.TxByte() {
		}
	}
}

// RateLimitWait returns the tick count reported by the last Flush that ended
// in a rate-limit wait; zero otherwise. The tick unit is the host clock's.
func (l *Link) RateLimitWait() Time { return l.lastWait }

// Pending reports whether the Link still holds bytes or frames to transmit.
func (l *Link) Pending() bool {
	if l.outOff < len(l.out) || l.e.pump.phase != txPumpIdle {
		return true
	}
	for s := range l.e.tx {
		if !l.e.tx[s].empty() {
			return true
		}
	}
	return false
}

// Poll reads whatever the transport has available and feeds it through the
// receive path, delivering completed datagrams to the handler from within this
// call. It returns the number of datagrams delivered. ErrWouldBlock, ErrMore
// and io.EOF propagate from the transport per the usual contracts; datagrams
// delivered alongside a semantic error are still counted.
func (l *Link) Poll() (delivered int, err error) {
	if l.rd == nil {
		return 0, ErrInvalidArgument
	}
	l.delivered = 0
	n, err := l.readOnce(l.rbuf)
	for _, b := range l.rbuf[:n] {
		l.e.ReceiveByte(b)
	}
	return l.delivered, err
}

func (l *Link) waitOnce() bool {
	// returns whether the caller should retry
	if l.retryDelay < 0 {
		return false
	}
	if l.retryDelay == 0 {
		runtime.Gosched()
		return true
	}
	time.Sleep(l.retryDelay)
	return true
}

func (l *Link) readOnce(p []byte) (n int, err error) {
	for {
		n, err = l.rd.Read(p)
		// Guard against broken Readers that violate the io.Reader contract by
		// returning (0, nil) on a non-empty buffer.
		if len(p) != 0 && n == 0 && err == nil {
			return 0, io.ErrNoProgress
		}
		if n > 0 {
			return n, err
		}
		if err != ErrWouldBlock {
			return n, err
		}
		if !l.waitOnce() {
			return n, err
		}
	}
}

func (l *Link) writeOnce(p []byte) (n int, err error) {
	for {
		n, err = l.wr.Write(p)
		// Guard against broken Writers that return (0, nil); without this the
		// staged-frame drain can spin indefinitely.
		if len(p) != 0 && n == 0 && err == nil {
			return 0, io.ErrShortWrite
		}
		if n > 0 {
			return n, err
		}
		if err != ErrWouldBlock {
			return n, err
		}
		if !l.waitOnce() {
			return n, err
		}
	}
}
