// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

type txPumpPhase uint8

const (
	txPumpIdle txPumpPhase = iota
	txPumpStart
	txPumpNormal
	txPumpEscaped
)

// txPumpState drains the latched frame one wire byte at a time. The frame's
// raw bytes were copied out of the ring at latch time, so the ring seam never
// shows up here; escaping happens on the way out.
type txPumpState struct {
	phase        txPumpPhase
	buf          []byte
	length       int
	serviceIndex uint8
	idx          int
	pendingEsc   byte
	ringStart    int
}

// TxByte emits at most one byte through the SendByte hook and reports whether
// it did. The host loops until false to drain the current frame; each call
// emits exactly one byte, keeping pacing and FIFO interleaving under host
// control.
func (e *Engine) TxByte() bool {
	p := &e.pump
	switch p.phase {
	case txPumpStart:
		// The leading start byte is the one byte that is never escaped.
		e.hooks.SendByte(p.buf[0])
		p.idx = 1
		p.phase = txPumpNormal
		return true

	case txPumpNormal:
		b := p.buf[p.idx]
		if tail, ok := e.opt.escTail(b); ok {
			e.hooks.SendByte(e.opt.Esc)
			p.pendingEsc = tail
			p.phase = txPumpEscaped
			return true
		}
		e.hooks.SendByte(b)
		p.idx++
		if p.idx >= p.length {
			e.completeFrame()
		}
		return true

	case txPumpEscaped:
		e.hooks.SendByte(p.pendingEsc)
		p.idx++
		if p.idx >= p.length {
			e.completeFrame()
		} else {
			p.phase = txPumpNormal
		}
		return true
	}
	return false
}

// completeFrame marks the latched frame as sent: stamps the service's
// last-transmitted time and consumes the frame from its ring. If an
// OnlyTxLatest enqueue already moved the read cursor while this frame was in
// flight, the cursor is left alone — those bytes now belong to newer frames.
func (e *Engine) completeFrame() {
	p := &e.pump
	s := p.serviceIndex
	e.lastTransmitted[s] = e.hooks.Now()
	r := &e.tx[s]
	if r.txIdx == p.ringStart {
		r.txIdx = r.advance(p.ringStart, p.length)
	}
	p.phase = txPumpIdle
}
