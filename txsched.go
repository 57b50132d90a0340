// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

// PrepareServiceTransmission selects the next service allowed to transmit and
// latches its oldest queued frame into the byte pump.
//
// It returns (service, 0, true) when a frame was latched and the pump is armed;
// the host then drives TxByte until it reports idle. The lowest-indexed
// eligible service wins — selection is deterministic, and callers needing
// fairness across services rotate their service indices themselves; enqueue
// order across services does not affect selection.
//
// When nothing can be sent it returns ok == false. If at least one service has
// queued data but is still inside its rate-limit window, service names the
// earliest such service and liftedIn is the minimum wait until some service
// becomes eligible; both are zero when no data is queued at all. A call while
// a frame is still being pumped also returns false without touching the pump.
func (e *Engine) PrepareServiceTransmission() (service uint8, liftedIn Time, ok bool) {
	if e.pump.phase != txPumpIdle {
		return 0, 0, false
	}

	now := e.hooks.Now()
	anyData := false
	waiting := false
	var minWait Time
	var waitService uint8

	for s := range e.services {
		r := &e.tx[s]
		if r.empty() {
			continue
		}
		anyData = true
		if limit := e.services[s].RateLimit; limit != 0 {
			// Unsigned tick arithmetic: wrap-tolerant by construction.
			elapsed := now - e.lastTransmitted[s]
			if elapsed < limit {
				if w := limit - elapsed; !waiting || w < minWait {
					waiting = true
					minWait = w
					waitService = uint8(s)
				}
				continue
			}
		}
		e.latchFrame(uint8(s))
		return uint8(s), 0, true
	}

	if !anyData {
		e.newTxData = false
		return 0, 0, false
	}
	if waiting {
		return waitService, minWait, false
	}
	return 0, 0, false
}

// latchFrame copies the frame at the head of service s's ring into the pump's
// transmit buffer, handling ring wrap-around, and arms the pump. The ring's
// read cursor is not advanced here; the pump advances it when the last byte of
// the frame has gone out.
func (e *Engine) latchFrame(s uint8) {
	r := &e.tx[s]
	rawLen := int(r.byteAt(r.txIdx+2)) + frameOverhead
	r.copyOut(e.pump.buf[:rawLen], r.txIdx)
	e.pump.length = rawLen
	e.pump.serviceIndex = s
	e.pump.idx = 0
	e.pump.ringStart = r.txIdx
	e.pump.phase = txPumpStart
}
