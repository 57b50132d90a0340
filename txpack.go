// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

import "github.com/fragmuffin/prlsc/internal/svc"

// TransmitDatagram splits d into frames and enqueues their raw wire bytes into
// the service's transmit ring. It returns the number of frames enqueued, or 0
// on failure.
//
// The enqueue is atomic: either every frame of the datagram fits, or nothing is
// written. A failure for lack of ring space leaves the error code untouched —
// the caller may simply retry after draining; bounds failures latch an error
// code. Escaping is applied later by the byte pump, so ring accounting works on
// raw frame sizes.
func (e *Engine) TransmitDatagram(d Datagram) int {
	s := int(d.ServiceIndex)
	if s >= len(e.services) {
		e.setError(ErrorDatagramServiceBounds)
		return 0
	}
	if len(d.Data) > e.opt.DatagramLengthMax {
		e.setError(ErrorDatagramTooLong)
		return 0
	}
	cfg := &e.services[s]
	if cfg.Stream && len(d.Data) > e.opt.FrameLengthMax {
		// A stream datagram must fit a single frame.
		e.setError(ErrorDatagramTooLong)
		return 0
	}

	// Wire payload: diagnostics datagrams carry their checksum as the final
	// payload byte; stream datagrams are sent as-is.
	p := append(e.packPayload[:0], d.Data...)
	if !cfg.Stream {
		p = append(p, e.hooks.Checksum(d.Data))
	}

	maxLen := e.opt.FrameLengthMax
	frames := 1
	if !cfg.Stream {
		frames = (len(p) + maxLen - 1) / maxLen
		if len(p)%maxLen == 0 {
			// Exact multiple: an empty frame terminates the datagram.
			frames++
		}
	}
	total := len(p) + frames*frameOverhead

	r := &e.tx[s]
	flush := cfg.Stream && cfg.OnlyTxLatest && !r.empty()
	free := r.free()
	if flush {
		free = r.size() - 1
	}
	if total > free {
		return 0
	}
	if flush {
		// Only the newest datagram survives; skip everything still queued.
		r.txIdx = r.bufIdx
	}

	code := svc.Code(d.ServiceIndex, d.SubServiceIndex)
	at := r.bufIdx
	for i := 0; i < frames; i++ {
		chunk := p[min(i*maxLen, len(p)):min((i+1)*maxLen, len(p))]
		fb := append(e.packFrame[:0], e.opt.StartFrame, code, byte(len(chunk)))
		fb = append(fb, chunk...)
		fb = append(fb, e.hooks.Checksum(fb[1:]))
		r.copyIn(at, fb)
		at = r.advance(at, len(fb))
	}
	r.bufIdx = at
	e.newTxData = true
	return frames
}
