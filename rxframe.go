// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

import "github.com/fragmuffin/prlsc/internal/svc"

type rxFramePhase uint8

const (
	rxFrameWaitStart rxFramePhase = iota
	rxFrameCollecting
	rxFrameEscaped
)

// rxFrameState accumulates one decoded frame: service code at offset 0, length
// at offset 1, then payload, then the frame checksum.
type rxFrameState struct {
	phase          rxFramePhase
	buf            []byte
	curIdx         int
	framesReceived uint8
}

// ReceiveByte consumes one byte from the wire. Bytes outside a frame are
// ignored; a start byte always begins a fresh frame, aborting any frame in
// progress. Completed frames are validated and handed to the datagram layer,
// invoking the host's OnDatagram callback from within this call.
func (e *Engine) ReceiveByte(b byte) {
	rf := &e.rxFrame
	switch rf.phase {
	case rxFrameWaitStart:
		if b == e.opt.StartFrame {
			rf.curIdx = 0
			rf.phase = rxFrameCollecting
		}
	case rxFrameCollecting:
		switch b {
		case e.opt.StartFrame:
			// Unescaped start mid-frame: the previous frame was truncated.
			rf.curIdx = 0
		case e.opt.Esc:
			rf.phase = rxFrameEscaped
		default:
			e.rxFrameAppend(b)
		}
	case rxFrameEscaped:
		decoded, ok := e.opt.unescTail(b)
		if !ok {
			e.setError(ErrorRxFrameBadEsc)
			rf.phase = rxFrameWaitStart
			return
		}
		rf.phase = rxFrameCollecting
		e.rxFrameAppend(decoded)
	}
}

// rxFrameAppend buffers one decoded byte, enforcing the length bound as soon
// as the length byte is known (the frame buffer is sized FrameLengthMax+4, so
// an oversized length can never be allowed to run to completion) and
// finalizing the frame when the checksum byte lands.
func (e *Engine) rxFrameAppend(b byte) {
	rf := &e.rxFrame
	rf.buf[rf.curIdx] = b
	rf.curIdx++

	if rf.curIdx == 2 {
		if int(rf.buf[1]) > e.opt.FrameLengthMax {
			e.setError(ErrorRxFrameTooLong)
			rf.phase = rxFrameWaitStart
		}
		return
	}
	if rf.curIdx < 2 || rf.curIdx != 2+int(rf.buf[1])+1 {
		return
	}

	// Frame complete.
	rf.phase = rxFrameWaitStart
	n := int(rf.buf[1])
	service, subService := svc.Split(rf.buf[0])
	if int(service) >= len(e.services) {
		e.setError(ErrorRxFrameServiceBounds)
		return
	}
	checksum := rf.buf[2+n]
	if e.hooks.Checksum(rf.buf[:2+n]) != checksum {
		e.setError(ErrorRxFrameBadChecksum)
		return
	}
	rf.framesReceived++
	e.dispatchFrame(Frame{
		ServiceIndex:    service,
		SubServiceIndex: subService,
		Data:            rf.buf[2 : 2+n],
		Checksum:        checksum,
	})
}
