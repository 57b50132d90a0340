// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

type rxDatagramPhase uint8

const (
	rxDatagramPopulating rxDatagramPhase = iota
	rxDatagramError
)

// rxDatagramState reassembles one diagnostics datagram per service.
type rxDatagramState struct {
	phase  rxDatagramPhase
	buf    []byte
	curIdx int
}

// ReceiveFrame feeds one frame directly into the datagram layer, bypassing the
// byte decoder. It is the test and bridge surface; normal reception reaches it
// through ReceiveByte.
func (e *Engine) ReceiveFrame(f Frame) {
	if int(f.ServiceIndex) >= len(e.services) {
		e.setError(ErrorRxFrameServiceBounds)
		return
	}
	e.dispatchFrame(f)
}

// dispatchFrame routes a validated frame to its service's datagram machine.
func (e *Engine) dispatchFrame(f Frame) {
	if e.services[f.ServiceIndex].Stream {
		// Stream: one frame is one datagram, no datagram-level checksum.
		e.hooks.OnDatagram(Datagram{
			ServiceIndex:    f.ServiceIndex,
			SubServiceIndex: f.SubServiceIndex,
			Data:            f.Data,
			Checksum:        0,
		})
		return
	}
	e.diagFrame(f)
}

// diagFrame runs the per-service two-phase reassembly machine. A frame shorter
// than FrameLengthMax terminates the datagram in progress (an empty frame is
// the explicit terminator after an exact-multiple payload).
func (e *Engine) diagFrame(f Frame) {
	ds := &e.rxDatagram[f.ServiceIndex]
	terminator := len(f.Data) < e.opt.FrameLengthMax

	if ds.phase == rxDatagramError {
		// Discard until the over-long datagram finishes arriving.
		if terminator {
			ds.curIdx = 0
			ds.phase = rxDatagramPopulating
		}
		return
	}

	if ds.curIdx+len(f.Data) > len(ds.buf) {
		e.setError(ErrorDatagramTooLong)
		if terminator {
			// The offending frame is also the datagram's last; re-sync now.
			ds.curIdx = 0
		} else {
			ds.phase = rxDatagramError
		}
		return
	}

	copy(ds.buf[ds.curIdx:], f.Data)
	ds.curIdx += len(f.Data)
	if !terminator {
		return
	}

	// Datagram complete: last accumulated byte is the datagram checksum.
	n := ds.curIdx
	ds.curIdx = 0
	if n == 0 {
		// A lone empty frame carries nothing to verify or deliver.
		return
	}
	payload := ds.buf[:n-1]
	checksum := ds.buf[n-1]
	if e.hooks.Checksum(payload) != checksum {
		e.setError(ErrorDatagramBadChecksum)
		return
	}
	e.hooks.OnDatagram(Datagram{
		ServiceIndex:    f.ServiceIndex,
		SubServiceIndex: f.SubServiceIndex,
		Data:            payload,
		Checksum:        checksum,
	})
}
