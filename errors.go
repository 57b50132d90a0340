// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

import (
	"errors"

	"code.hybscloud.com/iox"
)

var (
	// ErrInvalidArgument reports an invalid configuration, service table or nil reader/writer.
	ErrInvalidArgument = errors.New("prlsc: invalid argument")

	// ErrTooLong reports a datagram exceeding the configured datagram or frame length limit.
	ErrTooLong = errors.New("prlsc: datagram too long")

	// ErrBufferFull reports that the service's transmit ring has no room for the
	// datagram's frames. The failed enqueue left no partial frames behind; retry
	// after draining the ring.
	ErrBufferFull = errors.New("prlsc: transmit buffer full")
)

// These are provided as package-level aliases so callers can reference the
// semantic control-flow errors without importing iox directly.
var (
	// ErrWouldBlock means “no further progress without waiting”.
	//
	// The Link layer returns it when the underlying transport is not ready, or
	// when every queued service is still inside its rate-limit window. Any
	// returned byte count (n) still represents real progress.
	ErrWouldBlock = iox.ErrWouldBlock

	// ErrMore means “this completion is usable and more completions will follow”.
	//
	// It is not io.EOF and not “try later”; process the returned result and call
	// again for the next chunk.
	ErrMore = iox.ErrMore
)

// ErrorCode is the engine's sticky error field (see Engine.LastError).
//
// The byte-at-a-time hot paths (ReceiveByte, TxByte) never return errors;
// protocol-level failures are latched here instead and stay latched until the
// host calls ClearError.
type ErrorCode uint8

const (
	ErrorNone ErrorCode = iota

	// Frame layer: the in-progress frame is dropped, reception re-syncs on the
	// next start byte. Partial datagrams of unaffected services stay intact.
	ErrorRxFrameBadEsc
	ErrorRxFrameServiceBounds
	ErrorRxFrameTooLong
	ErrorRxFrameBadChecksum

	// Datagram layer: the current datagram is dropped for the affected service;
	// the service discards frames until the next terminator re-syncs it.
	ErrorDatagramBadChecksum
	ErrorDatagramTooLong

	// Transmit layer: nothing was enqueued.
	ErrorDatagramServiceBounds
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorNone:
		return "none"
	case ErrorRxFrameBadEsc:
		return "rx-frame: bad escape sequence"
	case ErrorRxFrameServiceBounds:
		return "rx-frame: service index out of bounds"
	case ErrorRxFrameTooLong:
		return "rx-frame: frame too long"
	case ErrorRxFrameBadChecksum:
		return "rx-frame: bad checksum"
	case ErrorDatagramBadChecksum:
		return "datagram: bad checksum"
	case ErrorDatagramTooLong:
		return "datagram: too long"
	case ErrorDatagramServiceBounds:
		return "datagram: service index out of bounds"
	default:
		return "unknown"
	}
}
