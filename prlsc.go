// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package prlsc implements a byte-oriented serial framing and datagram protocol
// engine for sharing one full-duplex byte stream among up to eight logical
// services.
//
// Semantics and design:
//   - Cooperative, byte-at-a-time: no operation blocks or loops over the
//     transport. The host owns pacing — it feeds ReceiveByte as bytes arrive
//     and calls TxByte until it reports idle. Long sends are driven one byte
//     per call, which keeps the engine usable under interrupt-driven UART FIFOs.
//   - Zero allocation after construction: every buffer is sized and allocated
//     in NewEngine; hot paths never allocate and never raise errors, latching
//     protocol failures in a sticky ErrorCode instead.
//   - Host hooks: time, checksum, byte output and datagram delivery are plain
//     host-supplied functions (Hooks), so the engine carries no hidden state.
//
// Wire format: a frame is the start byte followed by the escape-encoded
// sequence of
//
//	serviceCode, length, data[length], frameChecksum
//
// where serviceCode packs a 3-bit service index and 5-bit sub-service index,
// and frameChecksum covers serviceCode, length and data. Bytes equal to the
// start or escape sentinel are stuffed into two-byte escape sequences.
// Bytes outside a frame are ignored.
//
// A datagram on a stream service is exactly one frame's payload. On a
// diagnostics service it is the concatenation of frame payloads up to a
// terminator — any frame shorter than the frame length limit, with an empty
// frame closing payloads that are exact multiples of the limit — and its last
// byte is a datagram checksum over the bytes before it.
package prlsc

import "github.com/fragmuffin/prlsc/internal/svc"

// Frame is one unit of on-the-wire transmission.
type Frame struct {
	ServiceIndex    uint8
	SubServiceIndex uint8
	Data            []byte
	Checksum        uint8
}

// Datagram is one application-level message. Checksum is zero for stream
// services (no datagram-level checksum exists on the wire).
type Datagram struct {
	ServiceIndex    uint8
	SubServiceIndex uint8
	Data            []byte
	Checksum        uint8
}

// Engine glues the receive and transmit state machines under one configuration.
//
// An Engine must be used from a single logical context at a time; distinct
// Engines are independent. All state lives in the struct — nothing global.
type Engine struct {
	opt      Options
	services []ServiceConfig
	hooks    Hooks

	errorCode ErrorCode

	// receive path
	rxFrame    rxFrameState
	rxDatagram []rxDatagramState

	// transmit path
	tx              []txRing
	pump            txPumpState
	lastTransmitted []Time
	newTxData       bool

	// scratch for the packer: datagram payload (+checksum) and one raw frame.
	packPayload []byte
	packFrame   []byte
}

// NewEngine validates the configuration and allocates all buffers. The hot
// paths perform no further allocation.
//
// SendByte and OnDatagram are required; Now defaults to a wall-clock
// millisecond counter and Checksum to Checksum8.
func NewEngine(hooks Hooks, services []ServiceConfig, opts ...Option) (*Engine, error) {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if len(services) < 1 || len(services) > svc.IndexMax {
		return nil, ErrInvalidArgument
	}
	if hooks.SendByte == nil || hooks.OnDatagram == nil {
		return nil, ErrInvalidArgument
	}
	if hooks.Now == nil {
		hooks.Now = o.Clock
	}
	if hooks.Now == nil {
		hooks.Now = defaultNow
	}
	if hooks.Checksum == nil {
		hooks.Checksum = Checksum8
	}

	e := &Engine{
		opt:             o,
		services:        append([]ServiceConfig(nil), services...),
		hooks:           hooks,
		rxDatagram:      make([]rxDatagramState, len(services)),
		tx:              make([]txRing, len(services)),
		lastTransmitted: make([]Time, len(services)),
		packPayload:     make([]byte, 0, o.DatagramLengthMax+1),
		packFrame:       make([]byte, 0, o.FrameLengthMax+frameOverhead),
	}
	e.rxFrame.buf = make([]byte, o.FrameLengthMax+frameOverhead)
	e.pump.buf = make([]byte, o.FrameLengthMax+frameOverhead)
	for i := range e.services {
		size := e.services[i].BufferSize
		if size == 0 {
			size = (o.FrameLengthMax + frameOverhead) * o.TxBufferFrames
		}
		// A ring must hold at least one maximum frame plus the empty slot.
		if size < o.FrameLengthMax+frameOverhead+1 {
			return nil, ErrInvalidArgument
		}
		e.tx[i].buf = make([]byte, size)
		e.rxDatagram[i].buf = make([]byte, o.DatagramLengthMax)
	}
	return e, nil
}

// LastError returns the sticky error code. It is latched by the first protocol
// failure and stays set until ClearError.
func (e *Engine) LastError() ErrorCode { return e.errorCode }

// ClearError resets the sticky error code.
func (e *Engine) ClearError() { e.errorCode = ErrorNone }

// setError latches c unless an earlier code is already pending.
func (e *Engine) setError(c ErrorCode) {
	if e.errorCode == ErrorNone {
		e.errorCode = c
	}
}

// NewTxData reports whether an enqueue has happened since the scheduler last
// observed all transmit rings empty. Hosts driving transmission from an event
// loop can use it as the wake-up hint.
func (e *Engine) NewTxData() bool { return e.newTxData }

// FramesReceived returns the running count of valid frames accepted by the
// receive path. It wraps at 256.
func (e *Engine) FramesReceived() uint8 { return e.rxFrame.framesReceived }

// ServiceCount returns the number of configured services.
func (e *Engine) ServiceCount() int { return len(e.services) }
