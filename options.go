// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

import "time"

// Time is the engine's tick type. It is an unsigned counter that wraps; all
// rate-limit arithmetic is performed modulo its range, so a host clock may roll
// over freely as long as no rate-limit window exceeds half the type's range.
//
// The unit is host-defined: whatever Hooks.Now counts in (milliseconds for the
// default clock).
type Time uint16

// frameOverhead is the number of non-payload bytes in a raw wire frame:
// start byte, service code, length and frame checksum.
const frameOverhead = 4

// Options configures framing behavior.
type Options struct {
	// Framing sentinel bytes. All four must be distinct.
	StartFrame byte
	Esc        byte
	EscStart   byte
	EscEsc     byte

	// FrameLengthMax caps a single frame's payload (1..255).
	FrameLengthMax int

	// DatagramLengthMax caps a datagram's payload.
	DatagramLengthMax int

	// TxBufferFrames sizes a service's transmit ring, in whole frames, when the
	// service does not set an explicit BufferSize.
	TxBufferFrames int

	// RetryDelay controls how the Link layer handles iox.ErrWouldBlock from the
	// underlying transport:
	//   - negative: nonblock, return ErrWouldBlock immediately
	//   - zero: yield (runtime.Gosched) and retry
	//   - positive: sleep for the duration and retry
	RetryDelay time.Duration

	// Clock overrides the tick source when the host supplies no Hooks.Now
	// (Links build their hooks internally, so this is their way in). Nil
	// selects the wall-clock millisecond counter.
	Clock func() Time
}

// Default framing bytes are the SLIP sentinels; they survive on noisy serial
// links and keep interop vectors byte-identical across implementations.
var defaultOptions = Options{
	StartFrame:        0xC0,
	Esc:               0xDB,
	EscStart:          0xDC,
	EscEsc:            0xDD,
	FrameLengthMax:    0xFF,
	DatagramLengthMax: 0x1FF,
	TxBufferFrames:    4,
	RetryDelay:        -1, // default: nonblock
}

type Option func(*Options)

// WithFrameBytes sets all four framing sentinel bytes.
func WithFrameBytes(startFrame, esc, escStart, escEsc byte) Option {
	return func(o *Options) {
		o.StartFrame = startFrame
		o.Esc = esc
		o.EscStart = escStart
		o.EscEsc = escEsc
	}
}

// WithFrameLengthMax caps the per-frame payload size (1..255).
func WithFrameLengthMax(n int) Option {
	return func(o *Options) { o.FrameLengthMax = n }
}

// WithDatagramLengthMax caps the per-datagram payload size.
func WithDatagramLengthMax(n int) Option {
	return func(o *Options) { o.DatagramLengthMax = n }
}

// WithTxBufferFrames sets the default transmit ring capacity in whole frames
// for services that do not set an explicit BufferSize.
func WithTxBufferFrames(n int) Option {
	return func(o *Options) { o.TxBufferFrames = n }
}

// WithRetryDelay sets the retry/wait policy used when the underlying transport
// returns iox.ErrWouldBlock.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithBlock enables cooperative blocking (yield-and-retry) on iox.ErrWouldBlock.
func WithBlock() Option {
	return func(o *Options) { o.RetryDelay = 0 }
}

// WithNonblock forces non-blocking behavior (return iox.ErrWouldBlock immediately).
func WithNonblock() Option {
	return func(o *Options) { o.RetryDelay = -1 }
}

// WithClock sets the tick source used for rate limiting when no explicit
// Hooks.Now is supplied.
func WithClock(fn func() Time) Option {
	return func(o *Options) { o.Clock = fn }
}

func (o *Options) validate() error {
	set := [4]byte{o.StartFrame, o.Esc, o.EscStart, o.EscEsc}
	for i := 0; i < len(set); i++ {
		for j := i + 1; j < len(set); j++ {
			if set[i] == set[j] {
				return ErrInvalidArgument
			}
		}
	}
	if o.FrameLengthMax < 1 || o.FrameLengthMax > 0xFF {
		return ErrInvalidArgument
	}
	if o.DatagramLengthMax < 1 {
		return ErrInvalidArgument
	}
	if o.TxBufferFrames < 1 {
		return ErrInvalidArgument
	}
	return nil
}

// ServiceConfig describes one logical channel multiplexed over the byte stream.
type ServiceConfig struct {
	// Stream services map one datagram to exactly one frame and carry no
	// datagram-level checksum. Non-stream (diagnostics) services may span
	// multiple frames and end in a datagram checksum byte.
	Stream bool

	// RateLimit is the minimum number of ticks between successive completed
	// frame transmissions on this service. Zero means unlimited.
	RateLimit Time

	// OnlyTxLatest drops still-queued frames of a stream service whenever a new
	// datagram is enqueued; only the newest survives.
	OnlyTxLatest bool

	// BufferSize is the transmit ring capacity in bytes. Zero selects
	// (FrameLengthMax+4) * TxBufferFrames.
	BufferSize int
}

// ResponseCode is returned by the host's datagram callback. It is surfaced to
// the host only; nothing is reflected on the wire.
type ResponseCode uint8

const (
	ResponsePositive       ResponseCode = 0x00
	ResponseInvalidRequest ResponseCode = 0x01
	ResponseUnknownRequest ResponseCode = 0x02
)

// Hooks are the host-supplied routines the engine is parameterized over. They
// must be plain functions: no hook may call back into the same Engine.
type Hooks struct {
	// Now returns the current tick count. Wrap is tolerated. Nil selects a
	// wall-clock millisecond counter.
	Now func() Time

	// Checksum must be pure and deterministic. Nil selects Checksum8.
	Checksum func([]byte) uint8

	// SendByte emits one byte to the transport. Called at most once per TxByte.
	SendByte func(byte)

	// OnDatagram delivers one reassembled datagram. The datagram's Data aliases
	// an internal buffer that is reused for the next datagram; the callback must
	// copy it to retain it.
	OnDatagram func(Datagram) ResponseCode
}

func defaultNow() Time {
	return Time(time.Now().UnixMilli())
}
