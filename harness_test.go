// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

import (
	"bytes"
	"testing"
)

// harness wires an Engine to capturing hooks and a manual clock.
type harness struct {
	e     *Engine
	clock Time
	sent  []byte
	got   []Datagram
}

// twoServices is the canonical test bus: a rate-limited stream service and an
// unlimited diagnostics service.
func twoServices() []ServiceConfig {
	return []ServiceConfig{
		{Stream: true, RateLimit: 100},
		{Stream: false},
	}
}

func newHarness(t *testing.T, services []ServiceConfig, opts ...Option) *harness {
	t.Helper()
	h := &harness{}
	e, err := NewEngine(Hooks{
		Now:      func() Time { return h.clock },
		SendByte: func(b byte) { h.sent = append(h.sent, b) },
		OnDatagram: func(d Datagram) ResponseCode {
			cp := d
			cp.Data = append([]byte(nil), d.Data...)
			h.got = append(h.got, cp)
			return ResponsePositive
		},
	}, services, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	h.e = e
	return h
}

func (h *harness) feed(stream []byte) {
	for _, b := range stream {
		h.e.ReceiveByte(b)
	}
}

func (h *harness) drainPump(t *testing.T) {
	t.Helper()
	for max := 4096; h.e.TxByte(); max-- {
		if max <= 0 {
			t.Fatal("TxByte never reports idle")
		}
	}
}

// wireFrame encodes one frame for the harness's sentinel configuration. A
// non-nil checksum overrides the computed frame checksum; length defaults to
// len(data) when negative.
func (h *harness) wireFrame(code byte, length int, data []byte, checksum *byte) []byte {
	if length < 0 {
		length = len(data)
	}
	raw := []byte{h.e.opt.StartFrame, code, byte(length)}
	raw = append(raw, data...)
	ck := h.e.hooks.Checksum(raw[1:])
	if checksum != nil {
		ck = *checksum
	}
	raw = append(raw, ck)
	return appendEscaped(nil, &h.e.opt, raw)
}

// ringFrames decodes count raw frames from service s's transmit ring without
// moving its cursors.
func (h *harness) ringFrames(t *testing.T, s, count int) []Frame {
	t.Helper()
	r := &h.e.tx[s]
	i := r.txIdx
	frames := make([]Frame, 0, count)
	for k := 0; k < count; k++ {
		if got := r.byteAt(i); got != h.e.opt.StartFrame {
			t.Fatalf("frame %d: ring byte %#02x is not a start byte", k, got)
		}
		code := r.byteAt(i + 1)
		n := int(r.byteAt(i + 2))
		data := make([]byte, n)
		r.copyOut(data, i+3)
		frames = append(frames, Frame{
			ServiceIndex:    code >> 5 & 0x07,
			SubServiceIndex: code & 0x1F,
			Data:            data,
			Checksum:        r.byteAt(i + 3 + n),
		})
		i += n + frameOverhead
	}
	if i-r.txIdx > r.size() {
		t.Fatalf("decoded frames overrun the ring: %d > %d", i-r.txIdx, r.size())
	}
	return frames
}

func bytesEqual(t *testing.T, got, want []byte, what string) {
	t.Helper()
	if !bytes.Equal(got, want) {
		t.Fatalf("%s: got % 02x want % 02x", what, got, want)
	}
}
