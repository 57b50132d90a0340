// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

import (
	"bytes"
	"testing"
)

func TestReceiveByte_SingleFrame(t *testing.T) {
	h := newHarness(t, twoServices())
	h.feed(h.wireFrame(0, -1, []byte{1, 2, 3}, nil))
	if h.e.FramesReceived() != 1 {
		t.Fatalf("frames received = %d, want 1", h.e.FramesReceived())
	}
	if h.e.LastError() != ErrorNone {
		t.Fatalf("error = %v", h.e.LastError())
	}
	if len(h.got) != 1 {
		t.Fatalf("datagrams = %d, want 1", len(h.got))
	}
	bytesEqual(t, h.got[0].Data, []byte{1, 2, 3}, "payload")
}

func TestReceiveByte_MultipleFrames(t *testing.T) {
	h := newHarness(t, twoServices())
	h.feed(h.wireFrame(0, -1, []byte{1, 2, 3}, nil))
	h.feed(h.wireFrame(0, -1, []byte{4, 5}, nil))
	if h.e.FramesReceived() != 2 {
		t.Fatalf("frames received = %d, want 2", h.e.FramesReceived())
	}
}

func TestReceiveByte_LongFrame(t *testing.T) {
	h := newHarness(t, twoServices())
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	h.feed(h.wireFrame(0, -1, data, nil))
	if h.e.FramesReceived() != 1 {
		t.Fatalf("frames received = %d, want 1", h.e.FramesReceived())
	}
	bytesEqual(t, h.got[0].Data, data, "payload")
}

func TestReceiveByte_JunkBeforeStart(t *testing.T) {
	h := newHarness(t, twoServices())
	h.feed(append([]byte{1, 2, 3, 4}, h.wireFrame(0, -1, []byte{1, 2, 3}, nil)...))
	if h.e.FramesReceived() != 1 {
		t.Fatalf("frames received = %d, want 1", h.e.FramesReceived())
	}
}

func TestReceiveByte_EscapePositions(t *testing.T) {
	// Each stream embeds a sentinel byte in a different frame position. The
	// checksum-position vectors are chosen so the true frame checksum equals
	// the sentinel (sum 0x40 -> 0xC0, sum 0x25 -> 0xDB).
	start, esc := defaultOptions.StartFrame, defaultOptions.Esc
	cases := []struct {
		name   string
		code   byte
		length int
		data   []byte
	}{
		{"start in checksum", 1, -1, []byte{62}},
		{"start at data end", 1, -1, []byte{1, 2, start}},
		{"start at data start", 1, -1, []byte{start, 2, 3}},
		{"start as length", 1, int(start), bytes.Repeat([]byte{1}, int(start))},
		{"start repeated", 1, -1, []byte{start, start, start, start}},
		{"esc in checksum", 1, -1, []byte{35}},
		{"esc at data end", 1, -1, []byte{1, 2, esc}},
		{"esc at data start", 1, -1, []byte{esc, 2, 3}},
		{"esc as length", 1, int(esc), bytes.Repeat([]byte{1}, int(esc))},
		{"esc repeated", 1, -1, []byte{esc, esc, esc, esc}},
	}
	for _, c := range cases {
		h := newHarness(t, twoServices())
		h.feed(h.wireFrame(c.code, c.length, c.data, nil))
		if h.e.FramesReceived() != 1 {
			t.Fatalf("%s: frames received = %d, want 1", c.name, h.e.FramesReceived())
		}
		if h.e.LastError() != ErrorNone {
			t.Fatalf("%s: error = %v", c.name, h.e.LastError())
		}
	}
}

func TestReceiveByte_BadChecksum(t *testing.T) {
	h := newHarness(t, twoServices())
	bad := byte(0xFF)
	h.feed(h.wireFrame(1<<5, -1, []byte{0x5A}, &bad))
	if h.e.FramesReceived() != 0 {
		t.Fatalf("frames received = %d, want 0", h.e.FramesReceived())
	}
	if h.e.LastError() != ErrorRxFrameBadChecksum {
		t.Fatalf("error = %v, want bad checksum", h.e.LastError())
	}
}

func TestReceiveByte_BadEscape(t *testing.T) {
	h := newHarness(t, twoServices())
	o := &h.e.opt
	h.feed([]byte{o.StartFrame, 1, 1, o.Esc, 0xFF, 0x24})
	if h.e.FramesReceived() != 0 {
		t.Fatalf("frames received = %d, want 0", h.e.FramesReceived())
	}
	if h.e.LastError() != ErrorRxFrameBadEsc {
		t.Fatalf("error = %v, want bad escape", h.e.LastError())
	}
}

func TestReceiveByte_ServiceOutOfBounds(t *testing.T) {
	h := newHarness(t, twoServices())
	// Service index 2 on a two-service bus.
	h.feed(h.wireFrame(2<<5, -1, []byte{1, 2, 3}, nil))
	if h.e.FramesReceived() != 0 {
		t.Fatalf("frames received = %d, want 0", h.e.FramesReceived())
	}
	if h.e.LastError() != ErrorRxFrameServiceBounds {
		t.Fatalf("error = %v, want service bounds", h.e.LastError())
	}
}

func TestReceiveByte_LengthBounds(t *testing.T) {
	h := newHarness(t, twoServices(), WithFrameLengthMax(3))
	h.feed(h.wireFrame(0, 3, []byte{1, 2, 3}, nil))
	if h.e.FramesReceived() != 1 {
		t.Fatalf("length == max: frames received = %d, want 1", h.e.FramesReceived())
	}

	h = newHarness(t, twoServices(), WithFrameLengthMax(3))
	h.feed(h.wireFrame(0, 4, []byte{1, 2, 3, 4}, nil))
	if h.e.FramesReceived() != 0 {
		t.Fatalf("length > max: frames received = %d, want 0", h.e.FramesReceived())
	}
	if h.e.LastError() != ErrorRxFrameTooLong {
		t.Fatalf("error = %v, want too long", h.e.LastError())
	}
}

func TestReceiveByte_ResyncAfterTruncatedFrame(t *testing.T) {
	h := newHarness(t, twoServices())
	// A start byte mid-frame aborts the old frame and begins a new one.
	partial := h.wireFrame(0, -1, []byte{9, 9, 9}, nil)
	h.feed(partial[:4])
	h.feed(h.wireFrame(0, -1, []byte{1, 2, 3}, nil))
	if h.e.FramesReceived() != 1 {
		t.Fatalf("frames received = %d, want 1", h.e.FramesReceived())
	}
	bytesEqual(t, h.got[0].Data, []byte{1, 2, 3}, "payload")
}
