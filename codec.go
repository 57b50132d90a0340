// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

// Byte-stuffing rules. The first byte of a frame is the raw start byte; every
// byte after it that collides with a sentinel is replaced by a two-byte escape
// sequence. A start byte observed mid-frame is therefore always a real frame
// boundary.

// escTail reports whether b must be escaped, and with which second byte.
func (o *Options) escTail(b byte) (tail byte, ok bool) {
	switch b {
	case o.StartFrame:
		return o.EscStart, true
	case o.Esc:
		return o.EscEsc, true
	}
	return 0, false
}

// unescTail decodes the byte following an escape byte. Any tail other than
// EscStart or EscEsc is a framing error.
func (o *Options) unescTail(tail byte) (b byte, ok bool) {
	switch tail {
	case o.EscStart:
		return o.StartFrame, true
	case o.EscEsc:
		return o.Esc, true
	}
	return 0, false
}

// appendEscaped appends the wire encoding of one raw frame to dst: the leading
// start byte as-is, every later byte stuffed. Used by the Link layer to stage a
// whole frame; the byte pump applies the same rules one byte at a time.
func appendEscaped(dst []byte, o *Options, raw []byte) []byte {
	if len(raw) == 0 {
		return dst
	}
	dst = append(dst, raw[0])
	for _, b := range raw[1:] {
		if tail, ok := o.escTail(b); ok {
			dst = append(dst, o.Esc, tail)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}
