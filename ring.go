// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

// txRing is a fixed-capacity byte ring holding a service's pending outbound
// frames. Content is a concatenation of complete raw wire frames, each starting
// with the start byte and carrying its own length byte at offset 2, so records
// need no separate index structure.
//
// txIdx is the read cursor, bufIdx the write cursor; the ring is empty when
// they are equal. One slot stays unused to disambiguate empty from full.
// Indices are advanced by the packer/pump only after a record has been fully
// written or consumed, which is what keeps frames untorn (and is the discipline
// an interrupt-producer split would rely on).
type txRing struct {
	buf    []byte
	txIdx  int
	bufIdx int
}

func (r *txRing) size() int { return len(r.buf) }

func (r *txRing) empty() bool { return r.txIdx == r.bufIdx }

// used is the number of occupied bytes in (txIdx, bufIdx].
func (r *txRing) used() int {
	return (r.bufIdx - r.txIdx + r.size()) % r.size()
}

// free is the number of bytes that may be written without colliding with the
// read cursor, keeping the one disambiguation slot unused.
func (r *txRing) free() int {
	return r.size() - 1 - r.used()
}

// byteAt reads the ring byte at absolute index i, modulo capacity.
func (r *txRing) byteAt(i int) byte {
	return r.buf[i%r.size()]
}

// copyIn writes src into the ring starting at absolute index at, wrapping as
// needed. Cursors are not touched; the caller advances bufIdx once the whole
// record set is in place.
func (r *txRing) copyIn(at int, src []byte) {
	at %= r.size()
	n := copy(r.buf[at:], src)
	if n < len(src) {
		copy(r.buf, src[n:])
	}
}

// copyOut reads len(dst) bytes starting at absolute index from, wrapping as
// needed. Cursors are not touched.
func (r *txRing) copyOut(dst []byte, from int) {
	from %= r.size()
	n := copy(dst, r.buf[from:])
	if n < len(dst) {
		copy(dst[n:], r.buf)
	}
}

// advance moves an index forward by n, modulo capacity.
func (r *txRing) advance(idx, n int) int {
	return (idx + n) % r.size()
}
