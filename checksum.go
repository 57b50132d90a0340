// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prlsc

// Checksum8 is the default checksum: the two's complement of the 8-bit sum of p.
//
// Summing a checksummed run together with its checksum therefore yields zero,
// which is the property interop vectors are built on. Conforming peers may swap
// in any pure uint8 function via Hooks.Checksum as long as both ends agree.
func Checksum8(p []byte) uint8 {
	var sum uint8
	for _, b := range p {
		sum += b
	}
	return ^sum + 1
}
