// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package svc packs and splits wire service codes.
//
// A service code is one byte: a 3-bit service index in the high bits and a
// 5-bit sub-service index in the low bits.
package svc

// IndexMax is the number of addressable services (3-bit index).
const IndexMax = 8

// Code packs (service, subService) into a wire service code.
func Code(service, subService uint8) byte {
	return (service&0x07)<<5 | subService&0x1F
}

// Split is the inverse of Code.
func Split(code byte) (service, subService uint8) {
	return code >> 5 & 0x07, code & 0x1F
}
