// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package crc16

// polynomial is the reflected form of the CCITT polynomial 0x1021.
const polynomial = 0x8408

// table holds the byte-at-a-time lookup table, built once at init.
var table [256]uint16

func init() {
	for i := range table {
		crc := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ polynomial
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
}

// Checksum returns the CRC-16/X-25 checksum of data.
func Checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = (crc >> 8) ^ table[byte(crc)^b]
	}
	return ^crc
}
