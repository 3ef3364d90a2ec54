// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package crc16

import "testing"

func TestChecksumKnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  uint16
	}{
		// Standard CRC-16/X-25 check value.
		{"check string", "123456789", 0x906E},
		{"empty", "", 0x0000},
		{"single byte", "a", 0x82F7},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Checksum([]byte(test.input))
			if got != test.want {
				t.Errorf("Checksum(%q) = %#04x, want %#04x", test.input, got, test.want)
			}
		})
	}
}

func TestChecksumDetectsSingleBitFlips(t *testing.T) {
	data := []byte("coordination block contents")
	original := Checksum(data)

	for byteIndex := range data {
		for bit := 0; bit < 8; bit++ {
			mutated := make([]byte, len(data))
			copy(mutated, data)
			mutated[byteIndex] ^= 1 << bit

			if Checksum(mutated) == original {
				t.Errorf("bit flip at byte %d bit %d not detected", byteIndex, bit)
			}
		}
	}
}
