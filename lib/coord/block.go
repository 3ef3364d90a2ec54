// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package coord

import (
	"bytes"
	"encoding/binary"

	"github.com/solo-foundation/solo/lib/crc16"
)

// Block layout, fixed little-endian so every process agrees
// regardless of host convention:
//
//	offset  size  field
//	     0     1  is_primary (0 or 1)
//	     1     3  reserved, always zero
//	     4     4  secondary_count (u32)
//	     8     8  primary_pid (i64, -1 when none)
//	    16   128  primary_user (NUL-terminated)
//	   144     2  checksum (CRC-16/X-25 over bytes 0..143)
const (
	// BlockSize is the exact size of the coordination block and
	// therefore of the shared segment.
	BlockSize = 146

	// primaryUserSize bounds the stored username, including its
	// terminating NUL.
	primaryUserSize = 128

	checksumOffset = BlockSize - 2

	secondaryOffset = 4
	pidOffset       = 8
	userOffset      = 16
)

// Block is the decoded coordination record.
type Block struct {
	// IsPrimary is true iff a primary is currently registered.
	IsPrimary bool

	// SecondaryCount is the last-assigned secondary instance number.
	// It only ever increases during a primary's lifetime.
	SecondaryCount uint32

	// PrimaryPID is the OS process id of the current primary, -1
	// when none is registered.
	PrimaryPID int64

	// PrimaryUser is the username of the current primary, empty when
	// none is registered. Stored truncated to 127 bytes.
	PrimaryUser string
}

// EmptyBlock returns the record a freshly initialized segment holds:
// no primary, no secondaries assigned.
func EmptyBlock() Block {
	return Block{PrimaryPID: -1}
}

// DecodeBlock parses the record from segment bytes and reports
// whether the stored checksum matches a recomputation over the
// preceding bytes. A false result means another process is mid-update
// (transient) or died mid-write (permanent); the caller decides which
// by how long the state persists.
func DecodeBlock(data []byte) (Block, bool) {
	user := data[userOffset : userOffset+primaryUserSize]
	if index := bytes.IndexByte(user, 0); index >= 0 {
		user = user[:index]
	}

	block := Block{
		IsPrimary:      data[0] != 0,
		SecondaryCount: binary.LittleEndian.Uint32(data[secondaryOffset:]),
		PrimaryPID:     int64(binary.LittleEndian.Uint64(data[pidOffset:])),
		PrimaryUser:    string(user),
	}

	stored := binary.LittleEndian.Uint16(data[checksumOffset:])
	return block, stored == crc16.Checksum(data[:checksumOffset])
}

// EncodeBlock writes the record into segment bytes and stores a
// freshly computed checksum, making the block consistent for the next
// reader. Must be called with the segment lock held.
func EncodeBlock(data []byte, block Block) {
	clear(data[:BlockSize])

	if block.IsPrimary {
		data[0] = 1
	}
	binary.LittleEndian.PutUint32(data[secondaryOffset:], block.SecondaryCount)
	binary.LittleEndian.PutUint64(data[pidOffset:], uint64(block.PrimaryPID))

	user := block.PrimaryUser
	if len(user) > primaryUserSize-1 {
		user = user[:primaryUserSize-1]
	}
	copy(data[userOffset:], user)

	binary.LittleEndian.PutUint16(data[checksumOffset:], crc16.Checksum(data[:checksumOffset]))
}
