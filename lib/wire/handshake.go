// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/solo-foundation/solo/lib/crc16"
)

// ConnectionType says why an instance is connecting to the primary.
type ConnectionType uint8

const (
	// ConnectionInvalid is the zero value; it never appears in a
	// well-formed handshake.
	ConnectionInvalid ConnectionType = iota

	// ConnectionNewInstance is sent by a launch that was refused a
	// role of its own and is handing off to the primary before
	// terminating.
	ConnectionNewInstance

	// ConnectionSecondaryInstance is sent by a launch that was
	// granted a secondary instance number, when secondary
	// notification is configured.
	ConnectionSecondaryInstance

	// ConnectionReconnect is sent when an already-arbitrated instance
	// re-establishes its message channel, typically from SendMessage.
	// It never raises an instance-started event.
	ConnectionReconnect
)

// String returns the connection type's wire-protocol name.
func (t ConnectionType) String() string {
	switch t {
	case ConnectionNewInstance:
		return "new-instance"
	case ConnectionSecondaryInstance:
		return "secondary-instance"
	case ConnectionReconnect:
		return "reconnect"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(t))
	}
}

// HeaderSize is the width of the frame's length prefix.
const HeaderSize = 8

// MaxBodySize bounds the declared body length a listener will read.
// A real handshake is well under 100 bytes; anything larger is a
// protocol violation, and the bound keeps a garbled length prefix
// from provoking a huge allocation.
const MaxBodySize = 4096

// checksumSize is the width of the trailing CRC field.
const checksumSize = 2

// Handshake identifies a connecting instance to the primary.
type Handshake struct {
	// BlockName is the sender's block identifier. The receiver drops
	// the connection unless it matches its own.
	BlockName string

	// Type says why the instance is connecting.
	Type ConnectionType

	// InstanceID is the sender's instance number (0 for a launch that
	// never received one).
	InstanceID uint32
}

// EncodeFrame serializes the handshake as a complete frame: the u64
// length prefix followed by the body with its trailing checksum.
func EncodeFrame(handshake Handshake) []byte {
	bodyLength := 4 + len(handshake.BlockName) + 1 + 4 + checksumSize
	frame := make([]byte, HeaderSize+bodyLength)

	binary.BigEndian.PutUint64(frame[:HeaderSize], uint64(bodyLength))

	body := frame[HeaderSize:]
	binary.BigEndian.PutUint32(body[0:4], uint32(len(handshake.BlockName)))
	copy(body[4:], handshake.BlockName)

	offset := 4 + len(handshake.BlockName)
	body[offset] = byte(handshake.Type)
	binary.BigEndian.PutUint32(body[offset+1:offset+5], handshake.InstanceID)

	checksum := crc16.Checksum(body[:bodyLength-checksumSize])
	binary.BigEndian.PutUint16(body[bodyLength-checksumSize:], checksum)

	return frame
}

// DecodeHeader reads the length prefix and validates it against
// MaxBodySize. header must be exactly HeaderSize bytes.
func DecodeHeader(header []byte) (int, error) {
	if len(header) != HeaderSize {
		return 0, fmt.Errorf("wire: header is %d bytes, want %d", len(header), HeaderSize)
	}
	bodyLength := binary.BigEndian.Uint64(header)
	if bodyLength == 0 || bodyLength > MaxBodySize {
		return 0, fmt.Errorf("wire: declared body length %d outside (0, %d]", bodyLength, MaxBodySize)
	}
	return int(bodyLength), nil
}

// DecodeBody parses a handshake body and verifies its trailing
// checksum. The body must contain exactly one handshake; trailing
// bytes are a decode error, since message payloads travel outside
// the handshake frame.
//
// DecodeBody does not compare the identifier echo against anything;
// that check belongs to the receiver, which knows its own identifier.
func DecodeBody(body []byte) (Handshake, error) {
	const fixedTail = 1 + 4 + checksumSize // type + instance id + checksum

	if len(body) < 4+fixedTail {
		return Handshake{}, fmt.Errorf("wire: handshake body is %d bytes, below minimum %d", len(body), 4+fixedTail)
	}

	nameLength := binary.BigEndian.Uint32(body[0:4])
	if int(nameLength) != len(body)-4-fixedTail {
		return Handshake{}, fmt.Errorf("wire: identifier length %d inconsistent with body length %d", nameLength, len(body))
	}

	stored := binary.BigEndian.Uint16(body[len(body)-checksumSize:])
	computed := crc16.Checksum(body[:len(body)-checksumSize])
	if stored != computed {
		return Handshake{}, fmt.Errorf("wire: handshake checksum %#04x does not match computed %#04x", stored, computed)
	}

	offset := 4 + int(nameLength)
	connectionType := ConnectionType(body[offset])
	if connectionType == ConnectionInvalid || connectionType > ConnectionReconnect {
		return Handshake{}, fmt.Errorf("wire: unknown connection type %d", body[offset])
	}

	return Handshake{
		BlockName:  string(body[4:offset]),
		Type:       connectionType,
		InstanceID: binary.BigEndian.Uint32(body[offset+1 : offset+5]),
	}, nil
}
