// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package blockid

import (
	"encoding/base64"
	"encoding/binary"
	"runtime"
	"strings"

	"github.com/zeebo/blake3"
)

// domainKey is the 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures identifier digests can never collide with any
// other BLAKE3 use of the same input bytes. The byte values are the
// ASCII encoding of the domain name, zero-padded to 32 bytes, which
// keeps the key inspectable in hex dumps without sacrificing any
// cryptographic property.
var domainKey = [32]byte{
	's', 'o', 'l', 'o', '.', 'b', 'l', 'o', 'c', 'k', 'i', 'd', '.', 'v', '1',
}

// libraryTag is the fixed first field of every digest. It prevents
// Solo identifiers from colliding with identifiers another library
// might derive from the same application identity.
const libraryTag = "solo-single-instance"

// Params are the identity fields that feed the digest. Unavailable
// sources should be left as empty strings; an empty field still
// contributes its (zero-length) length prefix, so presence and
// absence hash differently from an accidental concatenation.
type Params struct {
	// ApplicationName is the host application's name.
	ApplicationName string

	// OrganizationName is the publishing organization.
	OrganizationName string

	// OrganizationDomain is the organization's domain.
	OrganizationDomain string

	// ApplicationVersion participates in the digest unless
	// Options.ExcludeAppVersion is set. Including it means different
	// versions of the same application coordinate independently.
	ApplicationVersion string

	// ExecutablePath participates in the digest unless
	// Options.ExcludeAppPath is set. On case-insensitive filesystems
	// (Windows, macOS) the path is case-folded first so that two
	// spellings of the same file agree.
	ExecutablePath string

	// Username participates in the digest only when Options.PerUser
	// is set, scoping the coordination to the invoking OS user
	// instead of the whole machine.
	Username string
}

// Options select which identity fields participate in the digest.
type Options struct {
	// ExcludeAppVersion omits ApplicationVersion from the digest.
	ExcludeAppVersion bool

	// ExcludeAppPath omits ExecutablePath from the digest.
	ExcludeAppPath bool

	// PerUser includes Username in the digest, giving each OS user an
	// independent primary instance.
	PerUser bool
}

// Generate derives the block identifier for the given identity and
// options. The result is a 43-character base64url token with no
// padding and no path separator characters, suitable as both a shared
// memory segment name and a local socket endpoint name.
//
// Generation is deterministic: two processes compute the same token
// exactly when they agree on every hashed field.
func Generate(params Params, options Options) string {
	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		// NewKeyed fails only on a key length other than 32 bytes,
		// which the fixed-size array rules out.
		panic("blockid: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	writeField(hasher, libraryTag)
	writeField(hasher, params.ApplicationName)
	writeField(hasher, params.OrganizationName)
	writeField(hasher, params.OrganizationDomain)

	if !options.ExcludeAppVersion {
		writeField(hasher, params.ApplicationVersion)
	}

	if !options.ExcludeAppPath {
		writeField(hasher, foldPath(params.ExecutablePath))
	}

	if options.PerUser {
		writeField(hasher, params.Username)
	}

	digest := hasher.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(digest)
}

// writeField hashes a big-endian u32 length prefix followed by the
// field bytes. The prefix makes field boundaries unambiguous.
func writeField(hasher *blake3.Hasher, field string) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(field)))
	hasher.Write(length[:])
	hasher.Write([]byte(field))
}

// foldPath lower-cases the executable path on platforms whose default
// filesystems are case-insensitive, so that differing spellings of
// the same file produce the same identifier.
func foldPath(path string) string {
	switch runtime.GOOS {
	case "windows", "darwin":
		return strings.ToLower(path)
	default:
		return path
	}
}
