// Package b64 base64-encodes frame snapshots for script environment
// variables. The wire format is plain RFC 4648 base64 with padding, the
// same encoding the original C implementation hand-rolled; Go's standard
// library already provides a byte-for-byte compatible encoder, so this
// package is a one-line wrapper rather than a reimplementation (see
// DESIGN.md for why no third-party codec was substituted here).
package b64

import "encoding/base64"

// Encode returns the standard, padded base64 encoding of b.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
