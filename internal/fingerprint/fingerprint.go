// Package fingerprint computes content fingerprints for tracked files.
//
// A fingerprint is a SHA-256 digest of a file's bytes, used as a proxy for
// byte-exact equality. The customization-detection guarantee of the engine
// rests on the digest being cryptographic: two files compare equal exactly
// when their contents are identical, regardless of path.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Fingerprint is a hex-encoded SHA-256 content digest.
// The zero value ("") means "absent": the file does not exist at that site.
type Fingerprint string

// Absent is the fingerprint of a file that does not exist.
const Absent Fingerprint = ""

// IsAbsent reports whether the fingerprint denotes a missing file.
func (f Fingerprint) IsAbsent() bool {
	return f == Absent
}

// Short returns a truncated digest for display and logging.
func (f Fingerprint) Short() string {
	if len(f) < 12 {
		return string(f)
	}
	return string(f[:12])
}

// Bytes computes the fingerprint of a byte sequence.
// Pure and deterministic: identical bytes always yield identical digests.
func Bytes(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// File computes the fingerprint of the file at path.
// Returns Absent (and no error) if the file does not exist.
func File(path string) (Fingerprint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Absent, nil
	}
	if err != nil {
		return Absent, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Bytes(data), nil
}
