// Package digest computes the SHA-256 content address used to identify
// uploads and to verify what storage servers report back.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Length is the number of hex characters in a Digest.
const Length = sha256.Size * 2

// ErrInvalid is returned by Parse for strings that are not a SHA-256 hex digest.
var ErrInvalid = errors.New("invalid sha256 digest")

// Digest is a lowercase hex SHA-256 of a payload.
type Digest string

// Sum returns the digest of b. It is valid for empty input.
func Sum(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest(hex.EncodeToString(sum[:]))
}

// FromReader hashes everything read from r.
func FromReader(r io.Reader) (Digest, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// Parse validates s as a hex digest and returns it lowercased.
func Parse(s string) (Digest, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != Length {
		return "", fmt.Errorf("%w: length %d", ErrInvalid, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Digest(s), nil
}

// Matches reports whether a server-reported hash equals d exactly. Servers
// must report lowercase hex; any other spelling is a mismatch.
func (d Digest) Matches(reported string) bool {
	return reported == string(d)
}

// Short returns the first 16 characters, for log lines.
func (d Digest) Short() string {
	if len(d) <= 16 {
		return string(d)
	}
	return string(d[:16])
}

func (d Digest) String() string {
	return string(d)
}
