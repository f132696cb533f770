// Package hmacring implements HMAC-SHA256 webhook verification with a
// {current, previous} key ring supporting lossless rotation, grounded on the
// teacher's dingtalk webhook signing idiom (HMAC-SHA256 + hmac.Equal).
package hmacring

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/jonatasporto/trinks-router/domain"
)

// ErrKeyTooShort is returned when a rotation attempts to install a secret
// shorter than the minimum length.
var ErrKeyTooShort = errors.New("hmac key must be at least 16 bytes")

const minKeyLength = 16

// Ring is an atomically-replaced HMAC key ring, read on every request and
// written only by rare admin rotations.
type Ring struct {
	current atomic.Pointer[domain.HMACKeyRing]
}

// New builds a Ring from an initial {current, previous} pair. An empty key
// means "not configured" and never matches; with both empty, verification
// always fails.
func New(current, previous string) *Ring {
	r := &Ring{}
	r.current.Store(&domain.HMACKeyRing{Current: current, Previous: previous})
	return r
}

// Verify checks header (expected form "sha256=<hex>") against body using
// either the current or previous key, constant-time.
func (r *Ring) Verify(body []byte, header string) bool {
	ring := r.current.Load()
	if ring == nil {
		return false
	}
	sig := extractHex(header)
	if sig == "" {
		return false
	}
	given, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	if ring.Current != "" && hmac.Equal(given, computeMAC(ring.Current, body)) {
		return true
	}
	if ring.Previous != "" && hmac.Equal(given, computeMAC(ring.Previous, body)) {
		return true
	}
	return false
}

func extractHex(header string) string {
	const prefix = "sha256="
	if strings.HasPrefix(header, prefix) {
		return header[len(prefix):]
	}
	return ""
}

func computeMAC(key string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return mac.Sum(nil)
}

// Rotate moves current to previous and installs newSecret as current.
// newSecret must be at least minKeyLength bytes.
func (r *Ring) Rotate(newSecret string) error {
	if len(newSecret) < minKeyLength {
		return ErrKeyTooShort
	}
	old := r.current.Load()
	next := &domain.HMACKeyRing{Current: newSecret}
	if old != nil {
		next.Previous = old.Current
	}
	r.current.Store(next)
	return nil
}

// Snapshot returns the current ring state for admin inspection; secrets are
// intentionally not included.
func (r *Ring) Snapshot() (hasCurrent, hasPrevious bool) {
	ring := r.current.Load()
	if ring == nil {
		return false, false
	}
	return ring.Current != "", ring.Previous != ""
}
