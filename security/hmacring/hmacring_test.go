package hmacring

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyAcceptsCurrentKey(t *testing.T) {
	r := New("current-secret-1234567890", "")
	body := []byte(`{"hello":"world"}`)
	if !r.Verify(body, sign("current-secret-1234567890", body)) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifyAcceptsPreviousKeyDuringRotationWindow(t *testing.T) {
	r := New("new-secret-1234567890ab", "old-secret-1234567890ab")
	body := []byte(`payload`)
	if !r.Verify(body, sign("old-secret-1234567890ab", body)) {
		t.Fatal("expected previous key signature to verify")
	}
}

func TestVerifyRejectsUnknownKey(t *testing.T) {
	r := New("current-secret-1234567890", "")
	body := []byte(`payload`)
	if r.Verify(body, sign("wrong-key-1234567890", body)) {
		t.Fatal("expected invalid signature to be rejected")
	}
}

func TestVerifyAcceptsEmptyBodyWithValidSignature(t *testing.T) {
	r := New("current-secret-1234567890", "")
	body := []byte{}
	if !r.Verify(body, sign("current-secret-1234567890", body)) {
		t.Fatal("expected empty body with valid signature to verify")
	}
}

func TestRotateRejectsShortSecret(t *testing.T) {
	r := New("current-secret-1234567890", "")
	if err := r.Rotate("short"); err != ErrKeyTooShort {
		t.Fatalf("expected ErrKeyTooShort, got %v", err)
	}
}

func TestRotateMovesCurrentToPrevious(t *testing.T) {
	r := New("first-secret-1234567890ab", "")
	if err := r.Rotate("second-secret-1234567890"); err != nil {
		t.Fatal(err)
	}
	body := []byte("x")
	if !r.Verify(body, sign("first-secret-1234567890ab", body)) {
		t.Fatal("old current should now verify as previous")
	}
	if !r.Verify(body, sign("second-secret-1234567890", body)) {
		t.Fatal("new secret should verify as current")
	}
}
