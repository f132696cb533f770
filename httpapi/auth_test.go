package httpapi

import (
	"testing"
	"time"
)

func TestAdminAuthIssueAndVerifyRoundtrip(t *testing.T) {
	a := NewAdminAuth("a-very-secret-admin-key", time.Minute)
	token, err := a.IssueToken("operator-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	subject, err := a.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if subject != "operator-1" {
		t.Fatalf("expected subject operator-1, got %q", subject)
	}
}

func TestAdminAuthRejectsExpiredToken(t *testing.T) {
	a := NewAdminAuth("a-very-secret-admin-key", -time.Minute)
	token, err := a.IssueToken("operator-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := a.Verify(token); err == nil {
		t.Fatal("expected an already-expired token to fail verification")
	}
}

func TestAdminAuthRejectsTokenSignedWithDifferentSecret(t *testing.T) {
	a := NewAdminAuth("secret-one", time.Minute)
	token, err := a.IssueToken("operator-1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	other := NewAdminAuth("secret-two", time.Minute)
	if _, err := other.Verify(token); err == nil {
		t.Fatal("expected verification under a different secret to fail")
	}
}

func TestAdminAuthWithoutSecretFailsClosed(t *testing.T) {
	a := NewAdminAuth("", time.Minute)
	if _, err := a.IssueToken("operator-1"); err == nil {
		t.Fatal("expected issuance with no secret configured to fail")
	}
}
