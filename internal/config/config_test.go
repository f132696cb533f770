package config

import "testing"

func TestValidateRejectsShortHMACSecret(t *testing.T) {
	c := &Config{HMACSecretCurrent: "short", UpsellCopyAWeight: 0.5, UpsellPosImmediateWeight: 0.5, BufferWindow: 1, BufferMaxMsgs: 1, CatalogSyncPageSize: 1}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for short hmac secret")
	}
}

func TestValidateRejectsOutOfRangeWeight(t *testing.T) {
	c := &Config{UpsellCopyAWeight: 1.5, UpsellPosImmediateWeight: 0.5, BufferWindow: 1, BufferMaxMsgs: 1, CatalogSyncPageSize: 1}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for out-of-range weight")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := &Config{
		UpsellCopyAWeight:        0.5,
		UpsellPosImmediateWeight: 0.5,
		BufferWindow:             30,
		BufferMaxMsgs:            8,
		CatalogSyncPageSize:      100,
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
