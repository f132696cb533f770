package obslog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestMaskRedactsPhoneAndEmail(t *testing.T) {
	in := "contact +5511999999999 or jane.doe@example.com for details"
	out := Mask(in)
	if strings.Contains(out, "999999999") {
		t.Fatalf("phone not masked: %s", out)
	}
	if strings.Contains(out, "jane.doe@example.com") {
		t.Fatalf("email not masked: %s", out)
	}
}

func TestMaskingHandlerMasksMessageAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	h := NewMaskingHandler(base)
	logger := slog.New(h)
	logger.Info("sent to +5511988887777", slog.String("email", "a@b.com"))

	out := buf.String()
	if strings.Contains(out, "88887777") {
		t.Fatalf("phone leaked into log: %s", out)
	}
	if strings.Contains(out, "a@b.com") {
		t.Fatalf("email leaked into log: %s", out)
	}
}
