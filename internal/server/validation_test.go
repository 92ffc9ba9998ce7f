package server

import (
	"strings"
	"testing"
)

func TestValidateDisplayName(t *testing.T) {
	if _, err := validateDisplayName("  "); err == nil {
		t.Fatalf("blank name must fail")
	}
	if _, err := validateDisplayName(strings.Repeat("a", maxDisplayNameLength+1)); err == nil {
		t.Fatalf("oversized name must fail")
	}
	name, err := validateDisplayName("  Ada ")
	if err != nil || name != "Ada" {
		t.Fatalf("expected trimmed Ada, got %q (%v)", name, err)
	}
}

func TestValidateContentBounds(t *testing.T) {
	if _, err := validateContent(strings.Repeat("x", maxContentLength)); err != nil {
		t.Fatalf("content at the limit must pass: %v", err)
	}
	if _, err := validateContent(strings.Repeat("x", maxContentLength+1)); err == nil {
		t.Fatalf("content over the limit must fail")
	}
}

func TestGameCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := newGameCode()
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		for _, r := range code {
			if strings.ContainsRune("IO01", r) {
				t.Fatalf("code %q contains an ambiguous character", code)
			}
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := normalizeCode(" abc123 "); got != "ABC123" {
		t.Fatalf("expected ABC123, got %q", got)
	}
}
