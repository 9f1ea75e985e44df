package validator

import (
	"strings"
	"testing"
)

func TestValidateMessage(t *testing.T) {
	if errs := ValidateMessage("hello", false); errs.HasErrors() {
		t.Fatalf("plain message should validate: %v", errs)
	}
	if errs := ValidateMessage("", true); errs.HasErrors() {
		t.Fatalf("media-only message should validate: %v", errs)
	}
	if errs := ValidateMessage("   ", false); !errs.HasErrors() {
		t.Fatalf("whitespace-only message without media should fail")
	}
	if errs := ValidateMessage(strings.Repeat("x", 4001), false); !errs.HasErrors() {
		t.Fatalf("oversized message should fail")
	}
	// Rune count, not byte count.
	if errs := ValidateMessage(strings.Repeat("é", 4000), false); errs.HasErrors() {
		t.Fatalf("4000 runes should validate: %v", errs)
	}
}

func TestValidateGroupName(t *testing.T) {
	if errs := ValidateGroupName("launch crew"); errs.HasErrors() {
		t.Fatalf("valid name rejected: %v", errs)
	}
	if errs := ValidateGroupName(""); !errs.HasErrors() {
		t.Fatalf("empty name should fail")
	}
	if errs := ValidateGroupName("x"); !errs.HasErrors() {
		t.Fatalf("one-character name should fail")
	}
	if errs := ValidateGroupName(strings.Repeat("n", 101)); !errs.HasErrors() {
		t.Fatalf("overlong name should fail")
	}
}
