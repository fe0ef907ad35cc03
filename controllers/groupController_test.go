package controllers

import (
	"strings"
	"testing"
)

func TestNewInviteCodeFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := newInviteCode()
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(code, "ECO-") || len(code) != 10 {
			t.Fatalf("unexpected invite code %q", code)
		}
		for _, r := range code[4:] {
			if !strings.ContainsRune(inviteCodeAlphabet, r) {
				t.Fatalf("invite code %q uses a character outside the alphabet", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 95 {
		t.Errorf("invite codes look non-random: %d unique out of 100", len(seen))
	}
}
