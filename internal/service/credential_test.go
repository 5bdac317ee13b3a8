package service

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateTemporaryCredential(t *testing.T) {
	seen := make(map[string]bool)
	for range 200 {
		c, err := GenerateTemporaryCredential()
		if err != nil {
			t.Fatal(err)
		}
		if len(c) != 14 || c[4] != '-' || c[9] != '-' {
			t.Fatalf("bad format %q", c)
		}
		for _, r := range strings.ReplaceAll(c, "-", "") {
			if !strings.ContainsRune(credentialAlphabet, r) {
				t.Fatalf("unexpected character %q in %q", r, c)
			}
		}
		if seen[c] {
			t.Fatalf("duplicate credential %q", c)
		}
		seen[c] = true
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := hashPassword("abcd-efgh-jkmn", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("abcd-efgh-jkmn")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
}
