package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashVerify(t *testing.T) {
	b := NewBcrypt(bcrypt.MinCost)

	hash, err := b.Hash("password123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !b.Verify(hash, "password123") {
		t.Fatal("expected matching password to verify")
	}
	if b.Verify(hash, "wrong") {
		t.Fatal("expected wrong password to fail")
	}
	if b.Verify("", "password123") || b.Verify("not-a-hash", "password123") {
		t.Fatal("malformed hashes must never verify")
	}
}

func TestBcryptRejectsLongPasswords(t *testing.T) {
	b := NewBcrypt(bcrypt.MinCost)

	if _, err := b.Hash(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestBcryptNeedsRehash(t *testing.T) {
	weak := NewBcrypt(bcrypt.MinCost)
	strong := NewBcrypt(bcrypt.MinCost + 1)

	hash, err := weak.Hash("password123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if weak.NeedsRehash(hash) {
		t.Fatal("hash at configured cost should not need rehash")
	}
	if !strong.NeedsRehash(hash) {
		t.Fatal("hash below configured cost should need rehash")
	}
	if NewBcrypt(0).cost != bcrypt.DefaultCost {
		t.Fatal("out of range cost should fall back to default")
	}
}
