package asturaire

import (
	"testing"
	"time"
)

// TestSignKnownCredentials checks the two-stage hash against values
// computed independently for the default credentials.
func TestSignKnownCredentials(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	sig, ts := Sign("manten", "MANTEN", now)

	if ts != "1700000000000" {
		t.Fatalf("expected timestamp 1700000000000, got %s", ts)
	}
	want := "db09105f523c32ecee7c09f450e3f2642e87da0e6678dbffef3909115e6442f4"
	if sig != want {
		t.Fatalf("expected signature %s, got %s", want, sig)
	}
}

func TestSignOtherCredentials(t *testing.T) {
	now := time.UnixMilli(42)
	sig, ts := Sign("alice", "secret", now)

	if ts != "42" {
		t.Fatalf("expected timestamp 42, got %s", ts)
	}
	want := "e93517e97319022a72ae16aaab95cbe35c7474f4dee5cf3a8e91ee84ee46b77c"
	if sig != want {
		t.Fatalf("expected signature %s, got %s", want, sig)
	}
}

// TestSignDependsOnTime ensures two different instants never produce the
// same signature for the same credentials.
func TestSignDependsOnTime(t *testing.T) {
	a, _ := Sign("manten", "MANTEN", time.UnixMilli(1000))
	b, _ := Sign("manten", "MANTEN", time.UnixMilli(2000))
	if a == b {
		t.Fatal("signatures for different timestamps must differ")
	}
}
