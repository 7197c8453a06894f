package router

import (
	"testing"
	"time"
)

func TestDedupClaimDoneRelease(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := NewDedup(time.Minute)
	d.now = func() time.Time { return now }

	if !d.Claim("a") {
		t.Fatal("first claim refused")
	}
	if d.Claim("a") {
		t.Fatal("in-flight key claimed twice")
	}

	d.Release("a")
	if !d.Claim("a") {
		t.Fatal("released key not claimable")
	}

	d.Done("a")
	now = now.Add(30 * time.Second)
	if d.Claim("a") {
		t.Fatal("finished key claimable inside ttl")
	}
	now = now.Add(31 * time.Second)
	if !d.Claim("a") {
		t.Fatal("finished key not claimable after ttl")
	}
}

func TestDedupNilAndEmptyKey(t *testing.T) {
	var d *Dedup
	if !d.Claim("x") {
		t.Fatal("nil Dedup must allow everything")
	}
	d2 := NewDedup(time.Minute)
	if !d2.Claim("") || !d2.Claim("") {
		t.Fatal("empty key must never be deduplicated")
	}
}
