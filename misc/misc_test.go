package misc

import (
	"testing"
	"time"
)

func TestFixedClock(t *testing.T) {
	start := time.Unix(36000, 0)
	clock := NewFixedClock(start)

	if !clock.Now().Equal(start) {
		t.Fatalf("expected %v but got %v", start, clock.Now())
	}
	clock.Advance(time.Hour)
	if !clock.Now().Equal(start.Add(time.Hour)) {
		t.Fatalf("expected %v but got %v", start.Add(time.Hour), clock.Now())
	}
	clock.Set(start)
	if !clock.Now().Equal(start) {
		t.Fatalf("expected %v but got %v", start, clock.Now())
	}
}

func TestSystemClock(t *testing.T) {
	before := time.Now()
	now := SystemClock{}.Now()
	if now.Before(before) {
		t.Fatalf("system clock went backwards: %v < %v", now, before)
	}
}

func TestCopyBytes(t *testing.T) {
	if CopyBytes(nil) != nil {
		t.Fatalf("expected nil copy of nil")
	}
	a := []byte("secret")
	b := CopyBytes(a)
	a[0] = 'X'
	if string(b) != "secret" {
		t.Fatalf("copy shares memory with source: %s", string(b))
	}
}
