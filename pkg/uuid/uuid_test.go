package uuid

import (
	"regexp"
	"testing"
)

func TestNewV7_SetsVersionAndVariant(t *testing.T) {
	t.Parallel()

	u := NewV7()

	if u.Version() != 7 {
		t.Fatalf("expected version 7, got %d", u.Version())
	}
	// RFC 9562 variant lives in byte 8 (10xxxxxx)
	if (u[8] & 0xc0) != 0x80 {
		t.Fatalf("expected RFC variant bits 10xxxxxx, got %08b", u[8])
	}
}

func TestNewString_Format(t *testing.T) {
	t.Parallel()

	s := NewString()

	re := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !re.MatchString(s) {
		t.Fatalf("expected canonical v7 uuid, got %q", s)
	}
}

func TestNewV7_SortsByCreation(t *testing.T) {
	t.Parallel()

	prev := NewString()
	for i := 0; i < 50; i++ {
		next := NewString()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}
