package memexerr

import (
	"errors"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(Invalid, "bad input")
	if KindOf(err) != Invalid {
		t.Errorf("expected Invalid, got %s", KindOf(err))
	}
	if KindOf(errors.New("plain error")) != "" {
		t.Error("expected empty kind for a non-memexerr error")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IO, "write memory", cause)

	if !errors.Is(err, cause) {
		t.Error("expected Wrap to preserve the cause for errors.Is")
	}
	if KindOf(err) != IO {
		t.Errorf("expected IO, got %s", KindOf(err))
	}
}

func TestCodeRoundTrip(t *testing.T) {
	for _, kind := range []Kind{Invalid, NotFound, QuotaExceeded, RateLimited, Busy, Timeout, Corrupt, IO, BadConfig} {
		code := Code(kind)
		if code == 0 {
			t.Errorf("expected non-zero code for %s", kind)
		}
		if got := Message(code); got != string(kind) {
			t.Errorf("expected Message(%d) == %s, got %s", code, kind, got)
		}
	}
}

func TestCodeUnknown(t *testing.T) {
	if Code("") != 0 {
		t.Error("expected empty kind to map to code 0")
	}
	if Message(0) != "Unknown" {
		t.Errorf("expected code 0 to map to Unknown, got %s", Message(0))
	}
	if Message(999) != "Unknown" {
		t.Errorf("expected out-of-range code to map to Unknown, got %s", Message(999))
	}
}

func TestIs(t *testing.T) {
	err := New(QuotaExceeded, "over quota")
	if !Is(err, QuotaExceeded) {
		t.Error("expected Is to match the error's kind")
	}
	if Is(err, Invalid) {
		t.Error("expected Is to reject a mismatched kind")
	}
}
