package validation

import (
	"errors"
	"testing"
)

func TestErr(t *testing.T) {
	v := New()
	if v.Err() != nil {
		t.Fatalf("empty validation should yield nil error")
	}

	v.Add("start", "required")
	v.Add("start", "ignored")
	v.Add("end", "required")

	err := v.Err()
	if err == nil {
		t.Fatalf("expected error")
	}
	var vErr *Error
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if vErr.Fields["start"] != "required" {
		t.Errorf("first message should win, got %q", vErr.Fields["start"])
	}
	if got, want := err.Error(), "validation failed: end: required; start: required"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
