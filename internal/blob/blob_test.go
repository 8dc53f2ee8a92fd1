package blob

import (
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	ts := time.Date(2026, 10, 4, 23, 30, 0, 0, time.UTC)

	if got, want := Key(ts, "abc", "pdf"), "uploads/2026/10/04/abc.pdf"; got != want {
		t.Errorf("Key = %q, want %q", got, want)
	}
	if got, want := Key(ts, "abc", ""), "uploads/2026/10/04/abc"; got != want {
		t.Errorf("Key without extension = %q, want %q", got, want)
	}
}

func TestKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	ts := time.Date(2026, 10, 5, 2, 0, 0, 0, loc) // 2026-10-04 21:00 UTC

	if got, want := Key(ts, "x", "txt"), "uploads/2026/10/04/x.txt"; got != want {
		t.Errorf("Key = %q, want %q", got, want)
	}
}

func TestOpenBackend(t *testing.T) {
	s, err := Open("local", t.TempDir(), S3Config{})
	if err != nil {
		t.Fatalf("Open local: %v", err)
	}
	if _, ok := s.(*Local); !ok {
		t.Errorf("Open local = %T, want *Local", s)
	}

	if _, err := Open("ftp", "", S3Config{}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
