package flash

import (
	"log/slog"
	"net/http/httptest"
	"testing"
)

func newTestStore() *Store {
	return NewStore([]byte("0123456789abcdef0123456789abcdef"), false, slog.New(slog.DiscardHandler))
}

func TestAddAndPop(t *testing.T) {
	s := newTestStore()

	rec := httptest.NewRecorder()
	s.Add(rec, httptest.NewRequest("POST", "/", nil), Success, "Файл %s загружен", "report.pdf")
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected flash cookie")
	}

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()
	notices := s.Pop(rec2, req)
	if len(notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(notices))
	}
	if notices[0].Level != Success {
		t.Errorf("level = %q, want %q", notices[0].Level, Success)
	}
	if notices[0].Message != "Файл report.pdf загружен" {
		t.Errorf("message = %q", notices[0].Message)
	}

	// The cleared cookie carries no notices.
	req3 := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec2.Result().Cookies() {
		req3.AddCookie(c)
	}
	if again := s.Pop(httptest.NewRecorder(), req3); len(again) != 0 {
		t.Errorf("notices after pop = %d, want 0", len(again))
	}
}

func TestPopWithoutCookie(t *testing.T) {
	s := newTestStore()
	if notices := s.Pop(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil)); notices != nil {
		t.Errorf("notices = %v, want nil", notices)
	}
}

func TestPopForeignCookie(t *testing.T) {
	s := newTestStore()
	other := NewStore([]byte("another-secret-another-secret-xx"), false, slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	other.Add(rec, httptest.NewRequest("POST", "/", nil), Error, "boom")

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	if notices := s.Pop(httptest.NewRecorder(), req); len(notices) != 0 {
		t.Errorf("notices = %v, want none for a cookie signed with another key", notices)
	}
}
