// Package flash carries one-shot notices across a redirect in a signed cookie.
package flash

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName = "fileflow_flash"
	flashKey    = "notices"
)

type Level string

const (
	Success Level = "success"
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is a single message shown on the next rendered page.
type Notice struct {
	Level   Level
	Message string
}

func init() {
	gob.Register(Notice{})
}

type Store struct {
	cookies *sessions.CookieStore
	logger  *slog.Logger
}

// NewStore signs flash cookies with secret. secure marks them HTTPS-only.
func NewStore(secret []byte, secure bool, logger *slog.Logger) *Store {
	cs := sessions.NewCookieStore(secret)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Store{cookies: cs, logger: logger}
}

// Add queues a notice. It must run before the response headers are written.
func (s *Store) Add(w http.ResponseWriter, r *http.Request, level Level, format string, args ...any) {
	sess, _ := s.cookies.Get(r, sessionName)
	sess.AddFlash(Notice{Level: level, Message: fmt.Sprintf(format, args...)}, flashKey)
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("save flash", "error", err)
	}
}

// Pop returns and clears the queued notices.
func (s *Store) Pop(w http.ResponseWriter, r *http.Request) []Notice {
	sess, err := s.cookies.Get(r, sessionName)
	if err != nil {
		// A cookie signed with an old key decodes to an empty session.
		return nil
	}
	raw := sess.Flashes(flashKey)
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("clear flash", "error", err)
	}

	notices := make([]Notice, 0, len(raw))
	for _, v := range raw {
		if n, ok := v.(Notice); ok {
			notices = append(notices, n)
		}
	}
	return notices
}
