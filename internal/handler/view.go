package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dukerupert/fileflow/internal/auth"
	"github.com/dukerupert/fileflow/internal/flash"
)

// view renders page templates inside the layout with the current user and
// any pending flash notices.
type view struct {
	templates map[string]*template.Template
	flash     *flash.Store
	logger    *slog.Logger
}

func (v view) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	v.renderStatus(w, r, http.StatusOK, name, data)
}

func (v view) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["User"]; !ok {
		data["User"] = auth.User(r.Context())
	}
	data["Notices"] = v.flash.Pop(w, r)

	tmpl, ok := v.templates[name]
	if !ok {
		v.logger.Error("template not found", "name", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		v.logger.Error("template render", "error", err)
	}
}

// notify queues a flash notice and redirects with 303.
func (v view) notify(w http.ResponseWriter, r *http.Request, target string, level flash.Level, format string, args ...any) {
	v.flash.Add(w, r, level, format, args...)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
