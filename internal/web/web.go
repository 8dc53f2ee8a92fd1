// Package web holds the embedded HTML templates.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dukerupert/fileflow/internal/fileinfo"
	"github.com/dukerupert/fileflow/internal/model"
)

//go:embed templates/*.html
var files embed.FS

// Pages lists every page template. Each one is parsed together with the
// layout into its own set so the "content" blocks do not collide.
var Pages = []string{
	"upload.html",
	"all_files.html",
	"file_detail.html",
	"register.html",
	"login.html",
	"profile.html",
	"plans.html",
	"success.html",
	"cancel.html",
	"status.html",
}

// Funcs is the function map available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"humanSize":    fileinfo.HumanSize,
		"humanizeTime": func(t time.Time) string { return humanize.Time(t) },
		"previewable":  fileinfo.Previewable,
		"category": func(f model.UploadedFile) string {
			return fileinfo.Category(f.ContentType, f.Extension)
		},
		"price": func(cents int64) string {
			return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
		},
	}
}

// Templates parses all pages, keyed by file name.
func Templates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(Pages))
	for _, page := range Pages {
		t, err := template.New("layout.html").Funcs(Funcs()).ParseFS(files, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		templates[page] = t
	}
	return templates, nil
}
