package handler

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/fileflow/internal/auth"
	"github.com/dukerupert/fileflow/internal/entitlement"
	"github.com/dukerupert/fileflow/internal/fileinfo"
	"github.com/dukerupert/fileflow/internal/flash"
	"github.com/dukerupert/fileflow/internal/metrics"
	"github.com/dukerupert/fileflow/internal/upload"
)

const (
	// multipartMemory is how much of a multipart body is held in memory
	// before spilling to temp files.
	multipartMemory = 32 << 20
	// multipartOverhead allows for boundaries and headers on top of the
	// largest permitted file.
	multipartOverhead = 1 << 20
)

type FileHandler struct {
	files    *upload.Service
	resolver *entitlement.Resolver
	metrics  *metrics.Metrics
	view
}

func NewFileHandler(
	files *upload.Service,
	resolver *entitlement.Resolver,
	m *metrics.Metrics,
	templates map[string]*template.Template,
	flashes *flash.Store,
	logger *slog.Logger,
) *FileHandler {
	return &FileHandler{
		files:    files,
		resolver: resolver,
		metrics:  m,
		view:     view{templates: templates, flash: flashes, logger: logger},
	}
}

// Index renders the upload form and the caller's files.
func (h *FileHandler) Index(w http.ResponseWriter, r *http.Request) {
	user := auth.User(r.Context())
	files, err := h.files.List(user)
	if err != nil {
		h.logger.Error("list files", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	status, err := h.resolver.Resolve(user)
	if err != nil {
		h.logger.Error("resolve subscription", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "upload.html", map[string]any{
		"Title":  "Загрузка",
		"Files":  files,
		"Status": status,
	})
}

// Upload accepts a multipart form with a single "file" field.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := auth.User(r.Context())
	h.clearDeadlines(w)
	r.Body = http.MaxBytesReader(w, r.Body, entitlement.PremiumUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.metrics.UploadsTotal.WithLabelValues("quota").Inc()
			h.notify(w, r, "/", flash.Error, "Файл превышает допустимый размер %s", fileinfo.HumanSize(entitlement.PremiumUploadBytes))
			return
		case !errors.Is(err, http.ErrNotMultipart):
			// Covers dropped connections and truncated bodies.
			h.metrics.UploadsTotal.WithLabelValues("error").Inc()
			h.logger.Warn("parse upload form", "user_id", user.ID, "error", err)
			h.notify(w, r, "/", flash.Error, "Не удалось загрузить файл. Попробуйте ещё раз.")
			return
		}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.metrics.UploadsTotal.WithLabelValues("no_file").Inc()
		h.notify(w, r, "/", flash.Error, "Вы не выбрали файл!")
		return
	}
	defer file.Close()

	// Clients send the generic type when they do not know the real one.
	declared := header.Header.Get("Content-Type")
	if declared == fileinfo.DefaultContentType {
		declared = ""
	}

	f, err := h.files.Upload(r.Context(), user, upload.Input{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: declared,
		Body:        file,
	})
	var quota *entitlement.QuotaError
	switch {
	case errors.As(err, &quota):
		h.metrics.UploadsTotal.WithLabelValues("quota").Inc()
		h.notify(w, r, "/", flash.Error, "Файл превышает допустимый размер %s", fileinfo.HumanSize(quota.Limit))
	case errors.Is(err, upload.ErrNoFile):
		h.metrics.UploadsTotal.WithLabelValues("no_file").Inc()
		h.notify(w, r, "/", flash.Error, "Вы не выбрали файл!")
	case err != nil:
		h.metrics.UploadsTotal.WithLabelValues("error").Inc()
		h.logger.Error("upload file", "user_id", user.ID, "error", err)
		h.notify(w, r, "/", flash.Error, "Не удалось загрузить файл. Попробуйте ещё раз.")
	default:
		h.metrics.UploadsTotal.WithLabelValues("ok").Inc()
		h.metrics.UploadedBytesTotal.Add(float64(f.Size))
		h.notify(w, r, "/", flash.Success, "Файл успешно загружен!")
	}
}

// clearDeadlines lifts the server-wide read and write deadlines for the
// current request; a body up to the premium limit may take longer than both.
func (h *FileHandler) clearDeadlines(w http.ResponseWriter) {
	rc := http.NewResponseController(w)
	for _, set := range []func(time.Time) error{rc.SetReadDeadline, rc.SetWriteDeadline} {
		if err := set(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.logger.Warn("clear upload deadline", "error", err)
		}
	}
}

// All renders the detailed listing.
func (h *FileHandler) All(w http.ResponseWriter, r *http.Request) {
	files, err := h.files.List(auth.User(r.Context()))
	if err != nil {
		h.logger.Error("list files", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "all_files.html", map[string]any{
		"Title": "Все файлы",
		"Files": files,
	})
}

func (h *FileHandler) Detail(w http.ResponseWriter, r *http.Request) {
	f, err := h.files.Get(auth.User(r.Context()), r.PathValue("slug"))
	if err != nil {
		h.fileError(w, err)
		return
	}
	h.render(w, r, "file_detail.html", map[string]any{
		"Title": f.OriginalName,
		"File":  f,
	})
}

// Download streams the file as an attachment.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, "attachment")
}

// Preview streams a previewable file inline. Other files are downloaded.
func (h *FileHandler) Preview(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, "inline")
}

func (h *FileHandler) stream(w http.ResponseWriter, r *http.Request, disposition string) {
	f, rc, err := h.files.Open(r.Context(), auth.User(r.Context()), r.PathValue("slug"))
	if err != nil {
		h.fileError(w, err)
		return
	}
	defer rc.Close()

	if disposition == "inline" && !fileinfo.Previewable(f.ContentType) {
		disposition = "attachment"
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = fileinfo.DefaultContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, f.OriginalName))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}

	n, err := io.Copy(w, rc)
	if err != nil {
		h.logger.Warn("stream file", "slug", f.Slug, "written", n, "error", err)
		return
	}
	h.metrics.DownloadsTotal.Inc()
}

// Delete removes a file and returns to the upload page.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, "/")
}

// DeleteFromAll removes a file and returns to the detailed listing.
func (h *FileHandler) DeleteFromAll(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, "/file/all")
}

func (h *FileHandler) delete(w http.ResponseWriter, r *http.Request, target string) {
	if err := h.files.Delete(r.Context(), auth.User(r.Context()), r.PathValue("slug")); err != nil {
		h.fileError(w, err)
		return
	}
	h.notify(w, r, target, flash.Success, "Файл удалён.")
}

func (h *FileHandler) fileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, upload.ErrNotFound):
		http.Error(w, "Файл не найден", http.StatusNotFound)
	case errors.Is(err, upload.ErrForbidden):
		http.Error(w, "Доступ запрещён", http.StatusForbidden)
	default:
		h.logger.Error("file request", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
