// Package fileinfo derives the metadata stored alongside an uploaded blob:
// extension, content type, display category and human-readable size.
package fileinfo

import (
	"fmt"
	"mime"
	"path"
	"strings"
)

// DefaultContentType is used when neither the client nor the extension table
// names a content type.
const DefaultContentType = "application/octet-stream"

// GenericCategory labels anything none of the tables recognise.
const GenericCategory = "Файл"

// Info is the derived metadata of a blob.
type Info struct {
	Size        int64
	Extension   string
	ContentType string
	Category    string
}

// commonTypes covers extensions the platform MIME table may not know.
var commonTypes = map[string]string{
	"txt":  "text/plain",
	"md":   "text/markdown",
	"log":  "text/plain",
	"csv":  "text/csv",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"odt":  "application/vnd.oasis.opendocument.text",
	"zip":  "application/zip",
	"rar":  "application/vnd.rar",
	"7z":   "application/x-7z-compressed",
	"gz":   "application/gzip",
	"tar":  "application/x-tar",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"flac": "audio/flac",
	"mp4":  "video/mp4",
	"mkv":  "video/x-matroska",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
}

var byContentType = map[string]string{
	"application/pdf":                         "PDF-документ",
	"application/msword":                      "Документ Word",
	"application/vnd.ms-excel":                "Таблица Excel",
	"application/vnd.ms-powerpoint":           "Презентация PowerPoint",
	"application/vnd.oasis.opendocument.text": "Документ OpenDocument",

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "Документ Word",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "Таблица Excel",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "Презентация PowerPoint",

	"application/zip":              "ZIP-архив",
	"application/x-zip-compressed": "ZIP-архив",
	"application/x-rar-compressed": "RAR-архив",
	"application/vnd.rar":          "RAR-архив",
	"application/x-7z-compressed":  "7z-архив",
	"application/gzip":             "GZIP-архив",
	"application/x-tar":            "TAR-архив",

	"application/json": "JSON-файл",
	"application/xml":  "XML-файл",
	"text/csv":         "Таблица CSV",
	"text/html":        "HTML-страница",
	"image/svg+xml":    "Векторное изображение",
	"image/gif":        "GIF-анимация",
}

var byPrefix = []struct {
	prefix string
	label  string
}{
	{"image/", "Изображение"},
	{"text/", "Текстовый файл"},
	{"audio/", "Аудио"},
	{"video/", "Видео"},
}

var byExtension = map[string]string{
	"pdf":  "PDF-документ",
	"doc":  "Документ Word",
	"docx": "Документ Word",
	"odt":  "Документ OpenDocument",
	"xls":  "Таблица Excel",
	"xlsx": "Таблица Excel",
	"csv":  "Таблица CSV",
	"ppt":  "Презентация PowerPoint",
	"pptx": "Презентация PowerPoint",
	"zip":  "ZIP-архив",
	"rar":  "RAR-архив",
	"7z":   "7z-архив",
	"gz":   "GZIP-архив",
	"tar":  "TAR-архив",
	"txt":  "Текстовый файл",
	"md":   "Текстовый файл",
	"log":  "Текстовый файл",
	"jpg":  "Изображение",
	"jpeg": "Изображение",
	"png":  "Изображение",
	"webp": "Изображение",
	"mp3":  "Аудио",
	"wav":  "Аудио",
	"flac": "Аудио",
	"mp4":  "Видео",
	"mkv":  "Видео",
	"avi":  "Видео",
	"mov":  "Видео",
	"exe":  "Программа",
	"apk":  "Приложение Android",
	"iso":  "Образ диска",
}

// Resolve derives the metadata for a blob called name of the given size.
// declaredType is the client-supplied content type and may be empty.
func Resolve(name string, size int64, declaredType string) Info {
	ext := Extension(name)
	ct := ContentType(ext, declaredType)
	return Info{
		Size:        size,
		Extension:   ext,
		ContentType: ct,
		Category:    Category(ct, ext),
	}
}

// Extension returns the lowercased text after the last "." of the base name,
// or "" if there is none.
func Extension(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// ContentType returns declared if it is non-blank, otherwise the type
// registered for ext, otherwise DefaultContentType.
func ContentType(ext, declared string) string {
	if d := strings.TrimSpace(declared); d != "" {
		return d
	}
	if ext != "" {
		if guessed := mime.TypeByExtension("." + ext); guessed != "" {
			return baseType(guessed)
		}
		if known, ok := commonTypes[ext]; ok {
			return known
		}
	}
	return DefaultContentType
}

// Category picks a display label: exact content type, then MIME prefix, then
// extension, then GenericCategory.
func Category(contentType, ext string) string {
	ct := baseType(contentType)
	if ct != "" {
		if label, ok := byContentType[ct]; ok {
			return label
		}
		for _, p := range byPrefix {
			if strings.HasPrefix(ct, p.prefix) {
				return p.label
			}
		}
	}
	if label, ok := byExtension[strings.ToLower(ext)]; ok {
		return label
	}
	return GenericCategory
}

// Previewable reports whether a browser can display the content inline.
func Previewable(contentType string) bool {
	ct := baseType(contentType)
	return strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "text/") || ct == "application/pdf"
}

// HumanSize formats n bytes with two decimals in the first unit below 1024.
func HumanSize(n int64) string {
	if n <= 0 {
		return "-"
	}
	size := float64(n)
	units := []string{"B", "KB", "MB", "GB", "TB"}
	for i, unit := range units {
		if size < 1024 || i == len(units)-1 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024
	}
	return "-"
}

// baseType lowercases a content type and drops any parameters.
func baseType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
