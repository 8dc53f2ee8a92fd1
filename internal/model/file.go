package model

import "time"

// UploadedFile is the metadata row for a stored blob. Size, ContentType and
// Extension are derived from the blob when the row is created.
type UploadedFile struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	BlobKey      string    `json:"blob_key"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	Extension    string    `json:"extension"`
	Slug         string    `json:"slug"`
	CreatedAt    time.Time `json:"created_at"`
}
