package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/fileflow/internal/model"
)

type FileStore struct {
	db *sql.DB
}

func NewFileStore(db *sql.DB) *FileStore {
	return &FileStore{db: db}
}

func scanFile(scanner interface{ Scan(...any) error }) (*model.UploadedFile, error) {
	var f model.UploadedFile
	err := scanner.Scan(
		&f.ID, &f.UserID, &f.BlobKey, &f.OriginalName, &f.Size,
		&f.ContentType, &f.Extension, &f.Slug, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const fileCols = `id, user_id, blob_key, original_name, size, content_type, extension, slug, created_at`

// Create inserts a file row. A slug collision returns ErrDuplicate.
func (s *FileStore) Create(f *model.UploadedFile) (*model.UploadedFile, error) {
	result, err := s.db.Exec(
		`INSERT INTO uploaded_files (user_id, blob_key, original_name, size, content_type, extension, slug)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.UserID, f.BlobKey, f.OriginalName, f.Size, f.ContentType, f.Extension, f.Slug,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert file: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert file: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *FileStore) GetByID(id int64) (*model.UploadedFile, error) {
	row := s.db.QueryRow(`SELECT `+fileCols+` FROM uploaded_files WHERE id = ?`, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

func (s *FileStore) GetBySlug(slug string) (*model.UploadedFile, error) {
	row := s.db.QueryRow(`SELECT `+fileCols+` FROM uploaded_files WHERE slug = ?`, slug)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file by slug: %w", err)
	}
	return f, nil
}

// ListByUser returns the user's files, newest first.
func (s *FileStore) ListByUser(userID int64) ([]model.UploadedFile, error) {
	rows, err := s.db.Query(
		`SELECT `+fileCols+` FROM uploaded_files WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []model.UploadedFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

// ListIncomplete returns rows with a missing size, content type or extension.
func (s *FileStore) ListIncomplete() ([]model.UploadedFile, error) {
	rows, err := s.db.Query(
		`SELECT ` + fileCols + ` FROM uploaded_files
		 WHERE size = 0 OR content_type = '' OR extension = ''
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list incomplete files: %w", err)
	}
	defer rows.Close()

	var files []model.UploadedFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

// UpdateMetadata overwrites the derived fields of a file row.
func (s *FileStore) UpdateMetadata(id int64, size int64, contentType, extension string) error {
	_, err := s.db.Exec(
		`UPDATE uploaded_files SET size = ?, content_type = ?, extension = ? WHERE id = ?`,
		size, contentType, extension, id,
	)
	if err != nil {
		return fmt.Errorf("update file metadata: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM uploaded_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
