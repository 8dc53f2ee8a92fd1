// Package upload runs the file pipeline: quota check, metadata, slug, blob
// write and record insert, plus the access-checked read and delete paths.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/dukerupert/fileflow/internal/access"
	"github.com/dukerupert/fileflow/internal/blob"
	"github.com/dukerupert/fileflow/internal/fileinfo"
	"github.com/dukerupert/fileflow/internal/model"
	"github.com/dukerupert/fileflow/internal/slug"
)

var (
	ErrNoFile    = errors.New("no file selected")
	ErrNotFound  = errors.New("file not found")
	ErrForbidden = errors.New("file belongs to another user")
)

// FileRepository persists file rows.
type FileRepository interface {
	Create(f *model.UploadedFile) (*model.UploadedFile, error)
	GetBySlug(slug string) (*model.UploadedFile, error)
	ListByUser(userID int64) ([]model.UploadedFile, error)
	ListIncomplete() ([]model.UploadedFile, error)
	UpdateMetadata(id int64, size int64, contentType, extension string) error
	Delete(id int64) error
}

// QuotaChecker rejects uploads over the user's limit.
type QuotaChecker interface {
	CheckUpload(user *model.User, size int64) error
}

// Input is a single file submitted by a user.
type Input struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

type Service struct {
	files  FileRepository
	blobs  blob.Store
	quota  QuotaChecker
	policy access.Policy
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(files FileRepository, blobs blob.Store, quota QuotaChecker, policy access.Policy, logger *slog.Logger) *Service {
	return &Service{
		files:  files,
		blobs:  blobs,
		quota:  quota,
		policy: policy,
		logger: logger,
		now:    time.Now,
		newID:  slug.New,
	}
}

// Upload stores in for user. Quota errors from the checker are returned
// unchanged and leave no blob or row behind.
func (s *Service) Upload(ctx context.Context, user *model.User, in Input) (*model.UploadedFile, error) {
	if in.Body == nil || in.Name == "" {
		return nil, ErrNoFile
	}
	if err := s.quota.CheckUpload(user, in.Size); err != nil {
		return nil, err
	}

	name := path.Base(strings.ReplaceAll(in.Name, `\`, "/"))
	info := fileinfo.Resolve(name, in.Size, in.ContentType)
	id := s.newID()
	key := blob.Key(s.now(), id, info.Extension)

	if err := s.blobs.Put(ctx, key, in.Body, in.Size, info.ContentType); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	f, err := s.files.Create(&model.UploadedFile{
		UserID:       user.ID,
		BlobKey:      key,
		OriginalName: name,
		Size:         info.Size,
		ContentType:  info.ContentType,
		Extension:    info.Extension,
		Slug:         id,
	})
	if err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil && !errors.Is(derr, blob.ErrNotFound) {
			s.logger.Error("remove orphaned blob", "key", key, "error", derr)
		}
		return nil, fmt.Errorf("create file record: %w", err)
	}

	s.logger.Info("file uploaded", "user_id", user.ID, "slug", f.Slug, "size", f.Size, "content_type", f.ContentType)
	return f, nil
}

// List returns the user's files, newest first.
func (s *Service) List(user *model.User) ([]model.UploadedFile, error) {
	files, err := s.files.ListByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// Get returns the file behind slug if user may access it.
func (s *Service) Get(user *model.User, fileSlug string) (*model.UploadedFile, error) {
	f, err := s.files.GetBySlug(fileSlug)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if f == nil {
		return nil, ErrNotFound
	}
	if !s.policy.CanAccess(user, f) {
		return nil, ErrForbidden
	}
	return f, nil
}

// Open returns the file record and its content. ErrNotFound covers both a
// missing row and a missing blob.
func (s *Service) Open(ctx context.Context, user *model.User, fileSlug string) (*model.UploadedFile, io.ReadCloser, error) {
	f, err := s.Get(user, fileSlug)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, f.BlobKey)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}
	return f, rc, nil
}

// Delete removes the blob and then the record. A missing blob is ErrNotFound
// and leaves the record in place.
func (s *Service) Delete(ctx context.Context, user *model.User, fileSlug string) error {
	f, err := s.Get(user, fileSlug)
	if err != nil {
		return err
	}
	ok, err := blob.Exists(ctx, s.blobs, f.BlobKey)
	if err != nil {
		return fmt.Errorf("check blob: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := s.blobs.Delete(ctx, f.BlobKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := s.files.Delete(f.ID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	s.logger.Info("file deleted", "user_id", user.ID, "slug", f.Slug)
	return nil
}

// BackfillResult counts the outcome of a Backfill run.
type BackfillResult struct {
	Updated int
	Missing int
}

// Backfill recomputes size, content type and extension for rows that lack
// them, reading sizes from storage.
func (s *Service) Backfill(ctx context.Context) (BackfillResult, error) {
	var res BackfillResult
	files, err := s.files.ListIncomplete()
	if err != nil {
		return res, fmt.Errorf("list incomplete files: %w", err)
	}
	for _, f := range files {
		obj, err := s.blobs.Stat(ctx, f.BlobKey)
		if errors.Is(err, blob.ErrNotFound) {
			s.logger.Warn("blob missing during backfill", "slug", f.Slug, "key", f.BlobKey)
			res.Missing++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("stat blob %s: %w", f.BlobKey, err)
		}

		name := f.OriginalName
		if name == "" {
			name = path.Base(f.BlobKey)
		}
		declared := f.ContentType
		if declared == "" {
			declared = obj.ContentType
		}
		info := fileinfo.Resolve(name, obj.Size, declared)
		if err := s.files.UpdateMetadata(f.ID, info.Size, info.ContentType, info.Extension); err != nil {
			return res, fmt.Errorf("update file %d: %w", f.ID, err)
		}
		res.Updated++
	}
	return res, nil
}
