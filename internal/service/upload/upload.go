package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jgivc/quickdrop/internal/adapter/fsadapter"
	"github.com/jgivc/quickdrop/internal/common"
	"github.com/jgivc/quickdrop/internal/config"
	"github.com/jgivc/quickdrop/internal/entity"
	"github.com/jgivc/quickdrop/internal/util"
	"github.com/spf13/afero"
)

const (
	serviceName = "upload"

	reasonTooLarge   = "File too large"
	reasonCannotSave = "Cannot save file"
)

// IncomingFile is one file part of an upload batch.
type IncomingFile struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Source yields the files of an upload batch. Next returns io.EOF after the last file.
type Source interface {
	Next() (*IncomingFile, error)
}

type UploadStorage interface {
	CreateTemp() (afero.File, string, error)
	Discard(tmpName string)
	Commit(tmpName, desired string) (*entity.Entry, error)
	WriteNew(desired string, r io.Reader) (*entity.Entry, error)
	Remove(name string) error
}

type uploadService struct {
	store UploadStorage
	cfg   *config.StorageConfig
	now   func() time.Time
	log   *slog.Logger
}

func NewUploadService(store UploadStorage, cfg *config.StorageConfig, log *slog.Logger) *uploadService {
	return &uploadService{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		log:   log.With(slog.String("service", serviceName)),
	}
}

/*
Upload persists every file of the batch under a unique name.
A file over the size limit is rejected on its own and the batch goes on.
A batch level error (too many files, malformed stream, cancelled request)
removes the files the batch already stored.
*/
func (u *uploadService) Upload(ctx context.Context, src Source) (*entity.UploadResult, error) {
	result := &entity.UploadResult{
		Files: make([]entity.UploadedFile, 0),
	}

	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, u.rollback(result, err)
		}

		in, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			u.log.Error("Cannot read upload", slog.Any("error", err))

			return nil, u.rollback(result, common.NewValidationError("Malformed upload"))
		}

		count++
		if count > u.cfg.MaxFiles {
			return nil, u.rollback(result, common.NewValidationError("Too many files"))
		}

		uploaded, err := u.save(in)
		if err != nil {
			u.log.Error("Cannot save file", slog.String("name", in.Name), slog.Any("error", err))

			reason := reasonCannotSave
			if errors.Is(err, common.ErrFileTooLargeError) {
				reason = reasonTooLarge
			}

			result.Rejected = append(result.Rejected, entity.RejectedFile{Name: in.Name, Error: reason})

			continue
		}

		u.log.Info("File uploaded", slog.String("name", uploaded.Name), slog.Int64("size", uploaded.Size))
		result.Files = append(result.Files, *uploaded)
	}

	if count == 0 {
		return nil, common.NewValidationError("No files uploaded")
	}

	if len(result.Files) == 0 && allTooLarge(result.Rejected) {
		return result, common.ErrFileTooLargeError
	}

	return result, nil
}

// rollback removes the files stored so far and passes cause through.
func (u *uploadService) rollback(result *entity.UploadResult, cause error) error {
	for _, f := range result.Files {
		if err := u.store.Remove(f.Name); err != nil {
			u.log.Error("Cannot remove file of rejected batch", slog.String("name", f.Name), slog.Any("error", err))
		}
	}

	if len(result.Files) > 0 {
		u.log.Info("Upload batch rolled back", slog.Int("removed", len(result.Files)), slog.Any("cause", cause))
	}

	return cause
}

func allTooLarge(rejected []entity.RejectedFile) bool {
	for _, r := range rejected {
		if r.Error != reasonTooLarge {
			return false
		}
	}

	return len(rejected) > 0
}

func (u *uploadService) save(in *IncomingFile) (*entity.UploadedFile, error) {
	f, tmp, err := u.store.CreateTemp()
	if err != nil {
		return nil, err
	}

	// one extra byte tells an exact fit from an oversized file
	n, err := io.Copy(f, io.LimitReader(in.Body, u.cfg.MaxFileSize+1))
	closeErr := f.Close()

	switch {
	case err != nil:
		u.store.Discard(tmp)

		return nil, fmt.Errorf("cannot write %s: %w", in.Name, err)
	case n > u.cfg.MaxFileSize:
		u.store.Discard(tmp)

		return nil, fmt.Errorf("%s: %w", in.Name, common.ErrFileTooLargeError)
	case closeErr != nil:
		u.store.Discard(tmp)

		return nil, fmt.Errorf("cannot close %s: %w", in.Name, closeErr)
	}

	entry, err := u.store.Commit(tmp, in.Name)
	if err != nil {
		u.store.Discard(tmp)

		return nil, err
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = entry.ContentType
	}

	return &entity.UploadedFile{
		Name:        entry.Name,
		Size:        entry.Size,
		ContentType: contentType,
	}, nil
}

// SaveText stores text verbatim as a new note entry.
func (u *uploadService) SaveText(ctx context.Context, text string) (*entity.Entry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, common.NewValidationError("Text is empty")
	}

	if int64(len(text)) > u.cfg.MaxTextSize {
		return nil, common.NewValidationError("Text is too large")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := u.store.WriteNew(util.NoteName(u.now()), strings.NewReader(text))
	if err != nil {
		u.log.Error("Cannot save text note", slog.Any("error", err))

		return nil, fmt.Errorf("cannot save text note: %w", err)
	}

	entry.ContentType = fsadapter.MimeTypeText
	u.log.Info("Text note saved", slog.String("name", entry.Name))

	return entry, nil
}
