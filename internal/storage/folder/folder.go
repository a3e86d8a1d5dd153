package folder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/quickdrop/internal/adapter/fsadapter"
	"github.com/jgivc/quickdrop/internal/common"
	"github.com/jgivc/quickdrop/internal/entity"
	"github.com/spf13/afero"
)

const (
	// TempPrefix marks uploads in progress. Such files are never listed or served.
	TempPrefix = ".quickdrop-"
	tempSuffix = ".part"

	dirPerm  = 0o755
	filePerm = 0o644
)

type folderStorage struct {
	fs  afero.Fs
	dir string
	now func() time.Time
	log *slog.Logger
}

func NewFolderStorage(dir string, log *slog.Logger) (*folderStorage, error) {
	return NewFolderStorageWithFS(afero.NewOsFs(), dir, log)
}

func NewFolderStorageWithFS(fs afero.Fs, dir string, log *slog.Logger) (*folderStorage, error) {
	if err := fs.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("cannot create storage dir %s: %w", dir, err)
	}

	return &folderStorage{
		fs:  fs,
		dir: dir,
		now: time.Now,
		log: log.With(slog.String("item", "FolderStorage")),
	}, nil
}

func (s *folderStorage) Dir() string {
	return s.dir
}

func IsTemp(name string) bool {
	return strings.HasPrefix(name, TempPrefix)
}

// validName reports whether name may address an entry.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}

	return !IsTemp(name)
}

func (s *folderStorage) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *folderStorage) toEntry(info os.FileInfo) *entity.Entry {
	return &entity.Entry{
		Name:        info.Name(),
		Size:        info.Size(),
		ModifiedAt:  info.ModTime(),
		ContentType: fsadapter.ContentType(info.Name()),
	}
}

// regular follows a symlink and reports whether the entry is a regular file.
func (s *folderStorage) regular(info os.FileInfo) (os.FileInfo, bool) {
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := s.fs.Stat(s.path(info.Name()))
		if err != nil {
			return nil, false
		}

		info = target
	}

	return info, info.Mode().IsRegular()
}

// List reads the directory on every call. Entries are sorted newest first.
func (s *folderStorage) List(ctx context.Context) ([]*entity.Entry, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read dir %s: %w", s.dir, err)
	}

	entries := make([]*entity.Entry, 0, len(infos))
	for _, info := range infos {
		if IsTemp(info.Name()) {
			continue
		}

		info, ok := s.regular(info)
		if !ok {
			continue
		}

		entries = append(entries, s.toEntry(info))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].ModifiedAt.Equal(entries[j].ModifiedAt) {
			return entries[i].ModifiedAt.After(entries[j].ModifiedAt)
		}

		return entries[i].Name < entries[j].Name
	})

	return entries, ctx.Err()
}

func (s *folderStorage) Stat(name string) (*entity.Entry, error) {
	if !validName(name) {
		return nil, common.ErrFileNotFoundError
	}

	info, err := s.fs.Stat(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.ErrFileNotFoundError
		}

		return nil, fmt.Errorf("cannot stat %s: %w", name, err)
	}

	if !info.Mode().IsRegular() {
		return nil, common.ErrFileNotFoundError
	}

	entry := s.toEntry(info)
	entry.Name = name

	return entry, nil
}

func (s *folderStorage) Exists(name string) bool {
	_, err := s.Stat(name)

	return err == nil
}

// Open returns the entry content. The caller closes the file.
func (s *folderStorage) Open(name string) (afero.File, *entity.Entry, error) {
	entry, err := s.Stat(name)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.fs.Open(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, common.ErrFileNotFoundError
		}

		return nil, nil, fmt.Errorf("cannot open %s: %w", name, err)
	}

	return f, entry, nil
}

func (s *folderStorage) Remove(name string) error {
	if _, err := s.Stat(name); err != nil {
		return err
	}

	if err := s.fs.Remove(s.path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return common.ErrFileNotFoundError
		}

		return fmt.Errorf("cannot remove %s: %w", name, err)
	}

	return nil
}

/*
RemoveAll removes every listed entry and keeps going on failure.
Entries that vanished in the meantime are skipped and not counted.
The returned error joins all other failures.
*/
func (s *folderStorage) RemoveAll(ctx context.Context) (int, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	var (
		removed int
		errs    []error
	)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)

			break
		}

		if err := s.fs.Remove(s.path(entry.Name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			s.log.Error("Cannot remove entry", slog.String("name", entry.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("cannot remove %s: %w", entry.Name, err))

			continue
		}

		removed++
	}

	return removed, errors.Join(errs...)
}

// CreateTemp opens a new hidden file for an upload in progress.
func (s *folderStorage) CreateTemp() (afero.File, string, error) {
	name := TempPrefix + uuid.NewString() + tempSuffix

	f, err := s.fs.OpenFile(s.path(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return nil, "", fmt.Errorf("cannot create temp file: %w", err)
	}

	return f, name, nil
}

func (s *folderStorage) Discard(tmpName string) {
	if err := s.fs.Remove(s.path(tmpName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Error("Cannot remove temp file", slog.String("name", tmpName), slog.Any("error", err))
	}
}

// Commit publishes a finished temp file under a unique name derived from desired.
func (s *folderStorage) Commit(tmpName, desired string) (*entity.Entry, error) {
	f, name, err := s.CreateExclusive(desired)
	if err != nil {
		return nil, err
	}

	if err := f.Close(); err != nil {
		s.log.Error("Cannot close placeholder", slog.String("name", name), slog.Any("error", err))
	}

	// The placeholder holds the name, rename replaces it with the content.
	if err := s.fs.Rename(s.path(tmpName), s.path(name)); err != nil {
		_ = s.fs.Remove(s.path(name))

		return nil, fmt.Errorf("cannot publish %s: %w", name, err)
	}

	return s.Stat(name)
}

// WriteNew stores r under a unique name derived from desired.
func (s *folderStorage) WriteNew(desired string, r io.Reader) (*entity.Entry, error) {
	f, name, err := s.CreateExclusive(desired)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(s.path(name))

		return nil, fmt.Errorf("cannot write %s: %w", name, err)
	}

	if err := f.Close(); err != nil {
		_ = s.fs.Remove(s.path(name))

		return nil, fmt.Errorf("cannot close %s: %w", name, err)
	}

	return s.Stat(name)
}

// SweepTemp removes temp files left by aborted uploads that are older than maxAge.
func (s *folderStorage) SweepTemp(maxAge time.Duration) (int, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return 0, fmt.Errorf("cannot read dir %s: %w", s.dir, err)
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0

	for _, info := range infos {
		if info.IsDir() || !IsTemp(info.Name()) || info.ModTime().After(cutoff) {
			continue
		}

		if err := s.fs.Remove(s.path(info.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Error("Cannot remove stale temp file", slog.String("name", info.Name()), slog.Any("error", err))

			continue
		}

		removed++
	}

	if removed > 0 {
		s.log.Info("Removed stale temp files", slog.Int("count", removed))
	}

	return removed, nil
}
