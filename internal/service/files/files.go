package files

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"

	"github.com/jgivc/quickdrop/internal/adapter/fsadapter"
	"github.com/jgivc/quickdrop/internal/common"
	"github.com/jgivc/quickdrop/internal/config"
	"github.com/jgivc/quickdrop/internal/entity"
	"github.com/spf13/afero"
)

const (
	serviceName = "files"

	// PreviewPlaceholder replaces the content of entries over the preview limit.
	PreviewPlaceholder = "[File too large to preview — download it instead]"
)

type FileStorage interface {
	List(ctx context.Context) ([]*entity.Entry, error)
	Open(name string) (afero.File, *entity.Entry, error)
	Remove(name string) error
	RemoveAll(ctx context.Context) (int, error)
}

type CounterService interface {
	Inc(ctx context.Context, name string) int64
	Counters(ctx context.Context) (map[string]int64, error)
	Reset(ctx context.Context, name string)
	Clear(ctx context.Context)
}

type MarkdownRenderer interface {
	Render(src []byte) (string, map[string]any, error)
}

type filesService struct {
	store    FileStorage
	counters CounterService
	md       MarkdownRenderer
	cfg      *config.StorageConfig
	log      *slog.Logger
}

func NewFilesService(store FileStorage, counters CounterService, md MarkdownRenderer, cfg *config.StorageConfig, log *slog.Logger) *filesService {
	return &filesService{
		store:    store,
		counters: counters,
		md:       md,
		cfg:      cfg,
		log:      log.With(slog.String("service", serviceName)),
	}
}

// List never fails. An unreadable directory yields an empty list.
func (f *filesService) List(ctx context.Context) []*entity.Entry {
	entries, err := f.store.List(ctx)
	if err != nil {
		f.log.Error("Cannot list files", slog.Any("error", fmt.Errorf("%w: %w", common.ErrDegradedReadError, err)))

		return make([]*entity.Entry, 0)
	}

	counters, err := f.counters.Counters(ctx)
	if err != nil {
		return entries
	}

	for _, e := range entries {
		e.Downloads = counters[e.Name]
	}

	return entries
}

// Open returns the entry content for streaming. The caller closes the file.
func (f *filesService) Open(ctx context.Context, name string) (afero.File, *entity.Entry, error) {
	file, entry, err := f.store.Open(name)
	if err != nil {
		if !errors.Is(err, common.ErrFileNotFoundError) {
			f.log.Error("Cannot open file", slog.String("name", name), slog.Any("error", err))
		}

		return nil, nil, err
	}

	if entry.ContentType == fsadapter.MimeTypeUnknown {
		sniffed, err := fsadapter.Sniff(file)
		if err != nil {
			_ = file.Close()
			f.log.Error("Cannot sniff content type", slog.String("name", name), slog.Any("error", err))

			return nil, nil, fmt.Errorf("cannot read %s: %w", name, err)
		}

		entry.ContentType = sniffed
	}

	if err := ctx.Err(); err != nil {
		_ = file.Close()

		return nil, nil, err
	}

	return file, entry, nil
}

func (f *filesService) CountDownload(ctx context.Context, name string) int64 {
	return f.counters.Inc(ctx, name)
}

func (f *filesService) Counters(ctx context.Context) (map[string]int64, error) {
	return f.counters.Counters(ctx)
}

// readPreview returns nil content when the entry is over the preview limit.
func (f *filesService) readPreview(name string) ([]byte, error) {
	file, entry, err := f.store.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if entry.Size > f.cfg.PreviewLimit {
		return nil, nil
	}

	// the file may grow between stat and read
	data, err := io.ReadAll(io.LimitReader(file, f.cfg.PreviewLimit+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", name, err)
	}

	if int64(len(data)) > f.cfg.PreviewLimit {
		return nil, nil
	}

	return data, nil
}

// Preview returns the entry content as text. Invalid UTF-8 is passed through.
func (f *filesService) Preview(ctx context.Context, name string) (*entity.Preview, error) {
	data, err := f.readPreview(name)
	if err != nil {
		if !errors.Is(err, common.ErrFileNotFoundError) {
			f.log.Error("Cannot preview file", slog.String("name", name), slog.Any("error", err))
		}

		return nil, err
	}

	if data == nil {
		return &entity.Preview{Content: PreviewPlaceholder, Truncated: true}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &entity.Preview{Content: string(data)}, nil
}

func (f *filesService) PreviewMarkdown(ctx context.Context, name string) (*entity.MarkdownPreview, error) {
	data, err := f.readPreview(name)
	if err != nil {
		if !errors.Is(err, common.ErrFileNotFoundError) {
			f.log.Error("Cannot preview file", slog.String("name", name), slog.Any("error", err))
		}

		return nil, err
	}

	if data == nil {
		return &entity.MarkdownPreview{
			HTML:      "<p>" + html.EscapeString(PreviewPlaceholder) + "</p>",
			Truncated: true,
		}, nil
	}

	out, meta, err := f.md.Render(data)
	if err != nil {
		f.log.Error("Cannot render markdown", slog.String("name", name), slog.Any("error", err))

		return nil, fmt.Errorf("cannot render %s: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &entity.MarkdownPreview{HTML: out, Meta: meta}, nil
}

func (f *filesService) Delete(ctx context.Context, name string) error {
	if err := f.store.Remove(name); err != nil {
		if !errors.Is(err, common.ErrFileNotFoundError) {
			f.log.Error("Cannot delete file", slog.String("name", name), slog.Any("error", err))
		}

		return err
	}

	f.counters.Reset(ctx, name)
	f.log.Info("File deleted", slog.String("name", name))

	return nil
}

// DeleteAll is best effort. It returns how many entries were removed together with the joined failures.
func (f *filesService) DeleteAll(ctx context.Context) (int, error) {
	removed, err := f.store.RemoveAll(ctx)
	f.counters.Clear(ctx)

	if err != nil {
		f.log.Error("Cannot delete all files", slog.Int("deleted", removed), slog.Any("error", err))

		return removed, fmt.Errorf("cannot delete all files: %w", err)
	}

	f.log.Info("All files deleted", slog.Int("deleted", removed))

	return removed, nil
}
