package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/jgivc/quickdrop/internal/adapter/fsadapter"
	"github.com/jgivc/quickdrop/internal/common"
	"github.com/jgivc/quickdrop/internal/entity"
	"github.com/jgivc/quickdrop/internal/service/liveness"
	"github.com/jgivc/quickdrop/internal/service/upload"
	"github.com/spf13/afero"
)

const (
	uploadFieldName = "files"

	// room for the JSON envelope around the note text
	textEnvelopeSize = 4 << 10
)

type NetworkService interface {
	Info(ctx context.Context) *entity.ServerInfo
	QR(ctx context.Context, address string) ([]byte, error)
}

type UploadService interface {
	Upload(ctx context.Context, src upload.Source) (*entity.UploadResult, error)
	SaveText(ctx context.Context, text string) (*entity.Entry, error)
}

type FilesService interface {
	List(ctx context.Context) []*entity.Entry
	Open(ctx context.Context, name string) (afero.File, *entity.Entry, error)
	CountDownload(ctx context.Context, name string) int64
	Counters(ctx context.Context) (map[string]int64, error)
	Preview(ctx context.Context, name string) (*entity.Preview, error)
	PreviewMarkdown(ctx context.Context, name string) (*entity.MarkdownPreview, error)
	Delete(ctx context.Context, name string) error
	DeleteAll(ctx context.Context) (int, error)
}

type ShutdownRequester interface {
	RequestShutdown(reason liveness.Reason)
}

type errorResponse struct {
	Error   string `json:"error"`
	Deleted *int   `json:"deleted,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Deleted *int   `json:"deleted,omitempty"`
}

type filesResponse struct {
	Files []*entity.Entry `json:"files"`
}

type fileResponse struct {
	File *entity.Entry `json:"file"`
}

type statsResponse struct {
	Counters map[string]int64 `json:"counters"`
}

type textRequest struct {
	Text string `json:"text"`
}

func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Cannot write response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, log *slog.Logger) {
	writeJSON(w, status, &errorResponse{Error: msg}, log)
}

// writeServiceError maps service errors to status codes.
func writeServiceError(w http.ResponseWriter, err error, log *slog.Logger) {
	var verr *common.ValidationError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Msg, log)
	case errors.Is(err, common.ErrValidationError):
		writeError(w, http.StatusBadRequest, "Bad request", log)
	case errors.Is(err, common.ErrFileNotFoundError):
		writeError(w, http.StatusNotFound, "File not found", log)
	case errors.Is(err, common.ErrAddressNotFoundError):
		writeError(w, http.StatusNotFound, "Address not found", log)
	case errors.Is(err, common.ErrFileTooLargeError):
		writeError(w, http.StatusRequestEntityTooLarge, "File too large", log)
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", log)
	}
}

func NewIPHandler(srv NetworkService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "IPHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, srv.Info(r.Context()), log)
	}
}

func NewQRHandler(srv NetworkService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "QRHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		png, err := srv.QR(r.Context(), r.URL.Query().Get("address"))
		if err != nil {
			writeServiceError(w, err, log)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(png)
	}
}

func NewUploadHandler(srv UploadService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "UploadHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Expected multipart form", log)

			return
		}

		result, err := srv.Upload(r.Context(), newMultipartSource(mr, uploadFieldName))
		if err != nil {
			writeServiceError(w, err, log)

			return
		}

		writeJSON(w, http.StatusOK, result, log)
	}
}

func NewTextHandler(srv UploadService, maxTextSize int64, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "TextHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxTextSize+textEnvelopeSize)

		var req textRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeError(w, http.StatusBadRequest, "Text is too large", log)

				return
			}

			writeError(w, http.StatusBadRequest, "Invalid JSON", log)

			return
		}

		entry, err := srv.SaveText(r.Context(), req.Text)
		if err != nil {
			writeServiceError(w, err, log)

			return
		}

		writeJSON(w, http.StatusCreated, &fileResponse{File: entry}, log)
	}
}

func NewListHandler(srv FilesService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ListHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &filesResponse{Files: srv.List(r.Context())}, log)
	}
}

// contentDisposition quotes name as RFC 6266 requires, non-ASCII names get the filename* form.
func contentDisposition(disposition, name string) string {
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": name}); v != "" {
		return v
	}

	return disposition
}

// countable reports whether a request starts a new download rather than continuing one.
// HEAD only looks at the headers.
func countable(r *http.Request) bool {
	if r.Method == http.MethodHead {
		return false
	}

	rng := r.Header.Get("Range")

	return rng == "" || strings.HasPrefix(rng, "bytes=0-")
}

func NewFileHandler(srv FilesService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "FileHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		f, entry, err := srv.Open(r.Context(), name)
		if err != nil {
			writeServiceError(w, err, log)

			return
		}
		defer f.Close()

		disposition := "inline"
		if r.URL.Query().Has("download") {
			disposition = "attachment"
		}

		w.Header().Set("Content-Type", fsadapter.HeaderType(entry.ContentType))
		w.Header().Set("Content-Disposition", contentDisposition(disposition, entry.Name))
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if countable(r) {
			srv.CountDownload(r.Context(), entry.Name)
		}

		http.ServeContent(w, r, entry.Name, entry.ModifiedAt, f)
	}
}

func NewPreviewHandler(srv FilesService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "PreviewHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		p, err := srv.Preview(r.Context(), r.PathValue("name"))
		if err != nil {
			writeServiceError(w, err, log)

			return
		}

		writeJSON(w, http.StatusOK, p, log)
	}
}

func NewMarkdownHandler(srv FilesService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "MarkdownHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		p, err := srv.PreviewMarkdown(r.Context(), r.PathValue("name"))
		if err != nil {
			writeServiceError(w, err, log)

			return
		}

		writeJSON(w, http.StatusOK, p, log)
	}
}

func NewDeleteHandler(srv FilesService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DeleteHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		if err := srv.Delete(r.Context(), r.PathValue("name")); err != nil {
			writeServiceError(w, err, log)

			return
		}

		writeJSON(w, http.StatusOK, &successResponse{Success: true}, log)
	}
}

func NewDeleteAllHandler(srv FilesService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DeleteAllHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := srv.DeleteAll(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, &errorResponse{Error: "Cannot delete all files", Deleted: &deleted}, log)

			return
		}

		writeJSON(w, http.StatusOK, &successResponse{Success: true, Deleted: &deleted}, log)
	}
}

func NewStatsHandler(srv FilesService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StatsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		counters, err := srv.Counters(r.Context())
		if err != nil {
			writeServiceError(w, err, log)

			return
		}

		writeJSON(w, http.StatusOK, &statsResponse{Counters: counters}, log)
	}
}

var apiMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete}

/*
NewNotFoundHandler answers API requests no route of mux matched, so they get
a JSON body too. A path mux serves under other methods gets 405 with Allow.
It is meant to be registered on mux itself under the API prefix.
*/
func NewNotFoundHandler(mux *http.ServeMux, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "NotFoundHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var allow []string
		for _, method := range apiMethods {
			alt := r.Clone(r.Context())
			alt.Method = method

			if _, pattern := mux.Handler(alt); pattern != "" && pattern != apiPrefix {
				allow = append(allow, method)
			}
		}

		if len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed", log)

			return
		}

		writeError(w, http.StatusNotFound, "Not found", log)
	}
}

// NewShutdownHandler answers first and only then asks the monitor to stop the server.
func NewShutdownHandler(mon ShutdownRequester, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ShutdownHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &successResponse{Success: true, Message: "Server is shutting down"}, log)

		if err := http.NewResponseController(w).Flush(); err != nil {
			log.Debug("Cannot flush response", slog.Any("error", err))
		}

		mon.RequestShutdown(liveness.ReasonRequest)
	}
}
