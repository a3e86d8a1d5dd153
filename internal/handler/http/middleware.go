package httphandler

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/jgivc/quickdrop/internal/common"
)

const apiPrefix = "/api/"

type ActivityTracker interface {
	Begin()
	End()
	ShuttingDown() bool
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(status int) {
	if s.status == 0 {
		s.status = status
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}

	n, err := s.ResponseWriter.Write(p)
	s.bytes += int64(n)

	return n, err
}

// Unwrap lets http.ResponseController reach Flush of the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Activity refreshes the idle clock on every API request and keeps the tracker busy
// until the request is served. Once shutdown has started new API requests get 503.
func Activity(tracker ActivityTracker, log *slog.Logger, next http.Handler) http.Handler {
	log = log.With(slog.String("handler", "Activity"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, apiPrefix) {
			next.ServeHTTP(w, r)

			return
		}

		if tracker.ShuttingDown() {
			writeError(w, http.StatusServiceUnavailable, common.ErrShuttingDownError.Error(), log)

			return
		}

		tracker.Begin()
		defer tracker.End()

		next.ServeHTTP(w, r)
	})
}

func AccessLog(log *slog.Logger, next http.Handler) http.Handler {
	log = log.With(slog.String("handler", "AccessLog"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		log.Info("Request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int64("bytes", rec.bytes),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote", r.RemoteAddr),
		)
	})
}

// Recover turns a panic in a handler into a 500 so one bad request cannot take the listener down.
func Recover(log *slog.Logger, next http.Handler) http.Handler {
	log = log.With(slog.String("handler", "Recover"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}

			if rv == http.ErrAbortHandler {
				panic(rv)
			}

			log.Error("Handler panic",
				slog.String("path", r.URL.Path),
				slog.Any("error", rv),
				slog.String("stack", string(debug.Stack())),
			)
			writeError(w, http.StatusInternalServerError, "Internal server error", log)
		}()

		next.ServeHTTP(w, r)
	})
}

// CORS allows any origin, the drop is meant to be used from any device on the LAN.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Range")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition, Content-Length, Content-Range")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)

			return
		}

		next.ServeHTTP(w, r)
	})
}
