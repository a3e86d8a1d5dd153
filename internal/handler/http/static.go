package httphandler

import (
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/spf13/afero"
)

func NewStaticHandler(dir string, log *slog.Logger) http.Handler {
	return NewStaticHandlerWithFS(afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), dir)), log)
}

// NewStaticHandlerWithFS serves the web UI from fs. Unknown paths get index.html so
// client side routes survive a reload.
func NewStaticHandlerWithFS(fs afero.Fs, log *slog.Logger) http.Handler {
	log = log.With(slog.String("handler", "StaticHandler"))
	fileServer := http.FileServer(afero.NewHttpFs(fs))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, apiPrefix) {
			writeError(w, http.StatusNotFound, "Not found", log)

			return
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)

			return
		}

		if _, err := fs.Stat(path.Clean("/" + r.URL.Path)); err != nil {
			r = r.Clone(r.Context())
			r.URL.Path = "/"
		}

		fileServer.ServeHTTP(w, r)
	})
}
