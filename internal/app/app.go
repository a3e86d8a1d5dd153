package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/quickdrop/internal/adapter/mdadapter"
	"github.com/jgivc/quickdrop/internal/config"
	httphandler "github.com/jgivc/quickdrop/internal/handler/http"
	repocounter "github.com/jgivc/quickdrop/internal/repository/counter"
	"github.com/jgivc/quickdrop/internal/service/counter"
	"github.com/jgivc/quickdrop/internal/service/files"
	"github.com/jgivc/quickdrop/internal/service/liveness"
	"github.com/jgivc/quickdrop/internal/service/network"
	"github.com/jgivc/quickdrop/internal/service/upload"
	"github.com/jgivc/quickdrop/internal/storage/folder"
	"github.com/mdp/qrterminal/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	connectTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second

	logFileMaxSizeMB  = 10
	logFileMaxBackups = 3
)

type counterRepository interface {
	counter.CounterRepository
	Close() error
}

type networkService interface {
	httphandler.NetworkService
	URLs(ctx context.Context) []string
}

type App struct {
	cfg      *config.Config
	srv      *http.Server
	addr     net.Addr
	monitor  *liveness.Monitor
	network  networkService
	counters counterRepository
	cancel   context.CancelFunc
	out      io.Writer
	log      *slog.Logger
}

func New(cfg *config.Config) *App {
	return &App{
		cfg: cfg,
		out: os.Stdout,
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	lo := &slog.HandlerOptions{}
	switch cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}

	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
		})
	}

	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, lo))
	}

	return slog.New(slog.NewTextHandler(w, lo))
}

func (a *App) newCounterRepository(ctx context.Context) (counterRepository, error) {
	if a.cfg.CounterConfig.Backend != config.CounterBackendRedis {
		return repocounter.NewMemoryRepository(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	return repocounter.NewRedisRepository(ctx, a.cfg.CounterConfig.RedisURL, a.log)
}

// Start wires the services and starts listening. It panics when the drop cannot be served.
func (a *App) Start() {
	if a.log == nil {
		a.log = newLogger(a.cfg)
	}
	log := a.log

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	repo, err := a.newCounterRepository(ctx)
	if err != nil {
		panic(err)
	}
	a.counters = repo

	sc := &a.cfg.StorageConfig
	store, err := folder.NewFolderStorage(sc.Dir, log)
	if err != nil {
		panic(err)
	}

	if _, err := store.SweepTemp(sc.StaleTempAge); err != nil {
		log.Error("Cannot sweep temp files", slog.Any("error", err))
	}

	counters := counter.NewCounterService(repo, log)
	filesSrv := files.NewFilesService(store, counters, mdadapter.NewRenderer(store), sc, log)
	uploadSrv := upload.NewUploadService(store, sc, log)
	a.network = network.NewNetworkService(a.cfg.Port(), log)
	a.monitor = liveness.NewMonitor(&a.cfg.LivenessConfig, log).WithSweeper(store, sc.StaleTempAge)

	api := http.NewServeMux()
	api.Handle("GET /api/ip", httphandler.NewIPHandler(a.network, log))
	api.Handle("GET /api/qr", httphandler.NewQRHandler(a.network, log))
	api.Handle("POST /api/upload", httphandler.NewUploadHandler(uploadSrv, log))
	api.Handle("POST /api/text", httphandler.NewTextHandler(uploadSrv, sc.MaxTextSize, log))
	api.Handle("GET /api/files", httphandler.NewListHandler(filesSrv, log))
	api.Handle("DELETE /api/files", httphandler.NewDeleteAllHandler(filesSrv, log))
	api.Handle("GET /api/files/{name}", httphandler.NewFileHandler(filesSrv, log))
	api.Handle("GET /api/files/{name}/text", httphandler.NewPreviewHandler(filesSrv, log))
	api.Handle("GET /api/files/{name}/html", httphandler.NewMarkdownHandler(filesSrv, log))
	api.Handle("DELETE /api/files/{name}", httphandler.NewDeleteHandler(filesSrv, log))
	api.Handle("GET /api/stats", httphandler.NewStatsHandler(filesSrv, log))
	api.Handle("POST /api/shutdown", httphandler.NewShutdownHandler(a.monitor, log))
	api.Handle("/api/", httphandler.NewNotFoundHandler(api, log))

	mux := http.NewServeMux()
	mux.Handle("/api/", api)

	if dir := a.cfg.HandlerConfig.StaticDir; dir != "" {
		log.Info("Serve web UI", slog.String("dir", dir))
		mux.Handle("/", httphandler.NewStaticHandler(dir, log))
	}

	var handler http.Handler = httphandler.Activity(a.monitor, log, mux)
	if a.cfg.HandlerConfig.CORS {
		handler = httphandler.CORS(handler)
	}
	handler = httphandler.Recover(log, httphandler.AccessLog(log, handler))

	ln, err := net.Listen("tcp", a.cfg.Listen)
	if err != nil {
		panic(fmt.Errorf("cannot listen on %s: %w", a.cfg.Listen, err))
	}

	a.addr = ln.Addr()
	a.srv = &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen), slog.String("dir", sc.Dir))

		if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()

	go a.monitor.Run(ctx)

	a.PrintBanner()
}

// Addr is the address the server actually listens on.
func (a *App) Addr() net.Addr {
	return a.addr
}

// PrintBanner writes the LAN URLs of the drop and a QR code of the first one.
func (a *App) PrintBanner() {
	urls := a.network.URLs(context.Background())
	if len(urls) == 0 {
		fmt.Fprintf(a.out, "QuickDrop is running on port %d, no LAN address found\n", a.cfg.Port())

		return
	}

	fmt.Fprintln(a.out, "QuickDrop is running:")
	for _, u := range urls {
		fmt.Fprintf(a.out, "  %s\n", u)
	}

	if a.cfg.ShowQR {
		fmt.Fprintln(a.out, "\nScan to open on your phone:")
		qrterminal.GenerateWithConfig(urls[0], qrterminal.Config{
			Level:     qrterminal.M,
			Writer:    a.out,
			BlackChar: qrterminal.BLACK,
			WhiteChar: qrterminal.WHITE,
			QuietZone: 1,
		})
	}
}

// Done is closed when the drop decided to stop: idle, remote request or Shutdown.
func (a *App) Done() <-chan struct{} {
	return a.monitor.Done()
}

func (a *App) Shutdown(reason liveness.Reason) {
	a.monitor.RequestShutdown(reason)
}

// Stop waits for the shutdown response to reach the client and stops the server.
func (a *App) Stop() {
	if a.monitor.Reason() == liveness.ReasonRequest {
		time.Sleep(a.cfg.LivenessConfig.ShutdownGrace)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Error("Cannot shutdown server", slog.Any("error", err))
	}

	a.cancel()

	if err := a.counters.Close(); err != nil {
		a.log.Error("Cannot close counters", slog.Any("error", err))
	}

	a.log.Info("Server stopped", slog.String("reason", string(a.monitor.Reason())))
}
