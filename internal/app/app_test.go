package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jgivc/quickdrop/internal/config"
	"github.com/jgivc/quickdrop/internal/service/liveness"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, modify ...func(cfg *config.Config)) (*App, string) {
	t.Helper()

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Listen = "127.0.0.1:0"
	cfg.ShowQR = false
	cfg.StorageConfig.Dir = filepath.Join(t.TempDir(), "uploads")
	cfg.LivenessConfig.ShutdownGrace = 10 * time.Millisecond

	for _, m := range modify {
		m(cfg)
	}

	a := New(cfg)
	a.out = io.Discard
	a.log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	a.Start()

	return a, "http://" + a.Addr().String()
}

func TestApp_EndToEnd(t *testing.T) {
	a, base := newTestApp(t)

	resp, err := http.Post(base+"/api/text", "application/json", strings.NewReader(`{"text":"hello"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	resp.Body.Close()

	resp, err = http.Get(base + "/api/files")
	require.NoError(t, err)

	var list struct {
		Files []struct {
			Name string `json:"name"`
		} `json:"files"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list.Files, 1)

	data, err := os.ReadFile(filepath.Join(a.cfg.StorageConfig.Dir, list.Files[0].Name))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	resp, err = http.Post(base+"/api/shutdown", "application/json", nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.JSONEq(t, `{"success":true,"message":"Server is shutting down"}`, string(body))

	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("shutdown was not requested")
	}

	resp, err = http.Get(base + "/api/files")
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()

	a.Stop()
	require.Equal(t, liveness.ReasonRequest, a.monitor.Reason())

	_, err = http.Get(base + "/api/files")
	require.Error(t, err)
}

func stopApp(a *App) {
	a.Shutdown(liveness.ReasonSignal)
	a.Stop()
}

func TestApp_JSONErrors(t *testing.T) {
	a, base := newTestApp(t)
	defer stopApp(a)

	testCases := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "unknown path", method: http.MethodGet, path: "/api/nope", wantStatus: http.StatusNotFound, wantBody: `{"error":"Not found"}`},
		{name: "wrong method", method: http.MethodPut, path: "/api/files", wantStatus: http.StatusMethodNotAllowed, wantBody: `{"error":"Method not allowed"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, base+tc.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, tc.wantStatus, resp.StatusCode)
			require.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
			require.JSONEq(t, tc.wantBody, string(body))
		})
	}
}

func TestApp_RejectedBatchLeavesNoFiles(t *testing.T) {
	a, base := newTestApp(t)
	defer stopApp(a)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i := 0; i < 21; i++ {
		fw, err := mw.CreateFormFile("files", fmt.Sprintf("part-%d.txt", i))
		require.NoError(t, err)
		_, err = fw.Write([]byte("x"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(base+"/api/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.JSONEq(t, `{"error":"Too many files"}`, string(body))

	entries, err := os.ReadDir(a.cfg.StorageConfig.Dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestApp_StreamingUploadOutlivesIdle(t *testing.T) {
	a, base := newTestApp(t, func(cfg *config.Config) {
		cfg.LivenessConfig.IdleTimeout = 200 * time.Millisecond
		cfg.LivenessConfig.CheckInterval = 20 * time.Millisecond
	})
	defer stopApp(a)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		fw, err := mw.CreateFormFile("files", "slow.bin")
		if err != nil {
			pw.CloseWithError(err)

			return
		}

		for i := 0; i < 10; i++ {
			if _, err := fw.Write([]byte("chunk")); err != nil {
				pw.CloseWithError(err)

				return
			}
			time.Sleep(60 * time.Millisecond)
		}

		pw.CloseWithError(mw.Close())
	}()

	resp, err := http.Post(base+"/api/upload", mw.FormDataContentType(), pr)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, a.monitor.ShuttingDown())

	data, err := os.ReadFile(filepath.Join(a.cfg.StorageConfig.Dir, "slow.bin"))
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("chunk", 10), string(data))

	require.Eventually(t, a.monitor.ShuttingDown, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, liveness.ReasonIdle, a.monitor.Reason())
}

func TestApp_Banner(t *testing.T) {
	a, _ := newTestApp(t)
	defer stopApp(a)

	var buf bytes.Buffer
	a.out = &buf
	a.cfg.ShowQR = true
	a.PrintBanner()

	require.Contains(t, buf.String(), "QuickDrop is running")
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError} {
		cfg := &config.Config{}
		cfg.SetDefaults()
		cfg.LogLevel = level
		cfg.LogFormat = config.LogFormatJSON
		cfg.LogFile = filepath.Join(t.TempDir(), "quickdrop.log")

		log := newLogger(cfg)
		log.Error("written")

		data, err := os.ReadFile(cfg.LogFile)
		require.NoError(t, err)
		require.Contains(t, string(data), `"msg":"written"`)
	}

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.LogLevel = "loud"
	require.Panics(t, func() { newLogger(cfg) })
}
