package bundler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DevServer serves a compiled bundle over HTTP during development, with a
// history-API fallback so client-side routes resolve to the app shell.
type DevServer struct {
	logger *zap.Logger
}

// NewDevServer creates a DevServer.
func NewDevServer(logger *zap.Logger) *DevServer {
	return &DevServer{logger: logger}
}

// Serve binds addr and serves dir until the context is cancelled.
// Requests for missing paths that accept HTML fall back to
// historyFallbackPath (relative to dir). A failed bind is returned
// immediately and not retried.
func (s *DevServer) Serve(ctx context.Context, addr, dir, historyFallbackPath string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind dev server on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler: HistoryFallbackHandler(dir, historyFallbackPath),
	}

	s.logger.Info("admin dev server listening",
		zap.String("addr", addr),
		zap.String("dir", dir))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// HistoryFallbackHandler serves static files from dir, rewriting requests
// for missing paths that accept HTML to fallbackPath.
func HistoryFallbackHandler(dir, fallbackPath string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(r.URL.Path, "/")))

		if info, err := os.Stat(requested); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		if acceptsHTML(r) {
			http.ServeFile(w, r, filepath.Join(dir, filepath.FromSlash(fallbackPath)))
			return
		}

		fileServer.ServeHTTP(w, r)
	})
}

// acceptsHTML reports whether the request prefers an HTML response.
func acceptsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*") || accept == ""
}
