// Command mockfeed serves hazard feed fixtures over HTTP so the service can
// be run locally without reaching livetraffic.com.
//
// Usage:
//
//	go run ./cmd/mockfeed -dir data/mock -addr :8081
//	FEED_BASE_URL=http://localhost:8081/traffic/hazards go run ./cmd/nswfeed
//
// GET /traffic/hazards/<hazard>.json returns <dir>/<hazard>.json.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mockfeed failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8081", "listen address")
	dir := flag.String("dir", filepath.Join("data", "mock"), "directory containing <hazard>.json fixtures")
	flag.Parse()

	info, err := os.Stat(*dir)
	if err != nil {
		return fmt.Errorf("fixture dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("fixture dir %s is not a directory", *dir)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newHandler(*dir),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("mock feed listening", "addr", *addr, "dir", *dir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newHandler(dir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /traffic/hazards/{file}", func(w http.ResponseWriter, r *http.Request) {
		file := r.PathValue("file")
		if !strings.HasSuffix(file, ".json") || strings.ContainsAny(file, `/\`) {
			http.NotFound(w, r)
			return
		}
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			slog.Warn("fixture not found", "file", file)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})
	return mux
}
