// votergridd is the HTTP daemon serving the extraction pipeline to the
// calibration frontend.
//
// Configuration is taken from the environment (a .env file is loaded
// when present):
//
//	VOTERGRID_ADDR            Listen address (default :5002)
//	VOTERGRID_UPLOAD_DIR      Upload directory (default uploads)
//	VOTERGRID_OUTPUT_DIR      Workbook directory (default outputs)
//	VOTERGRID_PROVIDERS       Path to the YAML cloud providers file
//	VOTERGRID_RETENTION_HOURS File retention in hours (default 24)
//	VOTERGRID_TASK_WORKERS    Concurrent background extractions (default 2)
//	VOTERGRID_CELL_WORKERS    Concurrent cell workers per extraction (default: CPUs)
//
// Usage:
//
//	votergridd
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/votergrid/votergrid/pkg/extract"
	"github.com/votergrid/votergrid/pkg/httpapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using system environment")
	}

	addr := envString("VOTERGRID_ADDR", ":5002")
	uploadDir := envString("VOTERGRID_UPLOAD_DIR", "uploads")
	outputDir := envString("VOTERGRID_OUTPUT_DIR", "outputs")
	retentionHours := envInt("VOTERGRID_RETENTION_HOURS", 24)
	taskWorkers := envInt("VOTERGRID_TASK_WORKERS", 2)
	cellWorkers := envInt("VOTERGRID_CELL_WORKERS", 0)

	ctx := context.Background()

	var providers extract.Providers
	if path := os.Getenv("VOTERGRID_PROVIDERS"); path != "" {
		pc, err := extract.LoadProvidersConfig(path)
		if err != nil {
			fatal(err)
		}
		var closeAll func()
		providers, closeAll, err = pc.Build(ctx)
		if err != nil {
			fatal(err)
		}
		defer closeAll()
		slog.Info("cloud providers configured", "vision", pc.Vision.Provider)
	} else {
		slog.Info("no providers file, running on text layer and local OCR")
	}

	server, err := httpapi.New(httpapi.Config{
		UploadDir:   uploadDir,
		OutputDir:   outputDir,
		Retention:   time.Duration(retentionHours) * time.Hour,
		TaskWorkers: taskWorkers,
		Providers:   providers,
		Options:     extract.Options{Workers: cellWorkers},
	})
	if err != nil {
		fatal(err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	server.Attach(r)

	slog.Info("votergridd listening", "addr", addr, "uploads", uploadDir, "outputs", outputDir)
	if err := http.ListenAndServe(addr, r); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment", "key", key, "value", v)
		return fallback
	}
	return n
}
