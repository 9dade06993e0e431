// Package httpapi exposes the extraction pipeline over HTTP for the
// calibration frontend.
//
// The flow mirrors how operators work: upload a roll PDF, store a
// calibration config against it, run extraction (synchronously for
// small rolls, as a background task for large ones), edit the returned
// records, regenerate the workbook, download it. Uploads and workbooks
// are held on disk under a retention window and pruned when space runs
// low.
//
// Key Features:
//
// - Multipart PDF upload with disk-space guard and emergency cleanup
// - Stored calibration configs referenced by ID
// - Synchronous and background extraction with task status polling
// - Workbook regeneration from edited records and delete-after-download
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/votergrid/votergrid/pkg/extract"
	"github.com/votergrid/votergrid/pkg/grid"
	"github.com/votergrid/votergrid/pkg/tasks"
)

const (
	// DefaultMaxUploadBytes caps a PDF upload. Scanned rolls run large.
	DefaultMaxUploadBytes = 500 * 1024 * 1024

	// DefaultRetention is how long uploads and workbooks are kept.
	DefaultRetention = 24 * time.Hour

	// lowDiskMB triggers aggressive cleanup; criticalDiskMB rejects
	// uploads outright.
	lowDiskMB      = 100.0
	criticalDiskMB = 50.0
)

// Config carries the server's tunables.
type Config struct {
	UploadDir      string
	OutputDir      string
	Retention      time.Duration
	MaxUploadBytes int64
	TaskWorkers    int

	// Extraction collaborators, passed through to every run.
	Providers extract.Providers
	Options   extract.Options
}

type uploadEntry struct {
	Path      string
	Filename  string
	Size      int64
	CreatedAt time.Time
}

// storedConfig is the calibration payload plus the upload it applies to.
type storedConfig struct {
	FileID string `json:"fileId"`
	grid.ExtractionConfig
}

type reportEntry struct {
	Path      string
	Records   int
	CreatedAt time.Time
}

// Server is the HTTP layer over the extraction pipeline. One instance
// serves one upload/output directory pair.
type Server struct {
	cfg   Config
	tasks *tasks.Manager

	// extractFn defaults to extract.Run.
	extractFn func(ctx context.Context, pdfData []byte, cfg *grid.ExtractionConfig) (*extract.Result, error)

	mu      sync.Mutex
	uploads map[string]*uploadEntry
	configs map[string]*storedConfig
	reports map[string]*reportEntry
}

// New creates the server and its working directories.
func New(cfg Config) (*Server, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.TaskWorkers <= 0 {
		cfg.TaskWorkers = 2
	}
	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if dir == "" {
			return nil, fmt.Errorf("upload and output directories are required")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	s := &Server{
		cfg:     cfg,
		tasks:   tasks.NewManager(cfg.TaskWorkers),
		uploads: make(map[string]*uploadEntry),
		configs: make(map[string]*storedConfig),
		reports: make(map[string]*reportEntry),
	}
	s.extractFn = func(ctx context.Context, pdfData []byte, c *grid.ExtractionConfig) (*extract.Result, error) {
		return extract.Run(ctx, pdfData, c, cfg.Providers, cfg.Options)
	}
	return s, nil
}

// Attach registers every route on the router.
func (s *Server) Attach(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Post("/api/upload-pdf", s.handleUploadPDF)
	r.Post("/api/configure-extraction", s.handleConfigureExtraction)
	r.Post("/api/extract-grid", s.handleExtractGrid)
	r.Post("/api/extract-grid-async", s.handleExtractGridAsync)
	r.Get("/api/task-status/{taskID}", s.handleTaskStatus)
	r.Post("/api/update-excel-data", s.handleUpdateExcelData)
	r.Get("/api/download-excel/{excelID}", s.handleDownloadExcel)
	r.Get("/api/disk-space", s.handleDiskSpace)
	r.Post("/api/cleanup-files", s.handleCleanupFiles)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	if code >= 500 {
		slog.Error("request failed", "status", code, "error", err)
	} else {
		slog.Warn("request rejected", "status", code, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}
