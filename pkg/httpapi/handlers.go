package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/votergrid/votergrid/pkg/extract"
	"github.com/votergrid/votergrid/pkg/grid"
	"github.com/votergrid/votergrid/pkg/report"
	"github.com/votergrid/votergrid/pkg/tasks"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"message": "extraction service running",
	}
	if free, ok := diskFreeMB(s.cfg.UploadDir); ok {
		resp["disk_space_mb"] = roundMB(free)
		if free < lowDiskMB {
			resp["warning"] = fmt.Sprintf("low disk space: %.1f MB available", free)
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	// A full disk mid-save corrupts the upload, so reclaim space first.
	if free, ok := diskFreeMB(s.cfg.UploadDir); ok && free < lowDiskMB {
		deleted, freed := s.cleanupFiles(true)
		slog.Warn("emergency cleanup before upload", "deleted", deleted, "freed_mb", freed)

		if free, ok = diskFreeMB(s.cfg.UploadDir); ok && free < criticalDiskMB {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInsufficientStorage)
			json.NewEncoder(w).Encode(map[string]any{
				"success":    false,
				"error":      fmt.Sprintf("disk space critically low: %.1f MB available", free),
				"error_code": "DISK_FULL",
			})
			return
		}
	}
	s.cleanupFiles(false)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("no file provided"))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("no file selected"))
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid file type, only PDF files are allowed"))
		return
	}

	fileID := uuid.NewString()
	path := filepath.Join(s.cfg.UploadDir, fileID+".pdf")

	out, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("saving upload: %w", err))
		return
	}
	size, err := io.Copy(out, file)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("saving upload: %w", err))
		return
	}

	s.mu.Lock()
	s.uploads[fileID] = &uploadEntry{
		Path:      path,
		Filename:  header.Filename,
		Size:      size,
		CreatedAt: time.Now(),
	}
	s.mu.Unlock()

	slog.Info("file uploaded", "file", fileID, "name", header.Filename, "size_mb", roundMB(float64(size)/(1024*1024)))
	writeJSON(w, map[string]any{
		"success": true,
		"fileId":  fileID,
		"message": "file uploaded successfully",
	})
}

func (s *Server) handleConfigureExtraction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("no configuration provided"))
		return
	}

	var sc storedConfig
	if err := json.Unmarshal(body, &sc); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid configuration: %w", err))
		return
	}
	if _, err := grid.ParseExtractionConfig(body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	configID := uuid.NewString()
	s.mu.Lock()
	s.configs[configID] = &sc
	s.mu.Unlock()

	slog.Info("configuration stored", "config", configID, "file", sc.FileID)
	writeJSON(w, map[string]any{
		"success":  true,
		"configId": configID,
		"message":  "configuration saved successfully",
	})
}

// resolveConfig looks up a stored config and the upload it references.
func (s *Server) resolveConfig(r *http.Request) (*storedConfig, *uploadEntry, string, int, error) {
	var req struct {
		ConfigID string `json:"configId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConfigID == "" {
		return nil, nil, "", http.StatusBadRequest, fmt.Errorf("configId is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.configs[req.ConfigID]
	if !ok {
		return nil, nil, "", http.StatusNotFound, fmt.Errorf("configuration not found")
	}
	if sc.FileID == "" {
		return nil, nil, "", http.StatusBadRequest, fmt.Errorf("fileId not found in configuration")
	}
	upload, ok := s.uploads[sc.FileID]
	if !ok {
		return nil, nil, "", http.StatusNotFound, fmt.Errorf("PDF file not found")
	}
	return sc, upload, sc.FileID, http.StatusOK, nil
}

// dropUpload removes the PDF once extraction has consumed it.
func (s *Server) dropUpload(fileID, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not delete PDF after extraction", "path", path, "error", err)
		return
	}
	s.mu.Lock()
	delete(s.uploads, fileID)
	s.mu.Unlock()
	slog.Info("deleted PDF after extraction", "file", fileID)
}

func (s *Server) handleExtractGrid(w http.ResponseWriter, r *http.Request) {
	sc, upload, fileID, code, err := s.resolveConfig(r)
	if err != nil {
		writeError(w, code, err)
		return
	}

	pdfData, err := os.ReadFile(upload.Path)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("PDF file not found on disk"))
		return
	}

	slog.Info("extraction started", "file", fileID, "pages_skipped", sc.SkipPagesStart+sc.SkipPagesEnd)
	result, err := s.extractFn(r.Context(), pdfData, &sc.ExtractionConfig)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("extraction failed: %w", err))
		return
	}
	s.dropUpload(fileID, upload.Path)

	slog.Info("extraction completed",
		"records", len(result.Records),
		"seconds", result.Stats.ExtractionTimeSeconds)
	writeJSON(w, map[string]any{
		"success":          true,
		"recordsExtracted": len(result.Records),
		"extractedData":    result.Records,
		"stats":            result.Stats,
		"status":           "completed",
		"message":          "extraction completed successfully",
	})
}

func (s *Server) handleExtractGridAsync(w http.ResponseWriter, r *http.Request) {
	sc, upload, fileID, code, err := s.resolveConfig(r)
	if err != nil {
		writeError(w, code, err)
		return
	}

	taskID := uuid.NewString()
	path := upload.Path

	_, err = s.tasks.Submit(taskID, "extraction", func() (any, error) {
		pdfData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading PDF: %w", err)
		}

		result, err := s.extractFn(context.Background(), pdfData, &sc.ExtractionConfig)
		if err != nil {
			return nil, err
		}
		s.dropUpload(fileID, path)

		return map[string]any{
			"recordsExtracted": len(result.Records),
			"extractedData":    result.Records,
			"stats":            result.Stats,
		}, nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	slog.Info("async extraction submitted", "task", taskID)
	writeJSON(w, map[string]any{
		"success": true,
		"taskId":  taskID,
		"message": "extraction task submitted, poll /api/task-status/" + taskID,
	})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, ok := s.tasks.Get(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("task not found"))
		return
	}

	writeJSON(w, struct {
		Success bool `json:"success"`
		tasks.Task
	}{Success: true, Task: task})
}

func (s *Server) handleUpdateExcelData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExcelID string           `json:"excelId"`
		Records []extract.Record `json:"extractedData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("extractedData is required"))
		return
	}

	newID := uuid.NewString()
	path := filepath.Join(s.cfg.OutputDir, newID+".xlsx")
	if err := report.Save(path, req.Records); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("generating workbook: %w", err))
		return
	}

	s.mu.Lock()
	s.reports[newID] = &reportEntry{
		Path:      path,
		Records:   len(req.Records),
		CreatedAt: time.Now(),
	}
	old := s.reports[req.ExcelID]
	delete(s.reports, req.ExcelID)
	s.mu.Unlock()

	if old != nil && old.Path != path {
		if err := os.Remove(old.Path); err != nil && !os.IsNotExist(err) {
			slog.Warn("could not delete old workbook", "path", old.Path, "error", err)
		}
	}

	slog.Info("workbook regenerated", "old", req.ExcelID, "new", newID, "records", len(req.Records))
	writeJSON(w, map[string]any{
		"success":          true,
		"excelId":          newID,
		"recordsExtracted": len(req.Records),
		"message":          "workbook updated successfully",
	})
}

func (s *Server) handleDownloadExcel(w http.ResponseWriter, r *http.Request) {
	excelID := chi.URLParam(r, "excelID")

	s.mu.Lock()
	entry, ok := s.reports[excelID]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("workbook not found"))
		return
	}

	f, err := os.Open(entry.Path)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("workbook not found on disk"))
		return
	}

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "voter_data_"+excelID+".xlsx"))
	_, copyErr := io.Copy(w, f)
	f.Close()
	if copyErr != nil {
		slog.Warn("workbook download interrupted", "excel", excelID, "error", copyErr)
		return
	}

	// Single-download handoff: the workbook is gone once served.
	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not delete workbook after download", "path", entry.Path, "error", err)
	}
	s.mu.Lock()
	delete(s.reports, excelID)
	s.mu.Unlock()
	slog.Info("workbook downloaded and deleted", "excel", excelID)
}

func (s *Server) handleDiskSpace(w http.ResponseWriter, r *http.Request) {
	uploadCount, uploadBytes := scanDir(s.cfg.UploadDir)
	outputCount, outputBytes := scanDir(s.cfg.OutputDir)

	resp := map[string]any{
		"success": true,
		"uploads": map[string]any{
			"count":   uploadCount,
			"size_mb": roundMB(float64(uploadBytes) / (1024 * 1024)),
		},
		"outputs": map[string]any{
			"count":   outputCount,
			"size_mb": roundMB(float64(outputBytes) / (1024 * 1024)),
		},
		"warning": false,
	}
	if free, ok := diskFreeMB(s.cfg.UploadDir); ok {
		resp["disk_space_mb"] = roundMB(free)
		resp["warning"] = free < lowDiskMB
	}
	writeJSON(w, resp)
}

func (s *Server) handleCleanupFiles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Aggressive bool `json:"aggressive"`
	}
	// An empty body means a plain retention sweep.
	json.NewDecoder(r.Body).Decode(&req)

	deleted, freedMB := s.cleanupFiles(req.Aggressive)

	resp := map[string]any{
		"success":        true,
		"files_deleted":  deleted,
		"space_freed_mb": roundMB(freedMB),
		"message":        fmt.Sprintf("cleanup completed, %d files deleted, %.2f MB freed", deleted, freedMB),
	}
	if free, ok := diskFreeMB(s.cfg.UploadDir); ok {
		resp["disk_space_mb"] = roundMB(free)
	}
	writeJSON(w, resp)
}
