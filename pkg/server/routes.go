package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/document"
	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/store"
)

// routes builds the HTTP surface around the WebSocket gateway: health,
// document listing and bytes, rendered page files, and metrics.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/api/pdfs", s.handleListPDFs)
	r.Get("/api/pdf/{id}/info", s.handlePDFInfo)
	r.Get("/api/pdf/{id}/raw", s.handlePDFRaw)
	r.Get("/api/pdf/{id}/base64", s.handlePDFBase64)
	r.Get("/pages/{sessionID}/{filename}", s.handlePageFile)
	r.Get("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/ws", s.HandleWebSocket)

	return r
}

// pdfEntry is one row of the /api/pdfs listing.
type pdfEntry struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime":         time.Since(s.startedAt).Seconds(),
		"activeSessions": s.sessions.Count(),
		"cachedPdfs":     s.cache.Count(),
	})
}

func (s *Server) handleListPDFs(w http.ResponseWriter, r *http.Request) {
	matches, err := filepath.Glob(filepath.Join(s.config.PDFDir, "*.pdf"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to list PDFs",
		})
		return
	}

	pdfs := make([]pdfEntry, 0, len(matches))
	for _, match := range matches {
		name := filepath.Base(match)
		pdfs = append(pdfs, pdfEntry{
			ID:       strings.TrimSuffix(name, ".pdf"),
			Filename: name,
			Path:     "/pdfs/" + name,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"pdfs":    pdfs,
		"count":   len(pdfs),
	})
}

func (s *Server) handlePDFInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, err := s.pdfPath(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"error":   "PDF not found",
		})
		return
	}

	doc, err := s.cache.Load(r.Context(), path)
	if err != nil {
		status := http.StatusInternalServerError
		msg := "failed to load PDF"
		if errors.Is(err, document.ErrNotFound) {
			status = http.StatusNotFound
			msg = "PDF not found"
		}
		writeJSON(w, status, map[string]any{"success": false, "error": msg})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"id":         id,
		"totalPages": doc.TotalPages,
		"metadata":   doc.Meta,
	})
}

func (s *Server) handlePDFRaw(w http.ResponseWriter, r *http.Request) {
	path, err := s.pdfPath(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "PDF not found"})
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "PDF not found"})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, path)
}

func (s *Server) handlePDFBase64(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	path, err := s.pdfPath(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "PDF not found"})
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "PDF not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"pdfData":  "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data),
		"filename": id + ".pdf",
	})
}

// handlePageFile serves a previously persisted rendered page. Only the
// disk backend serves through this endpoint; with the S3 backend clients
// fetch pages from their presigned URLs instead.
func (s *Server) handlePageFile(w http.ResponseWriter, r *http.Request) {
	if s.disk == nil {
		http.NotFound(w, r)
		return
	}

	path, err := s.disk.Path(chi.URLParam(r, "sessionID"), chi.URLParam(r, "filename"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidName) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("page file lookup failed", "error", err)
		http.Error(w, "error serving image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

// pdfPath resolves a client-supplied document id to a path under the
// PDF directory, rejecting ids that are not a plain file stem.
func (s *Server) pdfPath(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", ErrInvalidPDFID
	}
	return filepath.Join(s.config.PDFDir, id+".pdf"), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
