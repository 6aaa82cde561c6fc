package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/sentinelx/sentinelx/pkg/store"
)

// Scanner runs the detection pipeline for one upload.
type Scanner interface {
	Scan(ctx context.Context, filename, declaredType string, data []byte) (*store.ScanRecord, error)
}

// Syncer accepts on-demand feed sync triggers.
type Syncer interface {
	Trigger(sources []string) bool
}

type Server struct {
	Scanner       Scanner
	Store         store.Store
	Syncer        Syncer
	MaxUploadSize int64
}

type syncRequest struct {
	Sources []string `json:"sources"`
}

// Routes builds the API route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("GET /api/rules", s.handleRules)
	mux.HandleFunc("POST /api/sync-rules", s.handleSync)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadSize)
	if err := r.ParseMultipartForm(s.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty upload")
		return
	}

	record, err := s.Scanner.Scan(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		// only persistence failures cross this boundary
		log.Error().Err(err).Msg("scan persistence failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.Store.ListRules(100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.Body != nil {
		// empty or absent body means all sources
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid sync request: "+err.Error())
			return
		}
	}

	if !s.Syncer.Trigger(req.Sources) {
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "sync already in progress"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "rule sync started"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	totalScans, err := s.Store.CountScans()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	malicious, err := s.Store.CountScansByStatus(store.StatusMalicious)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rules, err := s.Store.CountRules()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, store.Stats{
		TotalScans:        totalScans,
		MaliciousDetected: malicious,
		ActiveRules:       rules,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
