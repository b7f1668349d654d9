// Package api serves analysis runs, stored reports, diagrams and metrics over HTTP.
package api

import (
	"Go2NetPeriod/internal/config"
	"Go2NetPeriod/internal/diagram"
	"Go2NetPeriod/internal/engine/analyzer"
	"Go2NetPeriod/internal/engine/grouping"
	"Go2NetPeriod/internal/engine/statistic"
	"Go2NetPeriod/internal/input"
	"Go2NetPeriod/internal/metrics"
	"Go2NetPeriod/internal/model"
	"Go2NetPeriod/internal/report"
	"Go2NetPeriod/pkg/capture"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// RunIDHeader carries the id of the run that produced a response.
const RunIDHeader = "X-Run-Id"

// ErrOutsideInputDir is returned for request paths that leave the input directory.
var ErrOutsideInputDir = errors.New("path outside the input directory")

// Handler holds the dependencies of the API handlers.
type Handler struct {
	cfg        *config.Config
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	publishers []model.Publisher
	summaries  *SummaryLog
}

// NewHandler creates the API handler. summaries may be nil when no subscription is
// running.
func NewHandler(cfg *config.Config, m *metrics.Metrics, gatherer prometheus.Gatherer, publishers []model.Publisher, summaries *SummaryLog) *Handler {
	return &Handler{cfg: cfg, metrics: m, gatherer: gatherer, publishers: publishers, summaries: summaries}
}

// Router registers every route on a new gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/analyze", h.analyzeHandler).Methods("POST")
	r.HandleFunc("/api/v1/reports/{name}", h.reportHandler).Methods("GET")
	r.HandleFunc("/api/v1/summaries", h.summariesHandler).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	}).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	r.PathPrefix("/diagrams/").Handler(http.StripPrefix("/diagrams/", http.FileServer(http.Dir(h.cfg.Output.DiagramDir))))
	return r
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	LogPath      string `json:"log_path"`
	IndexPath    string `json:"index_path"`
	LocalAddress string `json:"local_address"`
	Plot         bool   `json:"plot"`
}

// analyzeHandler runs the pipeline, stores the report under the API report directory
// and returns its text.
func (h *Handler) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}
	if req.LocalAddress == "" {
		req.LocalAddress = h.cfg.Analysis.LocalAddress
	}
	if req.LogPath == "" || req.IndexPath == "" || req.LocalAddress == "" {
		http.Error(w, "log_path, index_path and local_address are required", http.StatusBadRequest)
		return
	}

	logPath, err := resolveInput(h.cfg.API.InputDir, req.LogPath)
	if err != nil {
		log.Warnf("Rejected log_path %q: %v", req.LogPath, err)
		http.Error(w, "log_path is outside the input directory", http.StatusForbidden)
		return
	}
	indexPath, err := resolveInput(h.cfg.API.InputDir, req.IndexPath)
	if err != nil {
		log.Warnf("Rejected index_path %q: %v", req.IndexPath, err)
		http.Error(w, "index_path is outside the input directory", http.StatusForbidden)
		return
	}

	store, periods, err := input.Load(logPath, indexPath)
	if err != nil {
		log.Warnf("Failed to load input: %v", err)
		status := statusFor(err)
		http.Error(w, clientMessage(err, status), status)
		return
	}
	h.metrics.Loaded(store.Len())

	opts, err := analyzer.OptionsFromConfig(h.cfg.Analysis)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var sink model.DiagramSink
	if req.Plot {
		if err := diagram.Prepare(h.cfg.Output.DiagramDir); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if sink, err = diagram.NewPNGSink(h.cfg.Output.DiagramDir); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	var buf bytes.Buffer
	a := analyzer.New(opts, report.NewTextWriter(&buf), sink, h.publishers, h.metrics)
	res, err := a.Run(r.Context(), store, periods, req.LocalAddress)
	if err != nil {
		log.Warnf("Analysis failed: %v", err)
		status := statusFor(err)
		http.Error(w, clientMessage(err, status), status)
		return
	}

	name := ReportName(res.RunID)
	if err := os.WriteFile(filepath.Join(h.cfg.API.ReportDir, name), buf.Bytes(), 0644); err != nil {
		log.Errorf("Failed to store report %s: %v", name, err)
	} else {
		w.Header().Set("Location", "/api/v1/reports/"+name)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(RunIDHeader, res.RunID)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ReportName is the file name under which the report of a run is stored.
func ReportName(runID string) string {
	return "report_" + runID + ".txt"
}

// reportHandler renders a stored report as HTML.
func (h *Handler) reportHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.Error(w, "invalid report name", http.StatusBadRequest)
		return
	}

	text, err := os.ReadFile(filepath.Join(h.cfg.API.ReportDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, fmt.Sprintf("failed to read report: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(report.RenderHTML(name, text))
}

// summariesHandler lists the most recent summaries received from the bus.
func (h *Handler) summariesHandler(w http.ResponseWriter, r *http.Request) {
	var out []SummaryView
	if h.summaries != nil {
		out = h.summaries.Views()
	}
	if out == nil {
		out = []SummaryView{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Errorf("Failed to encode summaries: %v", err)
	}
}

// resolveInput joins a request path onto root and rejects it when it resolves, through
// ".." or symlinks, to a file outside root.
func resolveInput(root, path string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve input directory: %w", err)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(rootAbs, path)
	}
	path = filepath.Clean(path)

	base, target := rootAbs, path
	if real, err := filepath.EvalSymlinks(path); err == nil {
		target = real
		if realRoot, err := filepath.EvalSymlinks(rootAbs); err == nil {
			base = realRoot
		}
	}
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideInputDir, path)
	}
	return path, nil
}

// clientMessage is the error text returned to API clients. Details stay in the log.
func clientMessage(err error, status int) string {
	switch {
	case status == http.StatusNotFound:
		return "input file not found"
	case errors.Is(err, capture.ErrMalformedRow),
		errors.Is(err, capture.ErrMalformedIndex),
		errors.Is(err, grouping.ErrInvalidPeriod),
		errors.Is(err, statistic.ErrDegeneratePeriod):
		return err.Error()
	default:
		return http.StatusText(status)
	}
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrMalformedRow),
		errors.Is(err, capture.ErrMalformedIndex),
		errors.Is(err, grouping.ErrInvalidPeriod),
		errors.Is(err, statistic.ErrDegeneratePeriod):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
