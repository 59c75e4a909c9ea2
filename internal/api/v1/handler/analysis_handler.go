package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"catalyst/internal/api/v1/dto"
	"catalyst/internal/middleware"
	"catalyst/internal/model"
	"catalyst/internal/repository"
	"catalyst/internal/service"

	"github.com/go-playground/validator/v10"
)

// maxUploadBytes caps uploaded spreadsheets at 10 MiB.
const maxUploadBytes = 10 << 20

type AnalysisHandler struct {
	analyses service.AnalysisService
	quota    service.QuotaService
	validate *validator.Validate
}

func NewAnalysisHandler(analyses service.AnalysisService, quota service.QuotaService, v *validator.Validate) *AnalysisHandler {
	return &AnalysisHandler{analyses: analyses, quota: quota, validate: v}
}

// RegisterRoutes mounts v1 analysis routes
func (h *AnalysisHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/analyses", authMw(http.HandlerFunc(h.handleAnalyses)))
	mux.Handle("/analyses/", authMw(http.HandlerFunc(h.handleAnalysis)))
	mux.Handle("/quota/check", authMw(http.HandlerFunc(h.checkQuota)))
}

func (h *AnalysisHandler) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.start(w, r)
	case http.MethodGet:
		h.listJobs(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleAnalysis dispatches /analyses/{id}, /analyses/{id}/results and
// /analyses/{id}/events.
func (h *AnalysisHandler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/analyses/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1:
		h.getJob(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "results":
		h.getResults(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "events":
		h.streamEvents(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

// @Summary Check whether a batch would be allowed
// @Tags analyses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.QuotaCheckRequest true "Batch size"
// @Success 200 {object} model.QuotaDecision
// @Router /quota/check [post]
func (h *AnalysisHandler) checkQuota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req dto.QuotaCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	decision, err := h.quota.Evaluate(r.Context(), userID, req.StockCount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNothingToAnalyze):
			http.Error(w, "Nothing to analyze", http.StatusBadRequest)
		case errors.Is(err, repository.ErrNoActiveSubscription):
			http.Error(w, "No active subscription", http.StatusForbidden)
		default:
			http.Error(w, "Failed to evaluate quota", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decision)
}

// @Summary Upload a stock list and start an analysis
// @Tags analyses
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "XLSX stock list"
// @Success 202 {object} model.AnalysisJob
// @Router /analyses [post]
func (h *AnalysisHandler) start(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	job, err := h.analyses.Start(r.Context(), userID, header.Filename, data)
	if err != nil {
		var denied *service.QuotaDeniedError
		switch {
		case errors.Is(err, service.ErrNoStocksFound), errors.Is(err, service.ErrNothingToAnalyze):
			http.Error(w, "No valid stock rows in spreadsheet", http.StatusBadRequest)
		case errors.As(err, &denied):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(denied.Decision)
		case errors.Is(err, repository.ErrInsufficientCredits):
			http.Error(w, "Insufficient credits", http.StatusPaymentRequired)
		case errors.Is(err, repository.ErrNoActiveSubscription):
			http.Error(w, "No active subscription", http.StatusForbidden)
		default:
			http.Error(w, "Failed to start analysis", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(job)
}

// @Summary List the caller's analysis jobs
// @Tags analyses
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.AnalysisJob
// @Router /analyses [get]
func (h *AnalysisHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := h.analyses.ListJobs(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// @Summary Get an analysis job
// @Tags analyses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} model.AnalysisJob
// @Router /analyses/{id} [get]
func (h *AnalysisHandler) getJob(w http.ResponseWriter, r *http.Request, jobID string) {
	userID := middleware.UserIDFromContext(r.Context())
	job, err := h.analyses.GetJob(r.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// @Summary Get the per-stock results of a completed job
// @Tags analyses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {array} model.StockAnalysis
// @Router /analyses/{id}/results [get]
func (h *AnalysisHandler) getResults(w http.ResponseWriter, r *http.Request, jobID string) {
	userID := middleware.UserIDFromContext(r.Context())
	results, err := h.analyses.GetResults(r.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch results", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// @Summary Stream job progress as server-sent events
// @Tags analyses
// @Produce text/event-stream
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Router /analyses/{id}/events [get]
func (h *AnalysisHandler) streamEvents(w http.ResponseWriter, r *http.Request, jobID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		job, err := h.analyses.GetJob(r.Context(), jobID, userID)
		if err != nil {
			fmt.Fprintf(w, "data: %s\n\n", `{"type":"error","message":"job not found"}`)
			flusher.Flush()
			return
		}

		event := dto.JobProgressEvent{
			Type:       "progress",
			Status:     job.Status,
			StocksDone: job.StocksDone,
			StockCount: job.StockCount,
		}
		switch job.Status {
		case model.JobCompleted:
			event.Type = "completed"
		case model.JobFailed:
			event.Type = "failed"
			if job.ErrorDetails != nil {
				event.Message = *job.ErrorDetails
			}
		}

		payload, _ := json.Marshal(event)
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()

		if event.Type != "progress" {
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
