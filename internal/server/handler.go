// Package server exposes the generation pipeline over a JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/khusa71/kardu/internal/export"
	"github.com/khusa71/kardu/internal/flashcard"
	"github.com/khusa71/kardu/internal/job"
	"github.com/khusa71/kardu/internal/quota"
	"github.com/khusa71/kardu/internal/review"
	"github.com/khusa71/kardu/internal/studyprogress"
)

// maxUploadBytes bounds one multipart upload.
const maxUploadBytes = 50 << 20

// Handler serves job submission, status polling, review recording, and
// quota inspection.
type Handler struct {
	orchestrator *job.Orchestrator
	recorder     *studyprogress.Recorder
	quota        *quota.Manager
	scratchDir   string
}

func NewHandler(orchestrator *job.Orchestrator, recorder *studyprogress.Recorder, quotaManager *quota.Manager, scratchDir string) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		recorder:     recorder,
		quota:        quotaManager,
		scratchDir:   scratchDir,
	}
}

// Register wires the handler's routes into mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/jobs", h.submitJob)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.jobStatus)
	mux.HandleFunc("GET /api/v1/jobs/{id}/cards", h.jobCards)
	mux.HandleFunc("POST /api/v1/reviews", h.recordReview)
	mux.HandleFunc("GET /api/v1/reviews/due", h.dueReviews)
	mux.HandleFunc("GET /api/v1/quota", h.getQuota)
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) submitJob(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	params, err := parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pageCount, _ := strconv.Atoi(r.FormValue("page_count"))
	if pageCount <= 0 {
		pageCount = 1
	}

	scratchPath, header, err := h.saveUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deckName := r.FormValue("deck_name")
	if deckName == "" {
		deckName = params.Subject
	}

	jobID, err := h.orchestrator.Submit(r.Context(), job.Submission{
		UserID:    userID,
		Path:      scratchPath,
		Filename:  header.Filename,
		FileSize:  header.Size,
		DeckName:  deckName,
		PageCount: pageCount,
		Params:    params,
	})
	if err != nil {
		// The job never started; the scratch copy is ours to remove.
		if removeErr := os.Remove(scratchPath); removeErr != nil {
			slog.Default().Warn("failed to remove rejected upload", "path", scratchPath, "error", removeErr)
		}

		var validationErr *job.ValidationError
		var exceededErr *quota.ExceededError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Message)
		case errors.As(err, &exceededErr):
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":      exceededErr.Reason,
				"next_reset": exceededErr.NextReset,
			})
		default:
			slog.Default().Error("job submission failed", "error", err)
			writeError(w, http.StatusInternalServerError, "submission failed")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{JobID: jobID})
}

func (h *Handler) jobStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.orchestrator.Status(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type jobCardsResponse struct {
	JobID     string                `json:"job_id"`
	Cards     []flashcard.Flashcard `json:"cards"`
	Artifacts []job.Artifact        `json:"artifacts"`
}

func (h *Handler) jobCards(w http.ResponseWriter, r *http.Request) {
	record, err := h.orchestrator.Job(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if record.Status != job.StatusCompleted {
		writeError(w, http.StatusConflict, fmt.Sprintf("job is %s, not completed", record.Status))
		return
	}
	writeJSON(w, http.StatusOK, jobCardsResponse{
		JobID:     record.ID,
		Cards:     record.Cards,
		Artifacts: record.Artifacts,
	})
}

type reviewRequest struct {
	JobID     string        `json:"job_id"`
	CardIndex int           `json:"card_index"`
	Rating    review.Rating `json:"rating"`
}

func (h *Handler) recordReview(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.JobID == "" || req.CardIndex < 0 {
		writeError(w, http.StatusBadRequest, "job_id and a non-negative card_index are required")
		return
	}
	switch req.Rating {
	case review.RatingEasy, review.RatingMedium, review.RatingHard:
	default:
		writeError(w, http.StatusBadRequest, "rating must be easy, medium or hard")
		return
	}

	progress, err := h.recorder.RecordReview(r.Context(), userID, req.JobID, req.CardIndex, req.Rating)
	if err != nil {
		slog.Default().Error("failed to record review", "error", err)
		writeError(w, http.StatusInternalServerError, "could not record review")
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) dueReviews(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return
	}

	due, err := h.recorder.Due(r.Context(), userID)
	if err != nil {
		slog.Default().Error("failed to list due reviews", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list due reviews")
		return
	}
	if due == nil {
		due = []studyprogress.Progress{}
	}
	writeJSON(w, http.StatusOK, due)
}

func (h *Handler) getQuota(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return
	}

	record, err := h.quota.GetQuota(r.Context(), userID)
	if err != nil {
		slog.Default().Error("failed to load quota", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load quota")
		return
	}
	limits := record.Tier.Limits()
	writeJSON(w, http.StatusOK, map[string]any{
		"tier":               record.Tier,
		"uploads_this_month": record.UploadsThisMonth,
		"pages_this_month":   record.PagesThisMonth,
		"monthly_uploads":    limits.MonthlyUploads,
		"max_pages_per_file": limits.MaxPagesPerFile,
		"monthly_pages":      limits.MonthlyPages,
		"next_reset":         h.quota.NextReset(),
	})
}

// saveUpload copies the multipart document into the scratch directory and
// returns its path along with the upload's header. The job owns the copy
// from then on.
func (h *Handler) saveUpload(r *http.Request) (string, *multipart.FileHeader, error) {
	file, header, err := r.FormFile("document")
	if err != nil {
		return "", nil, fmt.Errorf("a document file is required")
	}
	defer file.Close()

	if err := os.MkdirAll(h.scratchDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("could not prepare scratch directory")
	}

	ext := filepath.Ext(header.Filename)
	scratchPath := filepath.Join(h.scratchDir, uuid.NewString()+ext)
	out, err := os.Create(scratchPath)
	if err != nil {
		return "", nil, fmt.Errorf("could not store the upload")
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(scratchPath)
		return "", nil, fmt.Errorf("could not store the upload")
	}
	return scratchPath, header, nil
}

// parseParams builds job params from the multipart form fields.
func parseParams(r *http.Request) (job.Params, error) {
	cardCount, err := strconv.Atoi(r.FormValue("card_count"))
	if err != nil {
		return job.Params{}, fmt.Errorf("card_count must be an integer")
	}

	params := job.Params{
		Subject:        r.FormValue("subject"),
		Difficulty:     flashcard.Difficulty(r.FormValue("difficulty")),
		CardCount:      cardCount,
		QualityTier:    job.QualityTier(r.FormValue("quality_tier")),
		CustomContext:  r.FormValue("custom_context"),
		RegenerateFrom: r.FormValue("regenerate_from"),
	}
	if params.Difficulty == "" {
		params.Difficulty = flashcard.DifficultyIntermediate
	}
	if params.QualityTier == "" {
		params.QualityTier = job.QualityTierBasic
	}
	if focusAreas := r.FormValue("focus_areas"); focusAreas != "" {
		for _, area := range strings.Split(focusAreas, ",") {
			if area = strings.TrimSpace(area); area != "" {
				params.FocusAreas = append(params.FocusAreas, area)
			}
		}
	}
	if formats := r.FormValue("export_formats"); formats != "" {
		for _, format := range strings.Split(formats, ",") {
			if format = strings.TrimSpace(format); format != "" {
				params.ExportFormats = append(params.ExportFormats, export.Format(format))
			}
		}
	}
	return params, nil
}

func userIDFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
