package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/exambench/exambench/internal/examdoc"
	"github.com/exambench/exambench/internal/llm"
	"github.com/exambench/exambench/internal/model"
	"github.com/exambench/exambench/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	llm    *llm.Client
	config model.ServerConfig
}

// New creates a new Handler. The LLM client may be nil, in which case
// the judge endpoint reports the capability as unavailable.
func New(s *store.Store, l *llm.Client, cfg model.ServerConfig) (*Handler, error) {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 4 << 20
	}
	return &Handler{store: s, llm: l, config: cfg}, nil
}

// Routes registers all HTTP routes. Write operations sit behind the
// submit token check.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/submissions", h.handleListSubmissions)
	r.Get("/submissions/{id}", h.handleGetSubmission)
	r.Get("/submissions/{id}/document", h.handleGetDocument)

	r.Group(func(g chi.Router) {
		g.Use(h.RequireToken)
		g.Post("/validate", h.handleValidate)
		g.Post("/submissions", h.handleCreateSubmission)
		g.Post("/submissions/{id}/judge", h.handleJudge)
	})
}

type validateRequest struct {
	Document string `json:"document"`
}

type validateResponse struct {
	Document string `json:"document"`
	Changed  bool   `json:"changed"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleValidate runs the validation pipeline without persisting
// anything: the pure pre-publish gate.
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	normalized, err := examdoc.Normalize(req.Document)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Document: normalized,
		Changed:  normalized != req.Document,
	})
}

func (h *Handler) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	normalized, err := examdoc.Normalize(req.Document)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	sub, err := submissionFromDocument(normalized)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := h.store.InsertSubmission(sub)
	if err != nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("store submission: %v", err))
		return
	}
	sub.ID = id

	slog.Info("submission accepted", "id", id, "exam_id", sub.ExamID, "questions", sub.NumQuestions)
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	status := model.SubmissionStatus(r.URL.Query().Get("status"))
	course := r.URL.Query().Get("course")

	subs, err := h.store.ListSubmissions(status, course)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.lookupSubmission(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.lookupSubmission(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(sub.Document))
}

// handleJudge sends a stored document to the LLM judge and moves the
// submission to validated or rejected based on the verdict.
func (h *Handler) handleJudge(w http.ResponseWriter, r *http.Request) {
	if h.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "no LLM endpoint configured")
		return
	}
	sub, ok := h.lookupSubmission(w, r)
	if !ok {
		return
	}

	result, err := h.llm.JudgeExam(r.Context(), sub.Document)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("judge call: %v", err))
		return
	}

	status := model.StatusValidated
	note := ""
	if !result.Passed() {
		status = model.StatusRejected
		note = strings.Join(result.Issues, "; ")
	}
	if err := h.store.UpdateSubmissionStatus(sub.ID, status, note); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("submission judged", "id", sub.ID, "verdict", result.Verdict, "issues", len(result.Issues))
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) lookupSubmission(w http.ResponseWriter, r *http.Request) (model.Submission, bool) {
	id := chi.URLParam(r, "id")
	sub, err := h.store.GetSubmission(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "submission not found")
		return model.Submission{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return model.Submission{}, false
	}
	return sub, true
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v *validateRequest) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return false
	}
	if v.Document == "" {
		writeError(w, http.StatusBadRequest, "document is required")
		return false
	}
	return true
}

// submissionFromDocument derives the stored record from a document
// that already passed the guards.
func submissionFromDocument(document string) (model.Submission, error) {
	d := examdoc.Parse(document)
	if d.Meta == nil {
		return model.Submission{}, fmt.Errorf("document has no metadata block")
	}

	var meta model.ExamMeta
	if err := json.Unmarshal([]byte(d.Meta.Raw), &meta); err != nil {
		return model.Submission{}, fmt.Errorf("decode metadata: %w", err)
	}
	if meta.ExamID == "" {
		return model.Submission{}, fmt.Errorf("metadata is missing exam_id")
	}

	return model.Submission{
		ExamID:       meta.ExamID,
		Course:       meta.Course,
		Institution:  meta.Institution,
		Status:       model.StatusPending,
		ScoreTotal:   meta.ScoreTotal,
		NumQuestions: meta.NumQuestions,
		Document:     document,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
