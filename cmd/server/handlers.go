package main

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	coj "github.com/StartGackt/coj-backend"
)

const (
	maxK          = 50
	maxUploadSize = 50 << 20
)

type handler struct {
	engine   coj.Engine
	sanitize *bluemonday.Policy
}

func newHandler(e coj.Engine) *handler {
	return &handler{engine: e, sanitize: bluemonday.StrictPolicy()}
}

// newRouter wires the routes behind the middleware chain:
// recovery -> request id -> cors -> auth -> logging.
func newRouter(h *handler, apiKey, corsOrigins string) http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(requestIDMiddleware)
	r.Use(corsMiddleware(corsOrigins))
	r.Use(authMiddleware(apiKey))
	r.Use(logMiddleware)

	r.Post("/ingest", h.handleIngest)
	r.Post("/ingest/file", h.handleIngestFile)
	r.Get("/cases/{caseID}/facts", h.handleFacts)
	r.Get("/chunks/{caseID}", h.handleChunks)
	r.Get("/search", h.handleSearch)
	r.Get("/answer", h.handleAnswer)
	r.Post("/ask", h.handleAsk)
	r.Get("/court-documents/search", h.handleSuggest)
	r.Get("/court-documents/search-simple", h.handleSuggestSimple)
	r.Get("/health", h.handleHealth)
	return r
}

// cleanText strips markup from user-supplied text. The strict policy
// escapes entities, which are turned back into plain characters.
func (h *handler) cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(h.sanitize.Sanitize(s)))
}

// resolveCaseID maps "latest" onto the most recently ingested case.
func (h *handler) resolveCaseID(id string) string {
	id = strings.TrimSpace(id)
	if strings.EqualFold(id, "latest") {
		return h.engine.LatestCaseID()
	}
	return id
}

// caseParam reads a case id path parameter. Case ids such as
// CASE-123/2567 arrive percent-encoded.
func (h *handler) caseParam(r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "caseID")
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	id = h.resolveCaseID(id)
	return id, id != ""
}

// POST /ingest
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var req struct {
		Texts  []string `json:"texts"`
		Text   string   `json:"text,omitempty"`
		CaseID string   `json:"case_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Text != "" {
		req.Texts = append(req.Texts, req.Text)
	}

	texts := make([]string, 0, len(req.Texts))
	for _, t := range req.Texts {
		if c := h.cleanText(t); c != "" {
			texts = append(texts, c)
		}
	}

	res, err := h.engine.Ingest(ctx, texts, coj.WithCaseID(req.CaseID))
	if err != nil {
		h.fail(w, r, "ingest", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /ingest/file
// Accepts a multipart upload in field "file" and an optional "case_id".
func (h *handler) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with 'file'")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal; the extension selects
	// the parser.
	safeName := filepath.Base(header.Filename)
	tmp, err := os.CreateTemp("", "coj-upload-*"+strings.ToLower(filepath.Ext(safeName)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		slog.Error("creating temp file", "error", err)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return
	}
	tmp.Close()

	res, err := h.engine.IngestFile(ctx, tmp.Name(), coj.WithCaseID(r.FormValue("case_id")))
	if err != nil {
		h.fail(w, r, "ingest file", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filename": safeName,
		"result":   res,
	})
}

// GET /cases/{caseID}/facts?limit=
func (h *handler) handleFacts(w http.ResponseWriter, r *http.Request) {
	caseID, ok := h.caseParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no such case")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	facts, err := h.engine.Facts(r.Context(), caseID, limit)
	if err != nil {
		h.fail(w, r, "facts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"case_id": caseID,
		"facts":   facts,
	})
}

// GET /chunks/{caseID}
func (h *handler) handleChunks(w http.ResponseWriter, r *http.Request) {
	caseID, ok := h.caseParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no such case")
		return
	}
	chunks, err := h.engine.Chunks(r.Context(), caseID)
	if err != nil {
		h.fail(w, r, "chunks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"case_id": caseID,
		"chunks":  chunks,
	})
}

// queryParams reads q, k and case_id from the URL. q is required.
func (h *handler) queryParams(w http.ResponseWriter, r *http.Request) (string, []coj.QueryOption, bool) {
	v := r.URL.Query()
	q := strings.TrimSpace(v.Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, coj.ErrInvalidQuery.Error()+": q is required")
		return "", nil, false
	}
	opts, ok := h.queryOptions(w, v.Get("k"), v.Get("case_id"))
	return q, opts, ok
}

func (h *handler) queryOptions(w http.ResponseWriter, kParam, caseID string) ([]coj.QueryOption, bool) {
	var opts []coj.QueryOption
	if kParam != "" {
		k, err := strconv.Atoi(kParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, coj.ErrInvalidQuery.Error()+": k must be an integer")
			return nil, false
		}
		opts = append(opts, coj.WithK(min(k, maxK)))
	}
	if caseID = h.resolveCaseID(caseID); caseID != "" {
		opts = append(opts, coj.InCase(caseID))
	}
	return opts, true
}

// GET /search?q=&k=&case_id=
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, opts, ok := h.queryParams(w, r)
	if !ok {
		return
	}
	res, err := h.engine.Search(r.Context(), q, opts...)
	if err != nil {
		h.fail(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /answer?q=&k=&case_id=
func (h *handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	q, opts, ok := h.queryParams(w, r)
	if !ok {
		return
	}
	res, err := h.engine.Answer(r.Context(), q, opts...)
	if err != nil {
		h.fail(w, r, "answer", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /ask
func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		CaseID   string `json:"case_id,omitempty"`
		K        *int   `json:"k,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	q := h.cleanText(req.Question)
	if q == "" {
		writeError(w, http.StatusBadRequest, coj.ErrInvalidQuery.Error()+": question is required")
		return
	}
	kParam := ""
	if req.K != nil {
		kParam = strconv.Itoa(*req.K)
	}
	opts, ok := h.queryOptions(w, kParam, req.CaseID)
	if !ok {
		return
	}

	res, err := h.engine.Answer(r.Context(), q, opts...)
	if err != nil {
		h.fail(w, r, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /court-documents/search?q=&k=&case_id=
func (h *handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q, opts, ok := h.queryParams(w, r)
	if !ok {
		return
	}
	res, err := h.engine.SuggestDocuments(r.Context(), q, opts...)
	if err != nil {
		h.fail(w, r, "court documents", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /court-documents/search-simple?q=&k=&case_id=
func (h *handler) handleSuggestSimple(w http.ResponseWriter, r *http.Request) {
	q, opts, ok := h.queryParams(w, r)
	if !ok {
		return
	}
	res, err := h.engine.SearchCatalog(r.Context(), q, opts...)
	if err != nil {
		h.fail(w, r, "court documents", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":         "ok",
		"semantic":       h.engine.SemanticAvailable(),
		"latest_case_id": h.engine.LatestCaseID(),
	}
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		body["status"] = "degraded"
		body["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["stats"] = stats
	writeJSON(w, http.StatusOK, body)
}

// fail maps engine errors onto HTTP statuses and logs the server-side ones.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" error", "request_id", requestID(r.Context()), "error", err)
	} else {
		slog.Debug(op+" rejected", "request_id", requestID(r.Context()), "error", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, coj.ErrNoTexts),
		errors.Is(err, coj.ErrInvalidText),
		errors.Is(err, coj.ErrInvalidQuery),
		errors.Is(err, coj.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, coj.ErrParsingFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, coj.ErrStoreUnavailable), errors.Is(err, coj.ErrStoreClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
