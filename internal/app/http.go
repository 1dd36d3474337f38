package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ehtisham-afzal/outline/internal/export"
	"github.com/ehtisham-afzal/outline/internal/log"
	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	isRead := r.Method == http.MethodGet || r.Method == http.MethodHead

	if isRead && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if isRead && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if isRead && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if r.URL.Path == "/api/documents" {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListDocuments(r.Context())
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"documents": items})
		case http.MethodPost:
			s.handleImport(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "documents" {
		s.handleDocument(w, r, parts[2], parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title    string `json:"title"`
		Markdown string `json:"markdown"`
		Author   string `json:"author"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	view, err := s.service.ImportMarkdown(r.Context(), body.Title, body.Markdown, body.Author)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document": view})
}

func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request, documentID string, parts []string) {
	isRead := r.Method == http.MethodGet || r.Method == http.MethodHead

	if len(parts) == 3 && isRead {
		view, err := s.service.GetDocument(r.Context(), documentID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": view})
		return
	}

	if len(parts) == 4 && parts[3] == "transactions" && r.Method == http.MethodPost {
		var body struct {
			BaseVersion *int            `json:"baseVersion"`
			Steps       json.RawMessage `json:"steps"`
			ClientID    string          `json:"clientId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.BaseVersion == nil || len(body.Steps) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "baseVersion and steps are required", nil)
			return
		}
		view, err := s.service.ApplyTransaction(r.Context(), documentID, *body.BaseVersion, body.Steps, body.ClientID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": view})
		return
	}

	if len(parts) == 4 && parts[3] == "steps" && isRead {
		since := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "since must be a non-negative integer", nil)
				return
			}
			since = parsed
		}
		batches, err := s.service.StepsSince(r.Context(), documentID, since)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"steps": batches})
		return
	}

	if len(parts) == 4 && parts[3] == "commands" {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"commands": s.service.manager.CommandNames()})
		case http.MethodPost:
			s.handleCommand(w, r, documentID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 4 && parts[3] == "anchors" && isRead {
		anchors, err := s.service.Anchors(r.Context(), documentID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"anchors": anchors})
		return
	}

	if len(parts) == 4 && parts[3] == "export" && isRead {
		s.handleExport(w, r, documentID)
		return
	}

	if len(parts) == 4 && parts[3] == "history" && isRead {
		limit := 50
		if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
			if parsedLimit, err := strconv.Atoi(rawLimit); err == nil && parsedLimit > 0 {
				limit = parsedLimit
			}
		}
		items, err := s.service.History(r.Context(), documentID, limit)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": items})
		return
	}

	if len(parts) == 5 && parts[3] == "versions" && isRead {
		version, err := s.service.Version(r.Context(), documentID, parts[4])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, version)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleCommand(w http.ResponseWriter, r *http.Request, documentID string) {
	var body struct {
		Name      string         `json:"name"`
		Attrs     map[string]any `json:"attrs"`
		Selection SelectionInput `json:"selection"`
		ClientID  string         `json:"clientId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
		return
	}
	result, err := s.service.RunCommand(r.Context(), documentID, body.Name, model.Attrs(body.Attrs), body.Selection, body.ClientID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, documentID string) {
	format, err := export.ParseFormat(strings.TrimSpace(r.URL.Query().Get("format")))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	publish, _ := strconv.ParseBool(r.URL.Query().Get("publish"))

	result, err := s.service.Export(r.Context(), documentID, format, publish)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if publish {
		writeJSON(w, http.StatusOK, map[string]any{"url": result.URL, "filename": result.Filename, "mimeType": result.MimeType})
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := search.Query{
		Text:       strings.TrimSpace(query.Get("q")),
		FilterType: search.ResultType(strings.TrimSpace(query.Get("type"))),
		DocumentID: strings.TrimSpace(query.Get("documentId")),
	}
	if q.Text == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "q is required", nil)
		return
	}
	switch q.FilterType {
	case "", search.ResultDocument, search.ResultSection:
	default:
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be document or section", nil)
		return
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		q.Limit = min(limit, 100)
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil && offset > 0 {
		q.Offset = offset
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), q))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Get().Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Get().Error("request failed", zap.String("code", code), zap.Error(err))
	}
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
