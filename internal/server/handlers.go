package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/content-guard/internal/db"
	"github.com/jonathan/content-guard/internal/generation"
	"github.com/jonathan/content-guard/internal/rendering"
	"github.com/jonathan/content-guard/internal/schemas"
)

// maxBodyBytes caps generation request bodies.
const maxBodyBytes = 64 << 10

// GenerateRequest represents the request body for /generate
type GenerateRequest struct {
	Topic        string `json:"topic"`
	ContentType  string `json:"content_type"`
	TargetLength int    `json:"target_length"`
}

// AttemptSummary is the per-attempt part of a GenerateResponse
type AttemptSummary struct {
	Index          int     `json:"index"`
	Score          float64 `json:"score"`
	Fragments      int     `json:"fragments"`
	Plagiarized    int     `json:"plagiarized"`
	SearchFailures int     `json:"search_failures"`
}

// GenerateResponse represents the response for /generate
type GenerateResponse struct {
	State        generation.State `json:"state"`
	Content      string           `json:"content,omitempty"`
	ContentHTML  string           `json:"content_html,omitempty"`
	Score        float64          `json:"score"`
	Attempts     []AttemptSummary `json:"attempts"`
	GeneratedAt  *time.Time       `json:"generated_at,omitempty"`
	PersistError string           `json:"persist_error,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// HistoryResponse represents the response for /history
type HistoryResponse struct {
	Items []db.ContentRecord `json:"items"`
	Count int                `json:"count"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newGenerateResponse(result *generation.Result) GenerateResponse {
	resp := GenerateResponse{
		State:    result.State,
		Score:    result.BestScore(),
		Attempts: make([]AttemptSummary, 0, len(result.Attempts)),
	}
	for _, a := range result.Attempts {
		summary := AttemptSummary{Index: a.Index, Score: a.Score}
		if a.Report != nil {
			summary.Fragments = a.Report.Total
			summary.Plagiarized = a.Report.Plagiarized
			summary.SearchFailures = a.Report.SearchFailures
		}
		resp.Attempts = append(resp.Attempts, summary)
	}
	if result.Accepted != nil {
		resp.Content = result.Accepted.Content
		if html, err := rendering.MarkdownToHTML(result.Accepted.Content); err == nil {
			resp.ContentHTML = html
		}
		resp.Score = result.Accepted.Score
		generatedAt := result.Accepted.GeneratedAt
		resp.GeneratedAt = &generatedAt
	}
	if result.PersistError != nil {
		resp.PersistError = result.PersistError.Error()
	}
	return resp
}

// decodeGenerateRequest reads, schema-checks and validates a generation request body.
func decodeGenerateRequest(r *http.Request) (generation.Request, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return generation.Request{}, &ErrValidation{Field: "body", Message: "could not read request body"}
	}
	if len(body) > maxBodyBytes {
		return generation.Request{}, &ErrValidation{Field: "body", Message: "request body too large"}
	}

	if err := schemas.ValidateGenerateRequest(body); err != nil {
		var schemaErr *schemas.ValidationError
		if errors.As(err, &schemaErr) {
			msgs := make([]string, 0, len(schemaErr.Errors))
			for _, fe := range schemaErr.Errors {
				msgs = append(msgs, fe.Field+": "+fe.Message)
			}
			return generation.Request{}, &ErrValidation{Field: "body", Message: strings.Join(msgs, "; ")}
		}
		return generation.Request{}, &ErrValidation{Field: "body", Message: "invalid JSON"}
	}

	var in GenerateRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return generation.Request{}, &ErrValidation{Field: "body", Message: "invalid JSON"}
	}

	contentType, err := generation.ParseContentType(in.ContentType)
	if err != nil {
		return generation.Request{}, &ErrValidation{Field: "content_type", Message: err.Error()}
	}

	req := generation.Request{Topic: in.Topic, ContentType: contentType, TargetLength: in.TargetLength}
	if err := req.Validate(); err != nil {
		return generation.Request{}, err
	}
	return req, nil
}

// handleGenerate runs the generation loop and returns the final result
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGenerateRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.runner.Run(r.Context(), req, nil)
	if err != nil {
		if result != nil && errors.Is(err, generation.ErrRetryBudgetExhausted) {
			resp := newGenerateResponse(result)
			resp.Error = err.Error()
			s.jsonResponse(w, http.StatusUnprocessableEntity, resp)
			return
		}
		s.loggerFor(r).Error("generation run failed", "error", err)
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, newGenerateResponse(result))
}

// handleGenerateStream runs the generation loop and streams progress via SSE
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGenerateRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	logger := s.loggerFor(r)
	result, err := s.runner.Run(r.Context(), req, func(event generation.ProgressEvent) {
		if err := sse.WriteProgress(event); err != nil {
			logger.Warn("failed to write SSE event", "step", event.Step, "error", err)
		}
	})
	if err != nil {
		logger.Info("streaming run ended without content", "error", err)
		if werr := sse.WriteError(err); werr != nil {
			logger.Warn("failed to write SSE error", "error", werr)
		}
		return
	}

	if err := sse.WriteComplete(newGenerateResponse(result)); err != nil {
		logger.Warn("failed to write SSE completion", "error", err)
	}
}

// handleHistory lists previously accepted content, newest first
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, &ErrUnavailable{Resource: "history"})
		return
	}

	limit := db.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, &ErrValidation{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := s.history.History(r.Context(), limit)
	if err != nil {
		s.loggerFor(r).Error("failed to load history", "error", err)
		s.writeError(w, &ErrUnavailable{Resource: "history", Cause: err})
		return
	}
	if records == nil {
		records = []db.ContentRecord{}
	}

	s.jsonResponse(w, http.StatusOK, HistoryResponse{Items: records, Count: len(records)})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "database": "disabled"}

	if p, ok := s.history.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			resp["status"] = "degraded"
			resp["database"] = fmt.Sprintf("error: %v", err)
			s.jsonResponse(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}

	s.jsonResponse(w, http.StatusOK, resp)
}
