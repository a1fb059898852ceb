package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brunobiangulo/lawqa/dataset"
	"github.com/brunobiangulo/lawqa/reference"
)

type matchResponse struct {
	Section     string `json:"section"`
	LawName     string `json:"law_name,omitempty"`
	SectionName string `json:"section_name,omitempty"`
}

type resolveResponse struct {
	Citation    string                 `json:"citation"`
	Rule        string                 `json:"rule,omitempty"`
	Sections    []string               `json:"sections"`
	Matches     []matchResponse        `json:"matches"`
	Missing     []string               `json:"missing,omitempty"`
	Context     string                 `json:"context"`
	NeedsReview bool                   `json:"needs_review"`
	Diagnostics []reference.Diagnostic `json:"diagnostics,omitempty"`
}

func newResolveResponse(res reference.Result) resolveResponse {
	out := resolveResponse{
		Citation:    res.Citation,
		Rule:        res.Rule,
		Sections:    res.Sections,
		Matches:     make([]matchResponse, len(res.Matches)),
		Missing:     res.Missing,
		Context:     res.Context,
		NeedsReview: res.NeedsReview(),
		Diagnostics: res.Diagnostics,
	}
	if out.Sections == nil {
		out.Sections = []string{}
	}
	for i, m := range res.Matches {
		out.Matches[i] = matchResponse{
			Section:     m.Section,
			LawName:     m.Record.LawName(),
			SectionName: m.Record.SectionName(),
		}
	}
	return out
}

// POST /resolve
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Citation string `json:"citation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Citation) == "" {
		writeError(w, http.StatusBadRequest, "citation is required")
		return
	}

	writeJSON(w, http.StatusOK, newResolveResponse(s.resolver.Resolve(req.Citation)))
}

// POST /context
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Pairs []dataset.QAPair `json:"pairs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Pairs) > maxPairs {
		writeError(w, http.StatusRequestEntityTooLarge, "too many pairs")
		return
	}

	pairs, report, err := dataset.SetInputContext(ctx, req.Pairs, s.resolver, s.opts.Context)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "context resolution interrupted")
		slog.Error("context error", "pairs", len(req.Pairs), "error", err)
		return
	}
	if pairs == nil {
		pairs = []dataset.QAPair{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pairs":  pairs,
		"report": report,
	})
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sections": s.opts.Sections,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
