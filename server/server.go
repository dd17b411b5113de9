// Package server exposes the interview system over HTTP: session lifecycle,
// chat turns, document preview/generation, and Jira submission.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/intakekit/intakekit/conversation"
	"github.com/intakekit/intakekit/render"
	"github.com/intakekit/intakekit/template"
)

// ContextFetcher seeds project context from a URL at session creation.
type ContextFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// IssueCreator submits a rendered document to the issue tracker.
type IssueCreator interface {
	Configured() bool
	CreateIssue(ctx context.Context, summary, description string) (string, error)
}

// Server wires the conversation core and its adapters behind a chi router.
type Server struct {
	manager   *conversation.Manager
	engine    *conversation.Engine
	templates *template.Registry
	fetcher   ContextFetcher
	issues    IssueCreator
	metrics   *Metrics
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithContextFetcher enables context_url on session creation.
func WithContextFetcher(f ContextFetcher) Option {
	return func(s *Server) {
		s.fetcher = f
	}
}

// WithIssueCreator enables the submit endpoint.
func WithIssueCreator(c IssueCreator) Option {
	return func(s *Server) {
		s.issues = c
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates the HTTP server facade.
func New(manager *conversation.Manager, engine *conversation.Engine, templates *template.Registry, metrics *Metrics, opts ...Option) *Server {
	s := &Server{
		manager:   manager,
		engine:    engine,
		templates: templates,
		metrics:   metrics,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/", s.handleListSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleCancelSession)
				r.Post("/messages", s.handleMessage)
				r.Get("/preview", s.handlePreview)
				r.Post("/generate", s.handleGenerate)
				r.Post("/submit", s.handleSubmit)
			})
		})
		r.Get("/templates", s.handleListTemplates)
	})

	return r
}

// --- DTOs ---

type createSessionRequest struct {
	Template       string `json:"template,omitempty"`
	ProjectContext string `json:"project_context,omitempty"`
	ContextURL     string `json:"context_url,omitempty"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type previewResponse struct {
	Markdown   string   `json:"markdown"`
	Completion float64  `json:"completion"`
	Missing    []string `json:"missing_required"`
}

type generateResponse struct {
	Markdown string            `json:"markdown"`
	HTML     string            `json:"html"`
	Sections map[string]string `json:"sections"`
}

type submitResponse struct {
	IssueKey string `json:"issue_key"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

// --- Handlers ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
	}

	projectContext := req.ProjectContext
	if req.ContextURL != "" {
		if s.fetcher == nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "context_url is not supported on this deployment"})
			return
		}
		fetched, err := s.fetcher.Fetch(r.Context(), req.ContextURL)
		if err != nil {
			s.logger.Warn("context fetch failed", "url", req.ContextURL, "error", err)
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to fetch context URL: " + err.Error()})
			return
		}
		if projectContext != "" {
			projectContext += "\n\n"
		}
		projectContext += fetched
	}

	view, err := s.manager.CreateSession(req.Template, projectContext)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.ListActive())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	// Read-only probe: must not extend the session's timeout window.
	view, ok := s.manager.TryGetSession(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.CancelSession(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	result, err := s.engine.Converse(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		if conversation.IsUpstream(err) && s.metrics != nil {
			s.metrics.chatFailures.Inc()
		}
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.turns.Inc()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	view, ok := s.manager.TryGetSession(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}

	t := s.templates.GetOrDefault(view.TemplateName)
	doc := render.Render(view.ExtractedData, t)
	score, missing := render.Completion(view.ExtractedData, t)
	writeJSON(w, http.StatusOK, previewResponse{
		Markdown:   doc.Markdown,
		Completion: score,
		Missing:    missing,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := s.manager.GetSession(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	t := s.templates.GetOrDefault(view.TemplateName)
	doc := render.Render(view.ExtractedData, t)

	if err := s.manager.MarkPrdGenerated(id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{
		Markdown: doc.Markdown,
		HTML:     doc.HTML,
		Sections: doc.Sections,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.issues == nil || !s.issues.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "issue tracker is not configured"})
		return
	}

	id := chi.URLParam(r, "id")
	view, err := s.manager.GetSession(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	t := s.templates.GetOrDefault(view.TemplateName)
	doc := render.Render(view.ExtractedData, t)

	summary := strings.TrimSpace(view.ExtractedData["title"])
	if summary == "" {
		summary = t.Name + " (interview " + id + ")"
	}

	key, err := s.issues.CreateIssue(r.Context(), summary, doc.Markdown)
	if err != nil {
		s.logger.Error("jira submission failed", "session_id", id, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "issue creation failed: " + err.Error()})
		return
	}

	if err := s.manager.MarkSubmittedToJira(id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{IssueKey: key})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	names, err := s.templates.Names()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "template discovery failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"templates": names})
}

// writeError maps core error types onto HTTP statuses: unknown id → 404,
// timed out → 410, wrong lifecycle state → 409, provider failure → 502.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case conversation.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case conversation.IsExpired(err):
		writeJSON(w, http.StatusGone, errorResponse{Error: err.Error()})
	case conversation.IsNotActive(err):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case conversation.IsUpstream(err):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
