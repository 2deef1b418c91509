package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/findora/tool-radar/internal/assistant"
	"github.com/findora/tool-radar/internal/catalog"
	"github.com/findora/tool-radar/internal/discovery"
	"github.com/findora/tool-radar/internal/enrichment"
	"github.com/findora/tool-radar/internal/models"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	sessionHeader = "X-Session-ID"
	adminHeader   = "X-Admin-Key"
	maxCompare    = 4
)

// Jobs queues and reports enrichment jobs
type Jobs interface {
	Submit(ctx context.Context, url, toolID string) (*models.AnalysisJob, error)
	Job(ctx context.Context, id string) (*models.AnalysisJob, error)
}

// Monitor exposes mention monitoring to the operational endpoints
type Monitor interface {
	RunMonitoring(ctx context.Context) (*models.Report, error)
	GetMetrics() string
}

// Deps are the services the API is built on. Jobs and Monitor may be nil,
// which disables their endpoints.
type Deps struct {
	Discovery    *discovery.Service
	Sessions     *discovery.SessionRegistry
	Chat         *assistant.ChatManager
	TaskSearch   *assistant.TaskSearch
	Workflows    *assistant.WorkflowGenerator
	Jobs         Jobs
	Monitor      Monitor
	AdminKey     string
	DefaultLimit int
}

// Server holds the HTTP handlers of the directory API
type Server struct {
	Deps
}

// NewServer creates the API server
func NewServer(deps Deps) *Server {
	if deps.DefaultLimit <= 0 {
		deps.DefaultLimit = 20
	}
	if deps.Sessions == nil {
		deps.Sessions = discovery.NewSessionRegistry(30 * time.Minute)
	}
	return &Server{Deps: deps}
}

// Router registers every route
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	router.HandleFunc("/health", s.health).Methods("GET")
	router.HandleFunc("/metrics", s.metrics).Methods("GET")
	router.HandleFunc("/trigger", s.trigger).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tools", s.listTools).Methods("GET")
	api.HandleFunc("/tools/{id}", s.getTool).Methods("GET")
	api.HandleFunc("/tools/{id}/trust", s.getTrust).Methods("GET")
	api.HandleFunc("/compare", s.compare).Methods("GET")
	api.HandleFunc("/categories", s.categories).Methods("GET")
	api.HandleFunc("/workflows/generate", s.generateWorkflow).Methods("POST")
	api.HandleFunc("/search/task", s.searchTask).Methods("POST")
	api.HandleFunc("/chat", s.startChat).Methods("POST")
	api.HandleFunc("/chat/{id}/messages", s.sendChat).Methods("POST")
	api.HandleFunc("/chat/{id}", s.closeChat).Methods("DELETE")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/analyze", s.analyze).Methods("POST")
	admin.HandleFunc("/jobs/{id}", s.getJob).Methods("GET")

	return router
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey != "" && r.Header.Get(adminHeader) != s.AdminKey {
			respondWithError(w, http.StatusUnauthorized, "Invalid admin key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	if s.Monitor == nil {
		respondWithJSON(w, http.StatusOK, map[string]string{})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.Monitor.GetMetrics()))
}

func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	if s.Monitor == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Monitoring is not configured", nil)
		return
	}

	go func() {
		if _, err := s.Monitor.RunMonitoring(context.Background()); err != nil {
			logrus.Errorf("Manual monitoring trigger failed: %v", err)
		}
	}()

	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Monitoring triggered successfully"})
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r.URL.Query(), s.DefaultLimit)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid query parameter", err)
		return
	}

	session := s.Sessions.Get(r.Header.Get(sessionHeader))
	result, err := s.Discovery.List(r.Context(), session, req)
	if errors.Is(err, discovery.ErrStale) {
		respondWithError(w, http.StatusConflict, "Request superseded by a newer one", err)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch tools", err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) getTool(w http.ResponseWriter, r *http.Request) {
	tool, err := s.Discovery.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, discovery.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Tool not found", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch tool", err)
		return
	}
	respondWithJSON(w, http.StatusOK, tool)
}

type trustResponse struct {
	*models.TrustScore
	Label string `json:"label"`
}

func (s *Server) getTrust(w http.ResponseWriter, r *http.Request) {
	trust, err := s.Discovery.Trust(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, discovery.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Trust score not found", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch trust score", err)
		return
	}
	respondWithJSON(w, http.StatusOK, trustResponse{TrustScore: trust, Label: models.TrustLabel(trust.Overall)})
}

type comparedTool struct {
	Tool  *models.Tool       `json:"tool"`
	Trust *models.TrustScore `json:"trust"`
	Label string             `json:"trustLabel,omitempty"`
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	ids := listValues(r.URL.Query(), "ids")
	if len(ids) < 2 || len(ids) > maxCompare {
		respondWithError(w, http.StatusBadRequest, "Between 2 and 4 tool ids are required", nil)
		return
	}

	compared := make([]comparedTool, 0, len(ids))
	for _, id := range ids {
		tool, err := s.Discovery.Get(r.Context(), id)
		if errors.Is(err, discovery.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Tool not found: "+id, nil)
			return
		}
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to fetch tool", err)
			return
		}

		entry := comparedTool{Tool: tool}
		if trust, err := s.Discovery.Trust(r.Context(), id); err == nil {
			entry.Trust = trust
			entry.Label = models.TrustLabel(trust.Overall)
		}
		compared = append(compared, entry)
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"tools": compared})
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	counts, tier := s.Discovery.Categories(r.Context())
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"categories": counts,
		"tier":       tier,
	})
}

func (s *Server) generateWorkflow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Goal string `json:"goal"`
	}
	if err := decodeBody(w, r, &body); err != nil || strings.TrimSpace(body.Goal) == "" {
		respondWithError(w, http.StatusBadRequest, "Goal is required", err)
		return
	}

	workflow, err := s.Workflows.Generate(r.Context(), body.Goal, s.Discovery.Catalog(r.Context()))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to generate workflow", err)
		return
	}
	respondWithJSON(w, http.StatusOK, workflow)
}

func (s *Server) searchTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Task string `json:"task"`
	}
	if err := decodeBody(w, r, &body); err != nil || strings.TrimSpace(body.Task) == "" {
		respondWithError(w, http.StatusBadRequest, "Task is required", err)
		return
	}

	tools := s.Discovery.Catalog(r.Context())
	match, err := s.TaskSearch.Search(r.Context(), body.Task, tools)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to search tools", err)
		return
	}

	byID := make(map[string]models.Tool, len(tools))
	for _, t := range tools {
		byID[t.ID] = t
	}
	matched := make([]models.Tool, 0, len(match.ToolIDs))
	for _, id := range match.ToolIDs {
		if t, ok := byID[id]; ok {
			matched = append(matched, t)
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"toolIds":   match.ToolIDs,
		"reasoning": match.Reasoning,
		"tools":     matched,
	})
}

func (s *Server) chatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assistant.ErrDisabled):
		respondWithError(w, http.StatusServiceUnavailable, "Chat is not available", nil)
	case errors.Is(err, assistant.ErrSessionNotFound):
		respondWithError(w, http.StatusNotFound, "Chat session not found", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, "Chat failed", err)
	}
}

func (s *Server) startChat(w http.ResponseWriter, r *http.Request) {
	if s.Chat == nil || !s.Chat.Enabled() {
		s.chatError(w, assistant.ErrDisabled)
		return
	}

	id, err := s.Chat.Start(r.Context(), s.Discovery.Catalog(r.Context()))
	if err != nil {
		s.chatError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"sessionId": id})
}

func (s *Server) sendChat(w http.ResponseWriter, r *http.Request) {
	if s.Chat == nil {
		s.chatError(w, assistant.ErrDisabled)
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := decodeBody(w, r, &body); err != nil || strings.TrimSpace(body.Message) == "" {
		respondWithError(w, http.StatusBadRequest, "Message is required", err)
		return
	}

	reply, err := s.Chat.Send(r.Context(), mux.Vars(r)["id"], body.Message)
	if err != nil {
		s.chatError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) closeChat(w http.ResponseWriter, r *http.Request) {
	if s.Chat == nil {
		s.chatError(w, assistant.ErrDisabled)
		return
	}
	if err := s.Chat.Close(mux.Vars(r)["id"]); err != nil {
		s.chatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	if s.Jobs == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Enrichment is not configured", nil)
		return
	}

	var body struct {
		URL    string `json:"url"`
		ToolID string `json:"toolId"`
	}
	if err := decodeBody(w, r, &body); err != nil || strings.TrimSpace(body.URL) == "" {
		respondWithError(w, http.StatusBadRequest, "URL is required", err)
		return
	}

	job, err := s.Jobs.Submit(r.Context(), body.URL, body.ToolID)
	if errors.Is(err, enrichment.ErrInvalidURL) {
		respondWithError(w, http.StatusBadRequest, "Invalid URL", err)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to queue analysis", err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	if s.Jobs == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Enrichment is not configured", nil)
		return
	}

	job, err := s.Jobs.Job(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, catalog.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Job not found", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch job", err)
		return
	}
	respondWithJSON(w, http.StatusOK, job)
}
