// Package handlers implements the HTTP handlers of the Purview router.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/agentoven/purview-router/internal/config"
	"github.com/agentoven/purview-router/internal/provision"
	"github.com/agentoven/purview-router/pkg/contracts"
	"github.com/agentoven/purview-router/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// QueryService is the orchestration engine behind the query endpoints.
// Implementation: internal/router.Service
type QueryService interface {
	ProcessQuery(ctx context.Context, query, threadID string) (*models.QueryResult, error)
	ProcessQueryDirect(ctx context.Context, query, agentName, threadID string) (*models.QueryResult, error)
	AnalyzePurview(ctx context.Context, query string) (*models.AnalyzeResult, error)
	GetThreadMessages(ctx context.Context, threadID string) (*models.ThreadMessagesResult, error)
	Health() models.ServiceHealth
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Service QueryService
	Genie   contracts.GenieService
	Config  *config.Config
}

// New creates a new Handlers instance.
func New(svc QueryService, genie contracts.GenieService, cfg *config.Config) *Handlers {
	return &Handlers{Service: svc, Genie: genie, Config: cfg}
}

// maxBodyBytes caps request bodies of the query endpoints.
const maxBodyBytes = 1 << 20

// directAgents maps the short names accepted by /api/process-direct to
// registered connected agents. "genie" is handled separately.
var directAgents = map[string]string{
	"fabric": provision.FabricAgent,
	"rag":    provision.RAGAgent,
	"web":    provision.WebAgent,
}

const genieAgent = "genie"

type queryRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id"`
	Agent    string `json:"agent"`
}

var errEmptyQuery = errors.New("query must not be empty")

// decodeQuery reads a query request, trimming the query and agent.
func decodeQuery(r *http.Request) (*queryRequest, error) {
	var req queryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body: " + err.Error())
	}
	req.Query = strings.TrimSpace(req.Query)
	req.Agent = strings.TrimSpace(req.Agent)
	if req.Query == "" {
		return nil, errEmptyQuery
	}
	return &req, nil
}

// ── Query Handlers ──────────────────────────────────────────

// Analyze reports what the catalog knows about a query.
// POST /api/analyze
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.Service.AnalyzePurview(r.Context(), req.Query)
	if err != nil {
		h.fail(w, "analyze", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Route lets the routing agent answer a query.
// POST /api/route
func (h *Handlers) Route(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.Service.ProcessQuery(r.Context(), req.Query, req.ThreadID)
	if err != nil {
		h.fail(w, "route", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Process routes a query and attaches the catalog analysis.
// POST /api/process
func (h *Handlers) Process(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	routed, err := h.Service.ProcessQuery(r.Context(), req.Query, req.ThreadID)
	if err != nil {
		h.fail(w, "process", err)
		return
	}
	analysis, err := h.Service.AnalyzePurview(r.Context(), req.Query)
	if err != nil {
		h.fail(w, "process", err)
		return
	}

	annotations := routed.Annotations
	if annotations == nil {
		annotations = []models.Annotation{}
	}
	respondJSON(w, http.StatusOK, &models.ProcessResult{
		Success:         routed.Success,
		Query:           req.Query,
		PurviewAnalysis: analysis.Purview,
		Response:        routed.Response,
		Annotations:     annotations,
		Metadata:        routed.Metadata,
		AnalysisMetadata: models.AnalysisMetadata{
			CatalogResults: analysis.CatalogResults,
			Confidence:     analysis.Confidence,
		},
	})
}

// ProcessDirect sends a query to one named agent, bypassing the router.
// POST /api/process-direct
func (h *Handlers) ProcessDirect(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Agent == genieAgent {
		h.processGenie(w, r, req)
		return
	}

	agentName, ok := directAgents[req.Agent]
	if !ok {
		respondError(w, http.StatusBadRequest, "Unknown agent: "+req.Agent)
		return
	}
	res, err := h.Service.ProcessQueryDirect(r.Context(), req.Query, agentName, req.ThreadID)
	if err != nil {
		h.fail(w, "process-direct", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// processGenie asks Genie directly; no hosting-platform thread is involved.
func (h *Handlers) processGenie(w http.ResponseWriter, r *http.Request, req *queryRequest) {
	res, err := h.Genie.Ask(r.Context(), req.Query)
	if err != nil {
		h.fail(w, "process-direct genie", err)
		return
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = "genie-session"
	}
	respondJSON(w, http.StatusOK, &models.QueryResult{
		Success:     res.OK(),
		Response:    res.Response,
		Annotations: []models.Annotation{},
		Metadata: &models.QueryMetadata{
			Query:        req.Query,
			AgentUsed:    genieAgent,
			DirectCall:   true,
			ThreadID:     threadID,
			GenieDetails: res,
		},
	})
}

// ThreadMessages returns a thread's history, oldest first.
// GET /api/thread/{threadID}/messages
func (h *Handlers) ThreadMessages(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	if strings.TrimSpace(threadID) == "" {
		respondError(w, http.StatusBadRequest, "thread id is required")
		return
	}
	res, err := h.Service.GetThreadMessages(r.Context(), threadID)
	if err != nil {
		h.fail(w, "thread messages", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ── Info Handlers ───────────────────────────────────────────

// Health reports service readiness and missing configuration.
// GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":                  "ok",
		"connected_agent_service": h.Service.Health(),
		"configuration":           h.Config.Validate(),
	})
}

// FeatureConfig exposes the optional features to the UI.
// GET /api/config
func (h *Handlers) FeatureConfig(w http.ResponseWriter, r *http.Request) {
	fabric := h.Config.Agents.EnableFabric
	genie := h.Config.Genie.Configured()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"fabric_agent_enabled": fabric,
		"genie_configured":     genie,
		"features": map[string]bool{
			"fabric_agent_enabled": fabric,
			"genie_configured":     genie,
		},
	})
}

// Version reports the build version.
// GET /version
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version": h.Config.Version,
		"service": "purview-router",
	})
}

// ── Helpers ──────────────────────────────────────────────────

func (h *Handlers) fail(w http.ResponseWriter, op string, err error) {
	log.Error().Err(err).Str("op", op).Msg("Request failed")
	respondError(w, http.StatusInternalServerError, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"success": false, "error": message})
}
