// Package router implements the Purview query orchestration service.
//
// The service owns one provisioned agent set per process. Every query
// operation initializes it lazily, acquires a thread, posts the user message
// and drives a run to completion through the executor:
//
//	ProcessQuery        → routing agent, tool calls answered in-loop
//	ProcessQueryDirect  → one named connected agent, no tool handling
//	AnalyzePurview      → catalog search only, no agents involved
//
// Initialization is serialized; concurrent first calls provision once. State
// reads (Health, Cleanup) never wait for an in-flight provisioning run.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agentoven/purview-router/internal/executor"
	"github.com/agentoven/purview-router/internal/messages"
	"github.com/agentoven/purview-router/internal/provision"
	"github.com/agentoven/purview-router/internal/telemetry"
	"github.com/agentoven/purview-router/pkg/contracts"
	"github.com/agentoven/purview-router/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is reported by Health.
const ServiceName = "Connected Agent Service"

const noResponse = "No response generated"

// Confidence levels reported by AnalyzePurview.
const (
	ConfidenceAssetsFound = 0.8
	ConfidenceNoAssets    = 0.3
)

// Provisioner creates the agent set on first use.
type Provisioner interface {
	Provision(ctx context.Context) (*provision.Set, error)
}

// Service is the orchestration engine.
type Service struct {
	platform    contracts.AgentPlatform
	provisioner Provisioner
	catalog     contracts.CatalogSearcher
	exec        *executor.Executor
	formatter   *messages.Formatter

	// initMu serializes provisioning. mu guards the fields below and is only
	// held for short reads and writes.
	initMu      sync.Mutex
	mu          sync.Mutex
	clientReady bool
	initialized bool
	set         *provision.Set
	// generation is bumped by Cleanup; a provisioning run that started in an
	// older generation releases its result.
	generation  uint64
}

// NewService wires the orchestration engine.
func NewService(platform contracts.AgentPlatform, provisioner Provisioner, catalog contracts.CatalogSearcher, exec *executor.Executor) *Service {
	return &Service{
		platform:    platform,
		provisioner: provisioner,
		catalog:     catalog,
		exec:        exec,
		formatter:   messages.NewFormatter(platform),
	}
}

// Initialize provisions the agent set. Calling it again after success is a
// no-op. A failed attempt releases whatever was created and may be retried.
func (s *Service) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.clientReady = true
	gen := s.generation
	s.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, "router.initialize")
	defer span.End()

	log.Info().Msg("🚀 Provisioning agents")
	set, err := s.provisioner.Provision(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if set != nil {
			s.release(ctx, set)
		}
		return fmt.Errorf("initialize agents: %w", err)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.release(ctx, set)
		return spanError(span, errReleased)
	}
	s.set = set
	s.initialized = true
	s.mu.Unlock()
	return nil
}

var errReleased = errors.New("initialize agents: service cleaned up during provisioning")

// agents returns the provisioned set, initializing on first use.
func (s *Service) agents(ctx context.Context) (*provision.Set, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set, nil
}

// getOrCreateThread fetches threadID, falling back to a new thread when it
// is empty or cannot be fetched.
func (s *Service) getOrCreateThread(ctx context.Context, threadID string) (*models.Thread, error) {
	if threadID != "" {
		th, err := s.platform.GetThread(ctx, threadID)
		if err == nil {
			return th, nil
		}
		log.Warn().Err(err).Str("thread_id", threadID).Msg("Thread lookup failed, creating a new thread")
	}
	th, err := s.platform.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return th, nil
}

// ProcessQueryDirect sends query straight to the named connected agent.
func (s *Service) ProcessQueryDirect(ctx context.Context, query, agentName, threadID string) (*models.QueryResult, error) {
	ctx, span := startSpan(ctx, "router.process_query_direct", attribute.String("agent.name", agentName))
	defer span.End()

	set, err := s.agents(ctx)
	if err != nil {
		return nil, spanError(span, err)
	}

	agent, ok := set.Connected.Get(agentName)
	if !ok {
		log.Warn().Str("agent", agentName).Msg("Direct call to unknown agent")
		return &models.QueryResult{
			Success:  false,
			Error:    "Unknown agent: " + agentName,
			Response: fmt.Sprintf("Agent '%s' is not available", agentName),
		}, nil
	}

	thread, err := s.postUserMessage(ctx, threadID, query)
	if err != nil {
		return nil, spanError(span, err)
	}

	run, err := s.exec.RunDirect(ctx, thread.ID, agent.ID)
	if err != nil {
		return nil, spanError(span, err)
	}

	response, annotations, err := s.extractResponse(ctx, thread.ID, run)
	if err != nil {
		return nil, spanError(span, err)
	}

	log.Info().
		Str("agent", agentName).
		Str("thread_id", thread.ID).
		Str("run_status", string(run.Status)).
		Msg("Direct query processed")

	return &models.QueryResult{
		Success:     true,
		Response:    response,
		Annotations: annotations,
		Metadata: &models.QueryMetadata{
			Query:      query,
			AgentUsed:  agentName,
			DirectCall: true,
			RunStatus:  run.Status,
			ThreadID:   thread.ID,
			RunID:      run.ID,
		},
	}, nil
}

// ProcessQuery lets the routing agent answer query.
func (s *Service) ProcessQuery(ctx context.Context, query, threadID string) (*models.QueryResult, error) {
	ctx, span := startSpan(ctx, "router.process_query")
	defer span.End()

	set, err := s.agents(ctx)
	if err != nil {
		return nil, spanError(span, err)
	}

	thread, err := s.postUserMessage(ctx, threadID, query)
	if err != nil {
		return nil, spanError(span, err)
	}

	run, toolsCalled, err := s.exec.RunRouting(ctx, thread.ID, set.Routing.ID)
	if err != nil {
		return nil, spanError(span, err)
	}

	response, annotations, err := s.extractResponse(ctx, thread.ID, run)
	if err != nil {
		return nil, spanError(span, err)
	}

	connectedAgents, stepTools, err := s.exec.RunDetails(ctx, thread.ID, run.ID)
	if err != nil {
		return nil, spanError(span, err)
	}
	toolsCalled = append(toolsCalled, stepTools...)

	span.SetAttributes(
		attribute.String("run.status", string(run.Status)),
		attribute.StringSlice("tools.called", toolsCalled),
		attribute.StringSlice("agents.called", connectedAgents),
	)
	log.Info().
		Str("thread_id", thread.ID).
		Str("run_status", string(run.Status)).
		Strs("tools_called", toolsCalled).
		Strs("connected_agents_called", connectedAgents).
		Msg("Query routed")

	return &models.QueryResult{
		Success:     true,
		Response:    response,
		Annotations: annotations,
		Metadata: &models.QueryMetadata{
			Query:                 query,
			RunStatus:             run.Status,
			ToolsCalled:           toolsCalled,
			ConnectedAgentsCalled: connectedAgents,
			ThreadID:              thread.ID,
			RunID:                 run.ID,
		},
	}, nil
}

// AnalyzePurview summarizes what the catalog knows about query.
func (s *Service) AnalyzePurview(ctx context.Context, query string) (*models.AnalyzeResult, error) {
	ctx, span := startSpan(ctx, "router.analyze_purview")
	defer span.End()

	res, err := s.catalog.Search(ctx, query)
	if err != nil {
		return nil, spanError(span, err)
	}

	var analysis string
	confidence := ConfidenceNoAssets
	if res.AssetsFound > 0 {
		confidence = ConfidenceAssetsFound
		primary := ""
		for _, asset := range res.Results {
			if asset.ConnectedAgent != nil && *asset.ConnectedAgent != "" {
				primary = *asset.ConnectedAgent
				break
			}
		}
		if primary != "" {
			analysis = fmt.Sprintf("Found %d relevant data assets. Primary agent: %s", len(res.Results), primary)
		} else {
			analysis = fmt.Sprintf("Found %d data assets but no connected agents available", len(res.Results))
		}
	} else {
		analysis = "No relevant data assets found in catalog. Query may require web search."
	}

	return &models.AnalyzeResult{
		Success:        true,
		Purview:        analysis,
		CatalogResults: res,
		Confidence:     confidence,
	}, nil
}

// GetThreadMessages returns the thread history oldest first.
func (s *Service) GetThreadMessages(ctx context.Context, threadID string) (*models.ThreadMessagesResult, error) {
	if _, err := s.agents(ctx); err != nil {
		return nil, err
	}

	msgs, err := s.platform.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	formatted, err := s.formatter.FormatHistory(ctx, msgs, threadID)
	if err != nil {
		return nil, err
	}
	return &models.ThreadMessagesResult{
		Success:      true,
		Messages:     formatted,
		ThreadID:     threadID,
		MessageCount: len(formatted),
	}, nil
}

// Health reports the engine's readiness without initializing it.
func (s *Service) Health() models.ServiceHealth {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := models.ServiceHealth{
		Service:            ServiceName,
		Initialized:        s.initialized,
		ProjectClientReady: s.clientReady && s.platform != nil,
	}
	if s.set != nil {
		h.AgentsCreated = s.set.Connected.Len()
		h.MainAgentReady = s.set.Routing != nil
	}
	return h
}

// Cleanup deletes the routing agent, the connected agents and the document
// index resources. Failures are logged and do not stop the remaining
// deletions.
func (s *Service) Cleanup(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	set := s.set
	s.set = nil
	s.initialized = false
	s.mu.Unlock()

	if set == nil {
		return
	}
	s.release(ctx, set)
}

func (s *Service) release(ctx context.Context, set *provision.Set) {
	if set.Routing != nil {
		s.deleteAgent(ctx, "routing", set.Routing.ID)
	}
	if set.Connected != nil {
		set.Connected.Each(func(name string, a *models.Agent) {
			s.deleteAgent(ctx, name, a.ID)
		})
	}
	if vs := set.Cleanup.VectorStore; vs != nil {
		if err := s.platform.DeleteVectorStore(ctx, vs.ID); err != nil {
			log.Warn().Err(err).Str("vector_store_id", vs.ID).Msg("Failed to delete vector store")
		}
	}
	if f := set.Cleanup.File; f != nil {
		if err := s.platform.DeleteFile(ctx, f.ID); err != nil {
			log.Warn().Err(err).Str("file_id", f.ID).Msg("Failed to delete file")
		}
	}
	log.Info().Msg("🧹 Agent resources released")
}

func (s *Service) deleteAgent(ctx context.Context, name, id string) {
	if err := s.platform.DeleteAgent(ctx, id); err != nil {
		log.Warn().Err(err).Str("agent", name).Str("agent_id", id).Msg("Failed to delete agent")
	}
}

func (s *Service) postUserMessage(ctx context.Context, threadID, query string) (*models.Thread, error) {
	thread, err := s.getOrCreateThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if _, err := s.platform.CreateMessage(ctx, thread.ID, models.RoleUser, query); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return thread, nil
}

// extractResponse returns the newest assistant message written by run.
// Replies from earlier runs on the same thread are skipped.
func (s *Service) extractResponse(ctx context.Context, threadID string, run *models.Run) (string, []models.Annotation, error) {
	if run.Status != models.RunCompleted {
		log.Warn().
			Str("thread_id", threadID).
			Str("run_id", run.ID).
			Str("run_status", string(run.Status)).
			Msg("Run did not complete")
	}

	msgs, err := s.platform.ListMessages(ctx, threadID)
	if err != nil {
		return "", nil, fmt.Errorf("list messages: %w", err)
	}
	for i := range msgs {
		m := &msgs[i]
		if m.Role != models.RoleAssistant || (m.RunID != "" && m.RunID != run.ID) {
			continue
		}
		return s.formatter.Extract(ctx, m)
	}
	return noResponse, []models.Annotation{}, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
