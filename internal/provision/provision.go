// Package provision creates the agent set the router runs against: the
// connected agents (optional Fabric, web search, document search) and the
// routing agent that delegates to them.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/agentoven/purview-router/internal/config"
	"github.com/agentoven/purview-router/internal/executor"
	"github.com/agentoven/purview-router/pkg/contracts"
	"github.com/agentoven/purview-router/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultPollInterval is the delay between file and vector store status checks.
	DefaultPollInterval = time.Second
	// DefaultMaxPolls bounds file and vector store processing waits.
	DefaultMaxPolls = 120
)

// Platform is the part of the hosting platform provisioning needs.
type Platform interface {
	contracts.AgentService
	contracts.FileService
}

// Set is a provisioned agent set. Cleanup lists the side resources that
// belong to it.
type Set struct {
	Routing   *models.Agent
	Connected *Registry
	Cleanup   models.CleanupResources
}

// Factory creates agents on the hosting platform.
type Factory struct {
	platform Platform
	cfg      config.AgentsConfig
	client   *http.Client

	PollInterval time.Duration
	MaxPolls     int
}

// NewFactory creates a factory for the configured model and connections.
func NewFactory(platform Platform, cfg config.AgentsConfig) *Factory {
	return &Factory{
		platform:     platform,
		cfg:          cfg,
		client:       &http.Client{Timeout: 5 * time.Minute},
		PollInterval: DefaultPollInterval,
		MaxPolls:     DefaultMaxPolls,
	}
}

// Provision creates every agent once. On failure the agents and resources
// created so far are returned alongside the error so the caller can release
// them.
func (f *Factory) Provision(ctx context.Context) (*Set, error) {
	set := &Set{Connected: NewRegistry()}

	fabric, err := f.CreateFabricAgent(ctx)
	if err != nil {
		return set, fmt.Errorf("create fabric agent: %w", err)
	}
	if fabric != nil {
		set.Connected.Add(FabricAgent, fabric)
	}

	web, err := f.CreateWebAgent(ctx)
	if err != nil {
		return set, fmt.Errorf("create web agent: %w", err)
	}
	set.Connected.Add(WebAgent, web)

	rag, resources, err := f.CreateRAGAgent(ctx)
	set.Cleanup = resources
	if err != nil {
		return set, fmt.Errorf("create rag agent: %w", err)
	}
	set.Connected.Add(RAGAgent, rag)

	routing, err := f.CreateRoutingAgent(ctx, set.Connected)
	if err != nil {
		return set, fmt.Errorf("create routing agent: %w", err)
	}
	set.Routing = routing

	log.Info().
		Str("routing_agent", routing.ID).
		Strs("connected_agents", set.Connected.Names()).
		Msg("✅ Agents provisioned")
	return set, nil
}

// CreateFabricAgent creates the Fabric data agent. It returns nil without an
// error when Fabric is disabled or no connection is configured.
func (f *Factory) CreateFabricAgent(ctx context.Context) (*models.Agent, error) {
	if !f.cfg.EnableFabric || f.cfg.FabricConnectionID == "" {
		log.Debug().Msg("Fabric agent disabled")
		return nil, nil
	}
	return f.create(ctx, &models.AgentDefinition{
		Model:        f.cfg.Model,
		Name:         fabricAgentName,
		Instructions: fabricInstructions,
		Tools: []models.ToolDefinition{{
			Type:   models.ToolFabric,
			Fabric: &models.FabricDataAgentTool{Connections: []models.ConnectionRef{{ConnectionID: f.cfg.FabricConnectionID}}},
		}},
	})
}

// CreateWebAgent creates the Bing-grounded web search agent.
func (f *Factory) CreateWebAgent(ctx context.Context) (*models.Agent, error) {
	return f.create(ctx, &models.AgentDefinition{
		Model:        f.cfg.Model,
		Name:         webAgentName,
		Instructions: webInstructions,
		Tools: []models.ToolDefinition{{
			Type:          models.ToolBingGrounding,
			BingGrounding: &models.BingGroundingTool{SearchConfigurations: []models.ConnectionRef{{ConnectionID: f.cfg.BingConnectionID}}},
		}},
	})
}

// CreateRAGAgent creates the document search agent over the reference
// document. The document is downloaded into the data directory on first use.
// The returned resources are filled in as they are created, also on error.
func (f *Factory) CreateRAGAgent(ctx context.Context) (*models.Agent, models.CleanupResources, error) {
	var res models.CleanupResources

	path, err := f.ensureDocument(ctx)
	if err != nil {
		return nil, res, err
	}

	file, err := f.uploadAndPoll(ctx, path)
	if file != nil {
		res.File = file
	}
	if err != nil {
		return nil, res, err
	}

	vs, err := f.createVectorStoreAndPoll(ctx, file.ID)
	if vs != nil {
		res.VectorStore = vs
	}
	if err != nil {
		return nil, res, err
	}

	agent, err := f.create(ctx, &models.AgentDefinition{
		Model:        f.cfg.Model,
		Name:         ragAgentName,
		Instructions: ragInstructions,
		Tools:        []models.ToolDefinition{{Type: models.ToolFileSearch}},
		ToolResources: &models.ToolResources{
			FileSearch: &models.FileSearchResources{VectorStoreIDs: []string{vs.ID}},
		},
	})
	if err != nil {
		return nil, res, err
	}
	return agent, res, nil
}

// CreateRoutingAgent creates the routing agent with the catalog and Genie
// functions plus one delegation tool per connected agent.
func (f *Factory) CreateRoutingAgent(ctx context.Context, connected *Registry) (*models.Agent, error) {
	return f.create(ctx, &models.AgentDefinition{
		Model:        f.cfg.Model,
		Name:         RoutingAgentName,
		Instructions: RoutingInstructions,
		Tools:        RoutingTools(connected),
	})
}

// RoutingTools returns the tool list of the routing agent.
func RoutingTools(connected *Registry) []models.ToolDefinition {
	tools := []models.ToolDefinition{
		{
			Type: models.ToolFunction,
			Function: &models.FunctionDefinition{
				Name:        string(executor.FuncSearchCatalog),
				Description: "Search the Microsoft Purview data catalog for data assets matching the query. Returns the assets with their descriptions, connected agents and contacts.",
				Parameters:  queryParameters("Single search term, e.g. 'blog' or 'software'"),
			},
		},
		{
			Type: models.ToolFunction,
			Function: &models.FunctionDefinition{
				Name:        string(executor.FuncHandoffGenie),
				Description: "Hand a data analysis question over to the Databricks Genie agent. Returns the full answer including generated SQL and result rows.",
				Parameters:  queryParameters("The data question to answer"),
			},
		},
	}
	connected.Each(func(name string, a *models.Agent) {
		tools = append(tools, models.ToolDefinition{
			Type: models.ToolConnectedAgent,
			ConnectedAgent: &models.ConnectedAgentTool{
				ID:          a.ID,
				Name:        name,
				Description: fmt.Sprintf("Delegate to %s based on the query and catalog results", name),
			},
		})
	})
	return tools
}

func (f *Factory) create(ctx context.Context, def *models.AgentDefinition) (*models.Agent, error) {
	a, err := f.platform.CreateAgent(ctx, def)
	if err != nil {
		return nil, err
	}
	log.Info().Str("name", def.Name).Str("id", a.ID).Msg("Agent created")
	return a, nil
}

// ensureDocument returns the local path of the reference document,
// downloading it when absent.
func (f *Factory) ensureDocument(ctx context.Context) (string, error) {
	if err := os.MkdirAll(f.cfg.DataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(f.cfg.DataDir, ragDocumentFile)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	url := f.cfg.RAGDocumentURL
	if url == "" {
		url = config.DefaultRAGDocumentURL
	}
	log.Info().Str("url", url).Str("path", path).Msg("Downloading reference document")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download reference document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download reference document: status %d", resp.StatusCode)
	}

	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename %s: %w", tmp, err)
	}
	return path, nil
}

// Platform file states.
const (
	fileProcessed = "processed"
	fileError     = "error"

	vectorStoreCompleted = "completed"
	vectorStoreExpired   = "expired"
)

// uploadAndPoll uploads the file and waits until the platform has processed
// it. The uploaded file is returned even when waiting fails.
func (f *Factory) uploadAndPoll(ctx context.Context, path string) (*models.File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	file, err := f.platform.UploadFile(ctx, filepath.Base(path), fh)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}

	for i := 0; i < f.MaxPolls && file.Status != fileProcessed; i++ {
		if file.Status == fileError {
			return file, fmt.Errorf("file %s failed processing", file.ID)
		}
		if err := sleep(ctx, f.PollInterval); err != nil {
			return file, err
		}
		next, err := f.platform.GetFile(ctx, file.ID)
		if err != nil {
			return file, fmt.Errorf("get file %s: %w", file.ID, err)
		}
		file = next
	}
	if file.Status != fileProcessed {
		return file, fmt.Errorf("file %s not processed, status %q", file.ID, file.Status)
	}
	log.Info().Str("file_id", file.ID).Msg("Reference document uploaded")
	return file, nil
}

// createVectorStoreAndPoll builds the vector store and waits for indexing to
// finish. The store is returned even when waiting fails.
func (f *Factory) createVectorStoreAndPoll(ctx context.Context, fileID string) (*models.VectorStore, error) {
	vs, err := f.platform.CreateVectorStore(ctx, ragVectorStoreName, []string{fileID})
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}

	for i := 0; i < f.MaxPolls && vs.Status != vectorStoreCompleted; i++ {
		if vs.Status == vectorStoreExpired {
			return vs, fmt.Errorf("vector store %s expired", vs.ID)
		}
		if err := sleep(ctx, f.PollInterval); err != nil {
			return vs, err
		}
		next, err := f.platform.GetVectorStore(ctx, vs.ID)
		if err != nil {
			return vs, fmt.Errorf("get vector store %s: %w", vs.ID, err)
		}
		vs = next
	}
	if vs.Status != vectorStoreCompleted {
		return vs, fmt.Errorf("vector store %s not ready, status %q", vs.ID, vs.Status)
	}
	log.Info().Str("vector_store_id", vs.ID).Msg("Vector store ready")
	return vs, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
