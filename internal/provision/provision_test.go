package provision_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/purview-router/internal/config"
	"github.com/agentoven/purview-router/internal/provision"
	"github.com/agentoven/purview-router/pkg/models"
)

// fakePlatform records created agents and simulates file processing.
type fakePlatform struct {
	defs          []*models.AgentDefinition
	uploaded      map[string]string
	fileStatuses  []string
	storeStatuses []string
	fileGets      int
	storeGets     int
	failAgent     string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		uploaded:      map[string]string{},
		fileStatuses:  []string{"uploaded", "processed"},
		storeStatuses: []string{"in_progress", "completed"},
	}
}

func (p *fakePlatform) CreateAgent(_ context.Context, def *models.AgentDefinition) (*models.Agent, error) {
	if def.Name == p.failAgent {
		return nil, errors.New("quota exceeded")
	}
	p.defs = append(p.defs, def)
	return &models.Agent{ID: fmt.Sprintf("asst_%d", len(p.defs)), Name: def.Name, Model: def.Model}, nil
}

func (p *fakePlatform) DeleteAgent(context.Context, string) error { return nil }

func (p *fakePlatform) UploadFile(_ context.Context, name string, r io.Reader) (*models.File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p.uploaded[name] = string(data)
	return &models.File{ID: "file_1", Filename: name, Status: p.fileStatuses[0]}, nil
}

func (p *fakePlatform) GetFile(_ context.Context, id string) (*models.File, error) {
	p.fileGets++
	i := p.fileGets
	if i >= len(p.fileStatuses) {
		i = len(p.fileStatuses) - 1
	}
	return &models.File{ID: id, Status: p.fileStatuses[i]}, nil
}

func (p *fakePlatform) DeleteFile(context.Context, string) error { return nil }

func (p *fakePlatform) CreateVectorStore(_ context.Context, name string, ids []string) (*models.VectorStore, error) {
	return &models.VectorStore{ID: "vs_1", Name: name, Status: p.storeStatuses[0]}, nil
}

func (p *fakePlatform) GetVectorStore(_ context.Context, id string) (*models.VectorStore, error) {
	p.storeGets++
	i := p.storeGets
	if i >= len(p.storeStatuses) {
		i = len(p.storeStatuses) - 1
	}
	return &models.VectorStore{ID: id, Status: p.storeStatuses[i]}, nil
}

func (p *fakePlatform) DeleteVectorStore(context.Context, string) error { return nil }

func documentServer(t *testing.T, hits *int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.Write([]byte("%PDF-1.4 encarta"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFactory(t *testing.T, p *fakePlatform, cfg config.AgentsConfig) *provision.Factory {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = t.TempDir()
	}
	f := provision.NewFactory(p, cfg)
	f.PollInterval = 0
	return f
}

func TestProvision_WithoutFabric(t *testing.T) {
	hits := 0
	srv := documentServer(t, &hits)
	p := newFakePlatform()
	f := newFactory(t, p, config.AgentsConfig{BingConnectionID: "bing-1", RAGDocumentURL: srv.URL})

	set, err := f.Provision(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{provision.WebAgent, provision.RAGAgent}, set.Connected.Names())
	require.NotNil(t, set.Routing)
	assert.Equal(t, provision.RoutingAgentName, set.Routing.Name)
	require.NotNil(t, set.Cleanup.File)
	require.NotNil(t, set.Cleanup.VectorStore)
	assert.Equal(t, "file_1", set.Cleanup.File.ID)
	assert.Equal(t, "vs_1", set.Cleanup.VectorStore.ID)
	assert.Equal(t, 1, hits)

	require.Len(t, p.defs, 3)
	web := p.defs[0]
	assert.Equal(t, models.ToolBingGrounding, web.Tools[0].Type)
	assert.Equal(t, "bing-1", web.Tools[0].BingGrounding.SearchConfigurations[0].ConnectionID)

	rag := p.defs[1]
	assert.Equal(t, models.ToolFileSearch, rag.Tools[0].Type)
	assert.Equal(t, []string{"vs_1"}, rag.ToolResources.FileSearch.VectorStoreIDs)
	assert.Equal(t, "%PDF-1.4 encarta", p.uploaded["encarta_guide.pdf"])
}

func TestProvision_WithFabric(t *testing.T) {
	hits := 0
	srv := documentServer(t, &hits)
	p := newFakePlatform()
	f := newFactory(t, p, config.AgentsConfig{
		EnableFabric:       true,
		FabricConnectionID: "fabric-1",
		RAGDocumentURL:     srv.URL,
	})

	set, err := f.Provision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{provision.FabricAgent, provision.WebAgent, provision.RAGAgent}, set.Connected.Names())
	assert.Equal(t, models.ToolFabric, p.defs[0].Tools[0].Type)
	assert.Equal(t, "fabric-1", p.defs[0].Tools[0].Fabric.Connections[0].ConnectionID)
}

func TestCreateFabricAgent_RequiresConnection(t *testing.T) {
	p := newFakePlatform()
	f := newFactory(t, p, config.AgentsConfig{EnableFabric: true})

	agent, err := f.CreateFabricAgent(context.Background())
	require.NoError(t, err)
	assert.Nil(t, agent)
	assert.Empty(t, p.defs)
}

func TestRoutingTools(t *testing.T) {
	reg := provision.NewRegistry()
	reg.Add(provision.WebAgent, &models.Agent{ID: "asst_web"})
	reg.Add(provision.RAGAgent, &models.Agent{ID: "asst_rag"})

	tools := provision.RoutingTools(reg)
	require.Len(t, tools, 4)

	assert.Equal(t, models.ToolFunction, tools[0].Type)
	assert.Equal(t, "search_catalog", tools[0].Function.Name)
	assert.Equal(t, []string{"query"}, tools[0].Function.Parameters["required"])
	assert.Equal(t, "handoff_genie_agent", tools[1].Function.Name)

	assert.Equal(t, models.ToolConnectedAgent, tools[2].Type)
	assert.Equal(t, "asst_web", tools[2].ConnectedAgent.ID)
	assert.Equal(t, "web_agent", tools[2].ConnectedAgent.Name)
	assert.Equal(t, "Delegate to web_agent based on the query and catalog results", tools[2].ConnectedAgent.Description)
	assert.Equal(t, "rag_agent", tools[3].ConnectedAgent.Name)
}

func TestRoutingInstructions_EncodePolicy(t *testing.T) {
	for _, phrase := range []string{
		"ALWAYS start by using the search_catalog function",
		"ask clarifying questions",
		"use the web_agent",
		"MUST include the entire response text",
		"Do NOT summarize",
	} {
		assert.Contains(t, provision.RoutingInstructions, phrase)
	}
}

func TestCreateRAGAgent_ReusesDownloadedDocument(t *testing.T) {
	hits := 0
	srv := documentServer(t, &hits)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "encarta_guide.pdf"), []byte("cached"), 0o600))

	p := newFakePlatform()
	f := newFactory(t, p, config.AgentsConfig{DataDir: dir, RAGDocumentURL: srv.URL})

	_, _, err := f.CreateRAGAgent(context.Background())
	require.NoError(t, err)
	assert.Zero(t, hits)
	assert.Equal(t, "cached", p.uploaded["encarta_guide.pdf"])
}

func TestCreateRAGAgent_FileProcessingFails(t *testing.T) {
	hits := 0
	srv := documentServer(t, &hits)
	p := newFakePlatform()
	p.fileStatuses = []string{"uploaded", "error"}
	f := newFactory(t, p, config.AgentsConfig{RAGDocumentURL: srv.URL})

	agent, res, err := f.CreateRAGAgent(context.Background())
	require.Error(t, err)
	assert.Nil(t, agent)
	require.NotNil(t, res.File, "uploaded file is still reported for cleanup")
	assert.Nil(t, res.VectorStore)
}

func TestCreateRAGAgent_VectorStoreNeverReady(t *testing.T) {
	hits := 0
	srv := documentServer(t, &hits)
	p := newFakePlatform()
	p.storeStatuses = []string{"in_progress"}
	f := newFactory(t, p, config.AgentsConfig{RAGDocumentURL: srv.URL})
	f.MaxPolls = 3

	_, res, err := f.CreateRAGAgent(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, p.storeGets)
	require.NotNil(t, res.VectorStore)
	require.NotNil(t, res.File)
}

func TestProvision_PartialFailureReturnsCreatedAgents(t *testing.T) {
	hits := 0
	srv := documentServer(t, &hits)
	p := newFakePlatform()
	p.failAgent = provision.RoutingAgentName
	f := newFactory(t, p, config.AgentsConfig{RAGDocumentURL: srv.URL})

	set, err := f.Provision(context.Background())
	require.Error(t, err)
	require.NotNil(t, set)
	assert.Nil(t, set.Routing)
	assert.Equal(t, 2, set.Connected.Len())
	assert.NotNil(t, set.Cleanup.VectorStore)
}

func TestRegistry_KeepsInsertionOrder(t *testing.T) {
	reg := provision.NewRegistry()
	reg.Add("b", &models.Agent{ID: "1"})
	reg.Add("a", &models.Agent{ID: "2"})
	reg.Add("b", &models.Agent{ID: "3"})

	assert.Equal(t, []string{"b", "a"}, reg.Names())
	got, ok := reg.Get("b")
	require.True(t, ok)
	assert.Equal(t, "3", got.ID)
	_, ok = reg.Get("missing")
	assert.False(t, ok)
}
