// Package contracts defines the collaborator interfaces of the Purview router.
//
// The router core depends only on these interfaces. Concrete implementations
// live in internal/ (auth, catalog, genie, foundry) and tests substitute
// in-memory fakes.
package contracts

import (
	"context"
	"io"

	"github.com/agentoven/purview-router/pkg/models"
)

// ── Credentials ─────────────────────────────────────────────

// TokenProvider acquires bearer tokens for a resource scope.
// Implementation: internal/auth.AzureTokenProvider, internal/auth.StaticTokenProvider
type TokenProvider interface {
	GetToken(ctx context.Context, scope string) (string, error)
}

// ── Adapters ────────────────────────────────────────────────

// CatalogSearcher searches the data catalog by keyword.
// Implementation: internal/catalog.Service
type CatalogSearcher interface {
	Search(ctx context.Context, query string) (*models.CatalogSearchResult, error)
}

// GenieService drives a long-running conversation against the structured-data
// query backend. Configuration and terminal-status problems come back as an
// error-status result; only transport faults are returned as errors.
// Implementation: internal/genie.Client
type GenieService interface {
	Ask(ctx context.Context, query string) (*models.GenieResult, error)
	Configured() bool
}

// FileGetter looks up uploaded file metadata.
type FileGetter interface {
	GetFile(ctx context.Context, fileID string) (*models.File, error)
}

// ── Agent hosting platform ──────────────────────────────────

// AgentPlatform is the full capability-execution service.
// Implementation: internal/foundry.Client
type AgentPlatform interface {
	AgentService
	ThreadService
	RunService
	FileService
}

// AgentService manages agent definitions.
type AgentService interface {
	CreateAgent(ctx context.Context, def *models.AgentDefinition) (*models.Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error
}

// ThreadService manages threads and their messages.
type ThreadService interface {
	CreateThread(ctx context.Context) (*models.Thread, error)
	GetThread(ctx context.Context, threadID string) (*models.Thread, error)
	CreateMessage(ctx context.Context, threadID string, role models.Role, content string) (*models.Message, error)
	// ListMessages returns the thread's messages newest first.
	ListMessages(ctx context.Context, threadID string) ([]models.Message, error)
}

// RunService creates and drives agent runs.
type RunService interface {
	CreateRun(ctx context.Context, threadID, agentID string) (*models.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*models.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []models.ToolOutput) (*models.Run, error)
	ListRunSteps(ctx context.Context, threadID, runID string) ([]models.RunStep, error)
}

// FileService manages uploaded files and vector stores.
type FileService interface {
	FileGetter
	UploadFile(ctx context.Context, filename string, content io.Reader) (*models.File, error)
	DeleteFile(ctx context.Context, fileID string) error
	CreateVectorStore(ctx context.Context, name string, fileIDs []string) (*models.VectorStore, error)
	GetVectorStore(ctx context.Context, vectorStoreID string) (*models.VectorStore, error)
	DeleteVectorStore(ctx context.Context, vectorStoreID string) error
}
