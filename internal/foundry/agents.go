package foundry

import (
	"context"
	"net/http"
	"net/url"

	"github.com/agentoven/purview-router/pkg/models"
)

// ── Agents ──────────────────────────────────────────────────

// CreateAgent registers an agent definition.
func (c *Client) CreateAgent(ctx context.Context, def *models.AgentDefinition) (*models.Agent, error) {
	var a models.Agent
	if err := c.do(ctx, http.MethodPost, "/assistants", nil, def, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAgent removes an agent.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	return c.do(ctx, http.MethodDelete, "/assistants/"+url.PathEscape(agentID), nil, nil, nil)
}

// ── Threads & messages ──────────────────────────────────────

// CreateThread opens an empty thread.
func (c *Client) CreateThread(ctx context.Context) (*models.Thread, error) {
	var t models.Thread
	if err := c.do(ctx, http.MethodPost, "/threads", nil, struct{}{}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetThread fetches a thread. A missing thread yields an *APIError with
// status 404.
func (c *Client) GetThread(ctx context.Context, threadID string) (*models.Thread, error) {
	var t models.Thread
	if err := c.do(ctx, http.MethodGet, threadPath(threadID), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

type createMessageRequest struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID string, role models.Role, content string) (*models.Message, error) {
	var m models.Message
	req := createMessageRequest{Role: role, Content: content}
	if err := c.do(ctx, http.MethodPost, threadPath(threadID)+"/messages", nil, req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns every message of the thread, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	return listAll[models.Message](ctx, c, threadPath(threadID)+"/messages", url.Values{"order": {"desc"}})
}

// ── Runs ────────────────────────────────────────────────────

type createRunRequest struct {
	AssistantID string `json:"assistant_id"`
}

// CreateRun starts an agent run on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, agentID string) (*models.Run, error) {
	var r models.Run
	if err := c.do(ctx, http.MethodPost, threadPath(threadID)+"/runs", nil, createRunRequest{AssistantID: agentID}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*models.Run, error) {
	var r models.Run
	if err := c.do(ctx, http.MethodGet, runPath(threadID, runID), nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

type submitToolOutputsRequest struct {
	ToolOutputs []models.ToolOutput `json:"tool_outputs"`
}

// SubmitToolOutputs answers all pending tool calls of a run in one request.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []models.ToolOutput) (*models.Run, error) {
	var r models.Run
	req := submitToolOutputsRequest{ToolOutputs: outputs}
	if err := c.do(ctx, http.MethodPost, runPath(threadID, runID)+"/submit_tool_outputs", nil, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRunSteps returns the recorded steps of a run in execution order.
func (c *Client) ListRunSteps(ctx context.Context, threadID, runID string) ([]models.RunStep, error) {
	return listAll[models.RunStep](ctx, c, runPath(threadID, runID)+"/steps", url.Values{"order": {"asc"}})
}

func threadPath(threadID string) string {
	return "/threads/" + url.PathEscape(threadID)
}

func runPath(threadID, runID string) string {
	return threadPath(threadID) + "/runs/" + url.PathEscape(runID)
}
