// Package models holds the data model shared by the catalog, conversation,
// orchestration and HTTP layers of the Purview router.
package models

import "encoding/json"

// ── Catalog ──────────────────────────────────────────────────

// CatalogAsset is one normalized catalog search hit.
type CatalogAsset struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	AssetID        string  `json:"asset_id"`
	ConnectedAgent *string `json:"connected_agent"`
	Contact        *string `json:"contact"`
}

// CatalogSearchResult is the outcome of a single catalog search.
// AssetsFound always equals len(Results).
type CatalogSearchResult struct {
	Status      string         `json:"status"`
	AssetsFound int            `json:"assets_found"`
	Results     []CatalogAsset `json:"results"`
}

// ── Hosting platform: agents ─────────────────────────────────

// Agent is the handle returned by the hosting platform for a created agent.
type Agent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Instructions string `json:"instructions,omitempty"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

// ToolType discriminates tool definitions attached to an agent.
type ToolType string

const (
	ToolFunction       ToolType = "function"
	ToolConnectedAgent ToolType = "connected_agent"
	ToolBingGrounding  ToolType = "bing_grounding"
	ToolFabric         ToolType = "fabric_dataagent"
	ToolFileSearch     ToolType = "file_search"
)

// ToolDefinition describes a tool the hosting platform exposes to an agent.
// Exactly one of the type-specific fields is set, matching Type.
type ToolDefinition struct {
	Type           ToolType             `json:"type"`
	Function       *FunctionDefinition  `json:"function,omitempty"`
	ConnectedAgent *ConnectedAgentTool  `json:"connected_agent,omitempty"`
	BingGrounding  *BingGroundingTool   `json:"bing_grounding,omitempty"`
	Fabric         *FabricDataAgentTool `json:"fabric_dataagent,omitempty"`
}

// FunctionDefinition is a callable function surfaced to the LLM.
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ConnectedAgentTool delegates to another agent on the platform.
type ConnectedAgentTool struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// BingGroundingTool grounds answers on web search results.
type BingGroundingTool struct {
	SearchConfigurations []ConnectionRef `json:"search_configurations"`
}

// FabricDataAgentTool gives an agent access to Fabric data sources.
type FabricDataAgentTool struct {
	Connections []ConnectionRef `json:"connections"`
}

// ConnectionRef points at a project connection by id.
type ConnectionRef struct {
	ConnectionID string `json:"connection_id"`
}

// ToolResources carries per-tool resources such as vector stores.
type ToolResources struct {
	FileSearch *FileSearchResources `json:"file_search,omitempty"`
}

// FileSearchResources lists the vector stores a file_search tool reads.
type FileSearchResources struct {
	VectorStoreIDs []string `json:"vector_store_ids"`
}

// AgentDefinition is the request body for creating an agent.
type AgentDefinition struct {
	Model         string           `json:"model"`
	Name          string           `json:"name"`
	Instructions  string           `json:"instructions"`
	Tools         []ToolDefinition `json:"tools,omitempty"`
	ToolResources *ToolResources   `json:"tool_resources,omitempty"`
}

// ── Hosting platform: files & vector stores ──────────────────

// File is an uploaded file on the hosting platform.
type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes,omitempty"`
	Purpose  string `json:"purpose,omitempty"`
	Status   string `json:"status,omitempty"`
}

// VectorStore is a document search index built over uploaded files.
type VectorStore struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// CleanupResources are the side resources created while provisioning the
// document-search agent. They are released together on shutdown.
type CleanupResources struct {
	VectorStore *VectorStore
	File        *File
}

// ── Hosting platform: threads, messages ──────────────────────

// Thread is an opaque conversation context.
type Thread struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// Role identifies the author of a thread message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a thread message as delivered by the hosting platform.
type Message struct {
	ID        string           `json:"id"`
	ThreadID  string           `json:"thread_id"`
	Role      Role             `json:"role"`
	Content   []MessageContent `json:"content"`
	CreatedAt int64            `json:"created_at"`
	// RunID names the run that wrote the message, empty for user messages.
	RunID     string           `json:"run_id,omitempty"`
}

// MessageContent is one content block of a message.
type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

// MessageText is a text block with its inline citation annotations.
type MessageText struct {
	Value       string              `json:"value"`
	Annotations []MessageAnnotation `json:"annotations,omitempty"`
}

// MessageAnnotation is a raw citation annotation attached to a text block.
type MessageAnnotation struct {
	Type         AnnotationType `json:"type"`
	Text         string         `json:"text"`
	StartIndex   int            `json:"start_index"`
	EndIndex     int            `json:"end_index"`
	FileCitation *FileCitation  `json:"file_citation,omitempty"`
	URLCitation  *URLCitation   `json:"url_citation,omitempty"`
}

// FileCitation references an uploaded file.
type FileCitation struct {
	FileID string `json:"file_id"`
	Quote  string `json:"quote,omitempty"`
}

// URLCitation references a web page.
type URLCitation struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// FileCitationAnnotations returns the file citations of all text blocks in
// block order.
func (m *Message) FileCitationAnnotations() []MessageAnnotation {
	return m.annotationsOf(AnnotationFileCitation)
}

// URLCitationAnnotations returns the url citations of all text blocks in
// block order.
func (m *Message) URLCitationAnnotations() []MessageAnnotation {
	return m.annotationsOf(AnnotationURLCitation)
}

func (m *Message) annotationsOf(t AnnotationType) []MessageAnnotation {
	var out []MessageAnnotation
	for _, c := range m.Content {
		if c.Text == nil {
			continue
		}
		for _, a := range c.Text.Annotations {
			if a.Type == t {
				out = append(out, a)
			}
		}
	}
	return out
}

// AnnotationType discriminates citation annotations.
type AnnotationType string

const (
	AnnotationFileCitation AnnotationType = "file_citation"
	AnnotationURLCitation  AnnotationType = "url_citation"
)

// Annotation is a formatted citation returned to callers.
type Annotation struct {
	Type       AnnotationType `json:"type"`
	Text       string         `json:"text"`
	StartIndex int            `json:"start_index"`
	EndIndex   int            `json:"end_index"`

	// file_citation
	FileID   string `json:"file_id,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Quote    string `json:"quote,omitempty"`

	// url_citation
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// ThreadMessage is a message decorated with its extracted text and
// annotations, as returned in thread history.
type ThreadMessage struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Annotations []Annotation `json:"annotations"`
	CreatedAt   int64        `json:"created_at"`
	ThreadID    string       `json:"thread_id"`
}

// ── Hosting platform: runs ───────────────────────────────────

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
)

// Active reports whether polling should continue. Any status outside
// queued, in_progress and requires_action is terminal.
func (s RunStatus) Active() bool {
	switch s {
	case RunQueued, RunInProgress, RunRequiresAction:
		return true
	}
	return false
}

// Run is one execution of an agent against a thread.
type Run struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	AgentID        string          `json:"assistant_id"`
	Status         RunStatus       `json:"status"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	LastError      *RunError       `json:"last_error,omitempty"`
}

// PendingToolCalls returns the tool calls awaiting output, if any.
func (r *Run) PendingToolCalls() []ToolCall {
	if r.RequiredAction == nil || r.RequiredAction.SubmitToolOutputs == nil {
		return nil
	}
	return r.RequiredAction.SubmitToolOutputs.ToolCalls
}

// RunError describes why a run failed.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RequiredAction is set on a run in the requires_action state.
type RequiredAction struct {
	Type              string             `json:"type"`
	SubmitToolOutputs *SubmitToolOutputs `json:"submit_tool_outputs,omitempty"`
}

// SubmitToolOutputs lists the tool calls that must be answered.
type SubmitToolOutputs struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

// ToolCall is a function invocation requested mid-run.
type ToolCall struct {
	ID       string        `json:"id"`
	Type     ToolType      `json:"type"`
	Function *FunctionCall `json:"function,omitempty"`
}

// FunctionCall carries the function name and JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolOutput answers one tool call.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// ── Hosting platform: run steps ──────────────────────────────

// RunStep is one recorded execution step of a run.
type RunStep struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	StepDetails RunStepDetails `json:"step_details"`
}

// RunStepDetails holds the tool calls made during a tool_calls step.
type RunStepDetails struct {
	Type      string            `json:"type"`
	ToolCalls []RunStepToolCall `json:"tool_calls,omitempty"`
}

// RunStepToolCall is a tool call recorded in a run step. ConnectedAgent is
// kept loosely typed because the platform attaches arbitrary details to it.
type RunStepToolCall struct {
	ID             string                 `json:"id"`
	Type           ToolType               `json:"type"`
	Function       *FunctionCall          `json:"function,omitempty"`
	ConnectedAgent map[string]interface{} `json:"connected_agent,omitempty"`
}

// ── Conversation backend (Genie) ─────────────────────────────

// GenieResult is the outcome of one conversation-adapter exchange. A
// successful exchange always carries every result key, with null standing in
// for a missing query or row count; a failed one encodes as a ToolError.
type GenieResult struct {
	Status         string  `json:"status"`
	Message        string  `json:"message,omitempty"`
	Response       string  `json:"response"`
	ConversationID string  `json:"conversation_id"`
	MessageID      string  `json:"message_id"`
	GeneratedQuery *string `json:"generated_query"`
	RowCount       *int    `json:"row_count"`
}

// OK reports whether the exchange succeeded.
func (g GenieResult) OK() bool { return g.Status == StatusSuccess }

// SQL returns the generated query, or "" when none was produced.
func (g GenieResult) SQL() string {
	if g.GeneratedQuery == nil {
		return ""
	}
	return *g.GeneratedQuery
}

func (g GenieResult) MarshalJSON() ([]byte, error) {
	if !g.OK() {
		return json.Marshal(ToolError{Status: g.Status, Message: g.Message})
	}
	type result GenieResult
	return json.Marshal(result(g))
}

// Shared status strings for tool-output payloads.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ToolError is the error-shaped payload returned to the LLM through the
// tool-output channel.
type ToolError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewToolError builds an error payload.
func NewToolError(msg string) ToolError {
	return ToolError{Status: StatusError, Message: msg}
}

// EncodeToolOutput serializes a tool result for the hosting platform.
func EncodeToolOutput(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(NewToolError("failed to encode tool output: " + err.Error()))
	}
	return string(b)
}
