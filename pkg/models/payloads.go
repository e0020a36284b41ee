package models

// ── Orchestration payloads ───────────────────────────────────

// QueryResult is returned by the routing and direct query operations.
type QueryResult struct {
	Success     bool           `json:"success"`
	Response    string         `json:"response"`
	Annotations []Annotation   `json:"annotations"`
	Metadata    *QueryMetadata `json:"metadata,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// QueryMetadata is the bookkeeping attached to a QueryResult. Routing runs
// fill ToolsCalled and ConnectedAgentsCalled; direct calls set AgentUsed and
// DirectCall.
type QueryMetadata struct {
	Query                 string       `json:"query"`
	AgentUsed             string       `json:"agent_used,omitempty"`
	DirectCall            bool         `json:"direct_call,omitempty"`
	RunStatus             RunStatus    `json:"run_status,omitempty"`
	ToolsCalled           []string     `json:"tools_called,omitempty"`
	ConnectedAgentsCalled []string     `json:"connected_agents_called,omitempty"`
	ThreadID              string       `json:"thread_id"`
	RunID                 string       `json:"run_id,omitempty"`
	GenieDetails          *GenieResult `json:"genie_details,omitempty"`
}

// AnalyzeResult reports what the catalog says about a query.
type AnalyzeResult struct {
	Success        bool                 `json:"success"`
	Purview        string               `json:"purview"`
	CatalogResults *CatalogSearchResult `json:"catalog_results"`
	Confidence     float64              `json:"confidence"`
}

// ProcessResult combines a routed answer with the catalog analysis.
type ProcessResult struct {
	Success          bool             `json:"success"`
	Query            string           `json:"query"`
	PurviewAnalysis  string           `json:"purview_analysis"`
	Response         string           `json:"response"`
	Annotations      []Annotation     `json:"annotations"`
	Metadata         *QueryMetadata   `json:"metadata"`
	AnalysisMetadata AnalysisMetadata `json:"analysis_metadata"`
}

// AnalysisMetadata is the catalog side of a ProcessResult.
type AnalysisMetadata struct {
	CatalogResults *CatalogSearchResult `json:"catalog_results"`
	Confidence     float64              `json:"confidence"`
}

// ThreadMessagesResult is a thread's full history, oldest first.
type ThreadMessagesResult struct {
	Success      bool            `json:"success"`
	Messages     []ThreadMessage `json:"messages"`
	ThreadID     string          `json:"thread_id"`
	MessageCount int             `json:"message_count"`
}

// ServiceHealth describes the orchestration engine's readiness.
type ServiceHealth struct {
	Service            string `json:"service"`
	Initialized        bool   `json:"initialized"`
	AgentsCreated      int    `json:"agents_created"`
	MainAgentReady     bool   `json:"main_agent_ready"`
	ProjectClientReady bool   `json:"project_client_ready"`
}
