package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentoven/purview-router/internal/telemetry"
	"github.com/agentoven/purview-router/pkg/contracts"
	"github.com/agentoven/purview-router/pkg/models"
	"github.com/rs/zerolog/log"
)

// Function names a tool function the routing agent may call.
type Function string

const (
	FuncSearchCatalog         Function = "search_catalog"
	FuncSearchCatalogInternal Function = "_search_catalog"
	FuncHandoffGenie          Function = "handoff_genie_agent"
)

// IsCatalogSearch reports whether name is one of the catalog search aliases.
func IsCatalogSearch(name string) bool {
	return Function(name) == FuncSearchCatalog || Function(name) == FuncSearchCatalogInternal
}

// toolHandler answers one tool call. The value is encoded as the tool output.
type toolHandler func(ctx context.Context, query string) (interface{}, error)

type tool struct {
	// label is the name written to the tools-called log.
	label string
	run   toolHandler
}

// Dispatcher maps tool function names to backend calls.
type Dispatcher struct {
	tools map[Function]tool
}

// NewDispatcher builds the dispatch table over the catalog and Genie adapters.
func NewDispatcher(catalog contracts.CatalogSearcher, genie contracts.GenieService) *Dispatcher {
	search := tool{
		label: string(FuncSearchCatalog),
		run: func(ctx context.Context, q string) (interface{}, error) {
			return catalog.Search(ctx, q)
		},
	}
	return &Dispatcher{tools: map[Function]tool{
		FuncSearchCatalog:         search,
		FuncSearchCatalogInternal: search,
		FuncHandoffGenie: {
			label: string(FuncHandoffGenie),
			run: func(ctx context.Context, q string) (interface{}, error) {
				return genie.Ask(ctx, q)
			},
		},
	}}
}

type queryArgs struct {
	Query *string `json:"query"`
}

// Dispatch answers a single tool call. It always yields exactly one output
// for the call; entry is the tools-called log line, empty when the call was
// not executed. Only adapter failures are returned as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, call models.ToolCall) (out models.ToolOutput, entry string, err error) {
	out.ToolCallID = call.ID

	if call.Type != models.ToolFunction || call.Function == nil {
		telemetry.ToolCalls.WithLabelValues(string(call.Type), "rejected").Inc()
		out.Output = models.EncodeToolOutput(models.NewToolError(fmt.Sprintf("Unsupported tool call type: %s", call.Type)))
		return out, "", nil
	}

	name := call.Function.Name
	t, ok := d.tools[Function(name)]
	if !ok {
		log.Warn().Str("function", name).Str("tool_call_id", call.ID).Msg("Unknown function requested")
		telemetry.ToolCalls.WithLabelValues("unknown", "rejected").Inc()
		out.Output = models.EncodeToolOutput(models.NewToolError("Unknown function: " + name))
		return out, "", nil
	}

	var args queryArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || args.Query == nil {
		msg := fmt.Sprintf("Invalid arguments for %s: expected {\"query\": string}", name)
		telemetry.ToolCalls.WithLabelValues(t.label, "rejected").Inc()
		out.Output = models.EncodeToolOutput(models.NewToolError(msg))
		return out, "", nil
	}
	query := *args.Query

	log.Info().Str("function", t.label).Str("query", query).Msg("Dispatching tool call")
	res, err := t.run(ctx, query)
	if err != nil {
		telemetry.ToolCalls.WithLabelValues(t.label, "error").Inc()
		return out, "", fmt.Errorf("%s: %w", t.label, err)
	}
	telemetry.ToolCalls.WithLabelValues(t.label, "ok").Inc()

	out.Output = models.EncodeToolOutput(res)
	return out, fmt.Sprintf("%s('%s')", t.label, query), nil
}
