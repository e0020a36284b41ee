// Package executor drives agent runs on the hosting platform to a terminal
// state.
//
// Both modes share one polling loop:
//
//	create run → sleep PollInterval → get run → … until the status leaves
//	{queued, in_progress, requires_action} or MaxIterations fetches were made.
//
// In routing mode a requires_action status is answered inside the loop: every
// pending tool call goes through the Dispatcher and all outputs of the batch
// are submitted in a single call before the next poll. Direct mode never
// answers tool calls.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/agentoven/purview-router/internal/telemetry"
	"github.com/agentoven/purview-router/pkg/contracts"
	"github.com/agentoven/purview-router/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultPollInterval is the delay before each run status fetch.
	DefaultPollInterval = 200 * time.Millisecond
	// DefaultMaxIterations bounds the number of status fetches per run.
	DefaultMaxIterations = 30
)

// Mode selects how pending tool calls are handled.
type Mode string

const (
	ModeDirect  Mode = "direct"
	ModeRouting Mode = "routing"
)

// Executor runs agents on threads.
type Executor struct {
	runs     contracts.RunService
	dispatch *Dispatcher

	PollInterval  time.Duration
	MaxIterations int
}

// NewExecutor creates an executor with the default polling parameters.
func NewExecutor(runs contracts.RunService, dispatch *Dispatcher) *Executor {
	return &Executor{
		runs:          runs,
		dispatch:      dispatch,
		PollInterval:  DefaultPollInterval,
		MaxIterations: DefaultMaxIterations,
	}
}

// RunDirect runs agentID on the thread without tool-call handling.
func (e *Executor) RunDirect(ctx context.Context, threadID, agentID string) (*models.Run, error) {
	run, _, err := e.execute(ctx, ModeDirect, threadID, agentID)
	return run, err
}

// RunRouting runs the routing agent, answering its tool calls. The returned
// log lists every executed tool call in call order.
func (e *Executor) RunRouting(ctx context.Context, threadID, agentID string) (*models.Run, []string, error) {
	return e.execute(ctx, ModeRouting, threadID, agentID)
}

func (e *Executor) execute(ctx context.Context, mode Mode, threadID, agentID string) (*models.Run, []string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "executor.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.mode", string(mode)),
		attribute.String("thread.id", threadID),
		attribute.String("agent.id", agentID),
	)

	run, err := e.runs.CreateRun(ctx, threadID, agentID)
	if err != nil {
		return nil, nil, fmt.Errorf("create run: %w", err)
	}

	toolsCalled := []string{}
	fetches := 0
	for fetches < e.MaxIterations && run.Status.Active() {
		if err := sleep(ctx, e.PollInterval); err != nil {
			return nil, nil, err
		}
		run, err = e.runs.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("get run: %w", err)
		}
		fetches++

		log.Debug().
			Str("run_id", run.ID).
			Str("status", string(run.Status)).
			Int("iteration", fetches).
			Msg("Polled run")

		if mode == ModeRouting && run.Status == models.RunRequiresAction {
			entries, err := e.answerToolCalls(ctx, threadID, run)
			if err != nil {
				return nil, nil, err
			}
			toolsCalled = append(toolsCalled, entries...)
		}
	}

	telemetry.PollIterations.WithLabelValues("run_" + string(mode)).Observe(float64(fetches))
	telemetry.RunsFinished.WithLabelValues(string(mode), string(run.Status)).Inc()
	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.status", string(run.Status)),
		attribute.Int("run.fetches", fetches),
	)

	if run.Status.Active() {
		log.Warn().
			Str("run_id", run.ID).
			Str("status", string(run.Status)).
			Int("iterations", fetches).
			Msg("Run polling exhausted before a terminal status")
	}
	return run, toolsCalled, nil
}

// answerToolCalls dispatches every pending call and submits the outputs as
// one batch.
func (e *Executor) answerToolCalls(ctx context.Context, threadID string, run *models.Run) ([]string, error) {
	calls := run.PendingToolCalls()
	outputs := make([]models.ToolOutput, 0, len(calls))
	var entries []string

	for _, call := range calls {
		out, entry, err := e.dispatch.Dispatch(ctx, call)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
		if entry != "" {
			entries = append(entries, entry)
		}
	}

	if len(outputs) == 0 {
		return nil, nil
	}
	if _, err := e.runs.SubmitToolOutputs(ctx, threadID, run.ID, outputs); err != nil {
		return nil, fmt.Errorf("submit tool outputs: %w", err)
	}
	log.Debug().
		Str("run_id", run.ID).
		Int("outputs", len(outputs)).
		Msg("Submitted tool outputs")
	return entries, nil
}

// RunDetails lists the delegated agents and non-catalog functions recorded in
// the run's steps.
func (e *Executor) RunDetails(ctx context.Context, threadID, runID string) (connectedAgents, toolsCalled []string, err error) {
	steps, err := e.runs.ListRunSteps(ctx, threadID, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("list run steps: %w", err)
	}

	connectedAgents = []string{}
	toolsCalled = []string{}
	for _, step := range steps {
		for _, tc := range step.StepDetails.ToolCalls {
			switch tc.Type {
			case models.ToolConnectedAgent:
				if tc.ConnectedAgent == nil {
					continue
				}
				name, _ := tc.ConnectedAgent["name"].(string)
				if name == "" {
					name = "unknown"
				}
				connectedAgents = append(connectedAgents, name)
			case models.ToolFunction:
				if tc.Function == nil || IsCatalogSearch(tc.Function.Name) {
					continue
				}
				toolsCalled = append(toolsCalled, tc.Function.Name+"(...)")
			}
		}
	}
	return connectedAgents, toolsCalled, nil
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
