package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/observability"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/apierr"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/envutil"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/logger"
)

// LogSink persists audit entries for a session. Logging is best effort: a
// sink failure never aborts the run.
type LogSink interface {
	Append(ctx context.Context, entry *types.AgentLogEntry) error
}

type Config struct {
	MaxIterations int
	StepTimeout   time.Duration
	ToolTimeout   time.Duration
	RetryBackoff  time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		MaxIterations: envutil.Int("AGENT_MAX_ITERATIONS", 8),
		StepTimeout:   envutil.Seconds("AGENT_STEP_TIMEOUT_SECONDS", 60*time.Second),
		ToolTimeout:   envutil.Seconds("AGENT_TOOL_TIMEOUT_SECONDS", 30*time.Second),
		RetryBackoff:  envutil.Seconds("AGENT_RETRY_BACKOFF_SECONDS", 2*time.Second),
	}
}

func (c Config) normalized() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 8
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 60 * time.Second
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = 30 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	return c
}

// Orchestrator runs the bounded reason/act loop: ask the reasoner for a step,
// execute its tool requests, seal the step, repeat until the reasoner reports
// completion or the iteration cap is hit.
type Orchestrator struct {
	log      *logger.Logger
	reasoner Reasoner
	tools    *Toolbox
	sink     LogSink
	cfg      Config
}

func NewOrchestrator(log *logger.Logger, reasoner Reasoner, tools *Toolbox, sink LogSink, cfg Config) *Orchestrator {
	return &Orchestrator{
		log:      log.With("component", "orchestrator"),
		reasoner: reasoner,
		tools:    tools,
		sink:     sink,
		cfg:      cfg.normalized(),
	}
}

type RunInput struct {
	DocumentID uuid.UUID
	UserID     uuid.UUID
	ChatID     *uuid.UUID

	UserMessage string
	Mode        string

	// Optional 1-based inclusive focus range.
	StartLine *int
	EndLine   *int
}

// Run executes one agent session. All partial-result contracts hold: on
// cancellation or a provider timeout the accumulated steps come back with
// IsComplete=false and a nil error; only access denial and provider outages
// surface as errors, and even then alongside whatever was already sealed.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (types.AgentResponse, error) {
	ctx, span := observability.Tracer().Start(ctx, "agent.run")
	span.SetAttributes(
		attribute.String("document.id", in.DocumentID.String()),
		attribute.String("user.id", in.UserID.String()),
	)
	defer span.End()

	st := &SessionState{
		DocumentID:  in.DocumentID,
		UserID:      in.UserID,
		ChatID:      in.ChatID,
		UserMessage: in.UserMessage,
		Mode:        in.Mode,
		FocusStart:  in.StartLine,
		FocusEnd:    in.EndLine,
	}

	o.append(ctx, st, types.AgentLogReasoning, "session start: "+in.UserMessage, nil, nil)

	resp := types.AgentResponse{}
	seen := map[string]bool{}

	for st.Iteration < o.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			o.append(ctx, st, types.AgentLogError, "session cancelled", nil, nil)
			resp.Steps = st.Steps
			resp.FinalMessage = "The request was cancelled before the agent finished."
			return resp, nil
		}

		decision, err := o.nextStep(ctx, st)
		if err != nil {
			return o.stepFailure(ctx, st, resp, err)
		}

		step := types.AgentStep{
			StepNumber:  st.Iteration + 1,
			Description: decision.Description,
		}
		o.append(ctx, st, types.AgentLogReasoning, decision.Description, nil, openStep(st))

		if len(decision.ToolRequests) > 0 {
			calls, err := o.runTools(ctx, st, decision.ToolRequests)
			if err != nil {
				return o.stepFailure(ctx, st, resp, err)
			}
			step.ToolCalls = calls
			if len(calls) == 1 {
				step.ToolResult = calls[0].Result
			}
		}

		if len(decision.Changes) > 0 {
			step.DocumentChanges = o.sealChanges(ctx, st, decision.Changes, seen)
		}

		st.Steps = append(st.Steps, step)
		st.Iteration++

		if decision.Done {
			resp.Steps = st.Steps
			resp.FinalMessage = decision.FinalMessage
			resp.IsComplete = true
			o.append(ctx, st, types.AgentLogReasoning, "session complete: "+decision.FinalMessage, nil, nil)
			return resp, nil
		}
	}

	o.append(ctx, st, types.AgentLogError, fmt.Sprintf("aborted after %d iterations", o.cfg.MaxIterations), nil, nil)
	resp.Steps = st.Steps
	resp.FinalMessage = fmt.Sprintf("The agent stopped after %d steps without finishing; the partial results above may still be useful.", o.cfg.MaxIterations)
	return resp, nil
}

func (o *Orchestrator) nextStep(ctx context.Context, st *SessionState) (StepDecision, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	defer cancel()
	return o.reasoner.NextStep(stepCtx, st)
}

// stepFailure maps a failed reasoning step onto the partial-result contract.
func (o *Orchestrator) stepFailure(ctx context.Context, st *SessionState, resp types.AgentResponse, err error) (types.AgentResponse, error) {
	resp.Steps = st.Steps

	switch {
	case errors.Is(err, apierr.ErrAccessDenied):
		o.append(ctx, st, types.AgentLogError, "access denied", nil, openStep(st))
		return resp, err
	case errors.Is(err, apierr.ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		o.append(ctx, st, types.AgentLogError, "provider timeout: "+err.Error(), nil, openStep(st))
		resp.FinalMessage = "The language model did not answer in time; partial progress is preserved above."
		return resp, nil
	case errors.Is(err, context.Canceled):
		o.append(ctx, st, types.AgentLogError, "session cancelled", nil, openStep(st))
		resp.FinalMessage = "The request was cancelled before the agent finished."
		return resp, nil
	default:
		o.append(ctx, st, types.AgentLogError, "provider failure: "+err.Error(), nil, openStep(st))
		return resp, apierr.ProviderUnavailable(err)
	}
}

// runTools executes every request of one step concurrently. The step seals
// only after all calls finish; individual failures land in the call record
// and the loop continues, but access denial aborts the whole run.
func (o *Orchestrator) runTools(ctx context.Context, st *SessionState, reqs []ToolRequest) ([]types.AgentToolCall, error) {
	calls := make([]types.AgentToolCall, len(reqs))
	g, gctx := errgroup.WithContext(ctx)

	for i, req := range reqs {
		calls[i] = types.AgentToolCall{ToolName: req.Name(), Arguments: req.ArgsJSON()}
		g.Go(func() error {
			o.append(gctx, st, types.AgentLogToolCall, req.Name()+" "+req.ArgsJSON(), nil, openStep(st))

			result, err := o.executeWithRetry(gctx, st, req)
			if err != nil {
				if errors.Is(err, apierr.ErrAccessDenied) {
					return err
				}
				o.log.Warn("Tool call failed", "tool", req.Name(), "error", err)
				calls[i].Result = "error: " + err.Error()
				o.append(gctx, st, types.AgentLogError, req.Name()+": "+err.Error(), nil, openStep(st))
				return nil
			}
			calls[i].Result = result
			o.append(gctx, st, types.AgentLogToolResult, result, nil, openStep(st))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		o.append(ctx, st, types.AgentLogError, "access denied", nil, openStep(st))
		return calls, err
	}
	return calls, nil
}

func (o *Orchestrator) executeWithRetry(ctx context.Context, st *SessionState, req ToolRequest) (string, error) {
	toolCtx, cancel := context.WithTimeout(ctx, o.cfg.ToolTimeout)
	result, err := o.tools.Execute(toolCtx, st, req)
	cancel()
	if err == nil || !errors.Is(err, apierr.ErrRetrievalFailed) {
		return result, err
	}

	// Retrieval hiccups are usually transient; one delayed retry is enough.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(o.cfg.RetryBackoff):
	}

	toolCtx, cancel = context.WithTimeout(ctx, o.cfg.ToolTimeout)
	defer cancel()
	return o.tools.Execute(toolCtx, st, req)
}

// sealChanges validates proposed changes and guarantees session-unique change
// ids before they enter the step record.
func (o *Orchestrator) sealChanges(ctx context.Context, st *SessionState, proposed []types.DocumentEntityChange, seen map[string]bool) []types.DocumentEntityChange {
	out := make([]types.DocumentEntityChange, 0, len(proposed))
	for _, ch := range proposed {
		if ch.ChangeID == "" || seen[ch.ChangeID] {
			ch.ChangeID = uuid.NewString()
		}
		if err := ch.Validate(); err != nil {
			o.log.Warn("Dropping invalid change", "error", err)
			o.append(ctx, st, types.AgentLogError, "invalid change: "+err.Error(), nil, openStep(st))
			continue
		}
		seen[ch.ChangeID] = true
		out = append(out, ch)

		meta, _ := json.Marshal(ch)
		o.append(ctx, st, types.AgentLogChange, fmt.Sprintf("%s at line %d", ch.ChangeType, ch.StartLine), meta, openStep(st))
	}
	return out
}

// openStep numbers the entry after the step currently being assembled.
// Boundary entries (session start/complete, abort, pre-step cancellation)
// pass nil instead; they belong to the session, not to any step.
func openStep(st *SessionState) *int {
	stepNo := len(st.Steps) + 1
	return &stepNo
}

func (o *Orchestrator) append(ctx context.Context, st *SessionState, logType, content string, metadata []byte, stepNo *int) {
	if o.sink == nil {
		return
	}
	entry := &types.AgentLogEntry{
		DocumentID:      st.DocumentID,
		UserID:          st.UserID,
		ChatID:          st.chatID(),
		LogType:         logType,
		Content:         content,
		Metadata:        datatypes.JSON(metadata),
		IterationNumber: st.Iteration,
		StepNumber:      stepNo,
		Timestamp:       time.Now().UTC(),
	}
	if err := o.sink.Append(context.WithoutCancel(ctx), entry); err != nil {
		o.log.Warn("Audit log append failed", "log_type", logType, "error", err)
	}
}
