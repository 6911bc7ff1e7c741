package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/logger"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/openai"
)

// StepDecision is what the reasoner returns for one iteration: either tool
// requests to execute before deciding again, or proposed changes plus a
// terminal message.
type StepDecision struct {
	Description  string
	ToolRequests []ToolRequest
	Changes      []types.DocumentEntityChange
	FinalMessage string
	Done         bool
}

// Reasoner decides the next step of a session. Implementations must be safe
// for concurrent use across sessions.
type Reasoner interface {
	NextStep(ctx context.Context, st *SessionState) (StepDecision, error)
}

type llmReasoner struct {
	log *logger.Logger
	ai  openai.Client
}

func NewLLMReasoner(log *logger.Logger, ai openai.Client) Reasoner {
	return &llmReasoner{log: log.With("component", "reasoner"), ai: ai}
}

type stepPayload struct {
	Description     string              `json:"description"`
	Done            bool                `json:"done"`
	FinalMessage    string              `json:"final_message"`
	ToolCalls       []stepToolCall      `json:"tool_calls"`
	DocumentChanges []stepChangePayload `json:"document_changes"`
}

type stepToolCall struct {
	Tool  string `json:"tool"`
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type stepChangePayload struct {
	ChangeType string `json:"change_type"`
	EntityType string `json:"entity_type"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Content    string `json:"content"`
	GroupID    string `json:"group_id"`
	Order      int    `json:"order"`
}

func (r *llmReasoner) NextStep(ctx context.Context, st *SessionState) (StepDecision, error) {
	system := strings.TrimSpace(strings.Join([]string{
		"You are a document editing agent working over a markdown document.",
		"Each turn you either gather context with tools or propose edits and finish.",
		"Available tools:",
		"- search_document: semantic search over the document's blocks (args: query, top_k)",
		"- search_tables: list every table row of the document (no args)",
		"Edits are line-based. Lines are 1-based. Inserts name the line the new",
		"content goes after (0 = top of document); deletes name an inclusive",
		"start_line..end_line range.",
		"Split a large edit into several changes sharing one group_id, ordered by order.",
		"Set done=true with a final_message once the request is satisfied or",
		"cannot be satisfied. Never set done=true while also requesting tools.",
		"Return ONLY JSON matching the schema.",
	}, "\n"))

	obj, err := r.ai.GenerateJSON(ctx, system, r.userPayload(st), "agent_step_v1", stepSchema())
	if err != nil {
		return StepDecision{}, err
	}

	var payload stepPayload
	b, _ := json.Marshal(obj)
	if err := json.Unmarshal(b, &payload); err != nil {
		return StepDecision{}, fmt.Errorf("decode step payload: %w", err)
	}
	return r.decode(st, payload)
}

func (r *llmReasoner) decode(st *SessionState, payload stepPayload) (StepDecision, error) {
	out := StepDecision{
		Description:  strings.TrimSpace(payload.Description),
		FinalMessage: strings.TrimSpace(payload.FinalMessage),
		Done:         payload.Done,
	}
	if out.Description == "" {
		out.Description = fmt.Sprintf("step %d", st.Iteration+1)
	}

	for _, tc := range payload.ToolCalls {
		args := map[string]any{}
		if tc.Query != "" {
			args["query"] = tc.Query
		}
		if tc.TopK > 0 {
			args["top_k"] = float64(tc.TopK)
		}
		req, err := ParseToolRequest(tc.Tool, args)
		if err != nil {
			r.log.Warn("Dropping malformed tool call", "tool", tc.Tool, "error", err)
			continue
		}
		out.ToolRequests = append(out.ToolRequests, req)
	}

	for _, ch := range payload.DocumentChanges {
		out.Changes = append(out.Changes, types.DocumentEntityChange{
			ChangeType: strings.TrimSpace(strings.ToLower(ch.ChangeType)),
			EntityType: strings.TrimSpace(ch.EntityType),
			StartLine:  ch.StartLine,
			EndLine:    ch.EndLine,
			Content:    ch.Content,
			GroupID:    strings.TrimSpace(ch.GroupID),
			Order:      ch.Order,
		})
	}

	// A turn that both requests tools and claims completion is contradictory;
	// finishing the gathered work first is the safe reading.
	if out.Done && len(out.ToolRequests) > 0 {
		out.Done = false
		out.FinalMessage = ""
	}
	return out, nil
}

func (r *llmReasoner) userPayload(st *SessionState) string {
	var sb strings.Builder
	sb.WriteString("DOCUMENT_ID: " + st.DocumentID.String() + "\n")
	if st.Mode != "" {
		sb.WriteString("MODE: " + st.Mode + "\n")
	}
	if st.FocusStart != nil && st.FocusEnd != nil {
		sb.WriteString(fmt.Sprintf("FOCUS_LINES: %d..%d\n", *st.FocusStart, *st.FocusEnd))
	}
	sb.WriteString("USER_REQUEST:\n" + strings.TrimSpace(st.UserMessage) + "\n")

	if len(st.Steps) > 0 {
		sb.WriteString("\nPRIOR_STEPS:\n")
		for _, step := range st.Steps {
			sb.WriteString(fmt.Sprintf("- step %d: %s\n", step.StepNumber, step.Description))
			for _, tc := range step.ToolCalls {
				sb.WriteString("  tool " + tc.ToolName + " " + tc.Arguments + "\n")
				result := tc.Result
				if len(result) > 4000 {
					result = result[:4000] + "...(truncated)"
				}
				sb.WriteString("  result: " + result + "\n")
			}
			if n := len(step.DocumentChanges); n > 0 {
				sb.WriteString(fmt.Sprintf("  proposed %d change(s)\n", n))
			}
		}
	}
	return sb.String()
}

func stepSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description":   map[string]any{"type": "string"},
			"done":          map[string]any{"type": "boolean"},
			"final_message": map[string]any{"type": "string"},
			"tool_calls": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"tool":  map[string]any{"type": "string", "enum": []any{ToolSearchDocument, ToolSearchTables}},
						"query": map[string]any{"type": "string"},
						"top_k": map[string]any{"type": "integer", "minimum": 0, "maximum": 50},
					},
					"required": []any{"tool", "query", "top_k"},
				},
			},
			"document_changes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"change_type": map[string]any{"type": "string", "enum": []any{types.ChangeTypeInsert, types.ChangeTypeDelete}},
						"entity_type": map[string]any{"type": "string"},
						"start_line":  map[string]any{"type": "integer", "minimum": 0},
						"end_line":    map[string]any{"type": "integer", "minimum": 0},
						"content":     map[string]any{"type": "string"},
						"group_id":    map[string]any{"type": "string"},
						"order":       map[string]any{"type": "integer", "minimum": 0},
					},
					"required": []any{"change_type", "entity_type", "start_line", "end_line", "content", "group_id", "order"},
				},
			},
		},
		"required": []any{"description", "done", "final_message", "tool_calls", "document_changes"},
	}
}
