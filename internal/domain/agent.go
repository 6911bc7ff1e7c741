package domain

// AgentToolCall records one named tool invocation inside a step, with its
// serialized arguments and result (or failure description).
type AgentToolCall struct {
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
}

// AgentStep is one sealed iteration of the agent loop. Steps are immutable
// once appended to a response.
type AgentStep struct {
	StepNumber  int    `json:"step_number"`
	Description string `json:"description"`

	ToolCalls  []AgentToolCall `json:"tool_calls,omitempty"`
	ToolResult string          `json:"tool_result,omitempty"`

	DocumentChanges []DocumentEntityChange `json:"document_changes,omitempty"`
}

// AgentResponse is the full agent turn. Steps appear in execution order.
// IsComplete is true only when the reasoning process signalled a terminal
// state, never on truncation, cancellation or error.
type AgentResponse struct {
	FinalMessage string      `json:"final_message"`
	Steps        []AgentStep `json:"steps"`
	IsComplete   bool        `json:"is_complete"`
}

// Changes collects every proposed change across the response's steps, in
// step then emission order.
func (r AgentResponse) Changes() []DocumentEntityChange {
	var out []DocumentEntityChange
	for _, s := range r.Steps {
		out = append(out, s.DocumentChanges...)
	}
	return out
}
