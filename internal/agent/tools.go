package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
)

const (
	ToolSearchDocument = "search_document"
	ToolSearchTables   = "search_tables"
)

// ToolRequest is the closed set of tools the loop can invoke. Each supported
// tool is one variant; dispatch is an explicit type switch, so an unsupported
// tool name fails at parse time instead of surfacing as a reflection miss.
type ToolRequest interface {
	Name() string
	ArgsJSON() string
	isToolRequest()
}

// SearchDocumentRequest runs a semantic search over the document's blocks.
type SearchDocumentRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

func (SearchDocumentRequest) Name() string   { return ToolSearchDocument }
func (SearchDocumentRequest) isToolRequest() {}
func (r SearchDocumentRequest) ArgsJSON() string {
	b, _ := json.Marshal(r)
	return string(b)
}

// SearchTablesRequest lists every table-row block of the document.
type SearchTablesRequest struct{}

func (SearchTablesRequest) Name() string     { return ToolSearchTables }
func (SearchTablesRequest) isToolRequest()   {}
func (SearchTablesRequest) ArgsJSON() string { return "{}" }

// ParseToolRequest maps a reasoner-emitted tool call onto a variant.
func ParseToolRequest(name string, args map[string]any) (ToolRequest, error) {
	switch strings.TrimSpace(name) {
	case ToolSearchDocument:
		req := SearchDocumentRequest{}
		if q, ok := args["query"].(string); ok {
			req.Query = strings.TrimSpace(q)
		}
		if k, ok := args["top_k"].(float64); ok {
			req.TopK = int(k)
		}
		if req.Query == "" {
			return nil, fmt.Errorf("%s: missing query", ToolSearchDocument)
		}
		return req, nil
	case ToolSearchTables:
		return SearchTablesRequest{}, nil
	default:
		return nil, fmt.Errorf("unsupported tool %q", name)
	}
}

// Retriever is the slice of the retrieval engine the toolbox consumes.
type Retriever interface {
	Search(ctx context.Context, documentID, userID uuid.UUID, queryText string, topK int) ([]types.BlockSearchResult, error)
	SearchTables(ctx context.Context, documentID, userID uuid.UUID) ([]types.BlockSearchResult, error)
}

// Toolbox executes tool requests for one session. Results are serialized so
// they can feed straight back into the next reasoning step and into the
// step's toolCalls record.
type Toolbox struct {
	retriever Retriever
}

func NewToolbox(retriever Retriever) *Toolbox {
	return &Toolbox{retriever: retriever}
}

func (t *Toolbox) Execute(ctx context.Context, st *SessionState, req ToolRequest) (string, error) {
	switch r := req.(type) {
	case SearchDocumentRequest:
		results, err := t.retriever.Search(ctx, st.DocumentID, st.UserID, r.Query, r.TopK)
		if err != nil {
			return "", err
		}
		return renderResults(results), nil
	case SearchTablesRequest:
		results, err := t.retriever.SearchTables(ctx, st.DocumentID, st.UserID)
		if err != nil {
			return "", err
		}
		return renderResults(results), nil
	default:
		return "", fmt.Errorf("unsupported tool %q", req.Name())
	}
}

func renderResults(results []types.BlockSearchResult) string {
	if len(results) == 0 {
		return "[]"
	}
	b, err := json.Marshal(results)
	if err != nil {
		return "[]"
	}
	return string(b)
}
