package domain

import "fmt"

const (
	ChangeTypeInsert = "insert"
	ChangeTypeDelete = "delete"
)

// DocumentEntityChange is one atomic proposed edit. StartLine is 1-based; for
// inserts it names the line after which the content goes (0 = top of
// document), for deletes it opens the inclusive range closed by EndLine.
// Chunks sharing a GroupID form one logical proposal and are applied or
// rejected together, in ascending Order.
type DocumentEntityChange struct {
	ChangeID   string `json:"change_id"`
	ChangeType string `json:"change_type"`
	EntityType string `json:"entity_type"`

	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line,omitempty"`

	Content string `json:"content"`

	GroupID string `json:"group_id,omitempty"`
	Order   int    `json:"order"`
}

func (c DocumentEntityChange) Validate() error {
	if c.ChangeID == "" {
		return fmt.Errorf("change is missing change_id")
	}
	switch c.ChangeType {
	case ChangeTypeInsert:
		if c.StartLine < 0 {
			return fmt.Errorf("change %s: insert start_line %d is negative", c.ChangeID, c.StartLine)
		}
	case ChangeTypeDelete:
		if c.StartLine < 1 {
			return fmt.Errorf("change %s: delete start_line %d must be >= 1", c.ChangeID, c.StartLine)
		}
		if c.EndLine < c.StartLine {
			return fmt.Errorf("change %s: delete end_line %d precedes start_line %d", c.ChangeID, c.EndLine, c.StartLine)
		}
	default:
		return fmt.Errorf("change %s: unknown change_type %q", c.ChangeID, c.ChangeType)
	}
	return nil
}
