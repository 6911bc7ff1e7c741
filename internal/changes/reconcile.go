package changes

import (
	"fmt"
	"sort"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/apierr"
)

// Decision is the user's verdict on a pending change.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Resolve applies a decision for one change against the current document
// text and returns the text with that change's markers removed. Offsets are
// recomputed from a fresh parse on every call; nothing is cached, so
// resolving one change never disturbs unrelated pending pairs beyond the
// textual consequence of the edit itself.
//
// The four outcomes:
//
//	accept + insert  -> markers removed, content kept
//	accept + delete  -> markers and content removed
//	reject + insert  -> markers and content removed
//	reject + delete  -> markers removed, content kept
//
// A changeId that cannot be located fails with ChangeNotFound so the caller
// can refresh its view instead of silently no-opping.
func Resolve(text, changeID string, decision Decision) (string, error) {
	res := Parse(text)
	m, err := findMarker(res, changeID)
	if err != nil {
		return "", err
	}
	return applyDecision(text, *m, decision), nil
}

// ResolveGroup applies one decision to every chunk of a logical proposal
// atomically: either all the listed changeIds are located, or the text is
// returned unchanged with ChangeNotFound. Chunks are applied in ascending
// Order semantics by position, rightmost-first textually so earlier offsets
// stay valid.
func ResolveGroup(text string, changeIDs []string, decision Decision) (string, error) {
	if len(changeIDs) == 0 {
		return text, nil
	}
	res := Parse(text)
	found := make([]Marker, 0, len(changeIDs))
	for _, id := range changeIDs {
		m, err := findMarker(res, id)
		if err != nil {
			return "", err
		}
		found = append(found, *m)
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].StartMarker.Start > found[j].StartMarker.Start
	})
	for _, m := range found {
		text = applyDecision(text, m, decision)
	}
	return text, nil
}

func findMarker(res ParseResult, changeID string) (*Marker, error) {
	for i := range res.Markers {
		if res.Markers[i].ChangeID == changeID {
			return &res.Markers[i], nil
		}
	}
	for _, is := range res.Issues {
		if is.ChangeID == changeID {
			return nil, apierr.MalformedMarkers(fmt.Errorf("change %s: %s", changeID, is.Reason))
		}
	}
	return nil, apierr.ChangeNotFound(fmt.Errorf("change %s has no marker pair in the current text", changeID))
}

func applyDecision(text string, m Marker, decision Decision) string {
	keep := decision == DecisionAccept && m.ChangeType == types.ChangeTypeInsert ||
		decision == DecisionReject && m.ChangeType == types.ChangeTypeDelete

	if keep {
		return text[:m.StartMarker.Start] + m.ContentText(text) + text[m.EndMarker.End:]
	}

	start := m.StartMarker.Start
	end := m.EndMarker.End
	// The pair occupies whole lines; removing it takes one adjacent line
	// break with it so no blank line is left behind.
	if end < len(text) && text[end] == '\n' {
		end++
	} else if start > 0 && text[start-1] == '\n' {
		start--
	}
	return text[:start] + text[end:]
}
