package changes

import (
	"fmt"
	"sort"
	"strings"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/apierr"
)

// Proposed edits travel inside the document text as paired markers:
//
//	[AI:INSERT:<changeId>] ... [/AI:INSERT:<changeId>]
//	[AI:DELETE:<changeId>] ... [/AI:DELETE:<changeId>]
//
// Both markers of a pair carry the same change type and id; a mismatched
// pair never matches. Markers are emitted on their own lines so the client
// decoration layer can render them as whole-line widgets.

// Span is a half-open [Start, End) byte range in the annotated text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Marker is one recognized pair: the full start marker, the logical content
// between the markers, and the full end marker. The logical content excludes
// a single leading line break just inside the pair and a single trailing one
// just before the end marker; those are artifacts of the line-oriented
// encoding, not user content.
type Marker struct {
	ChangeID   string `json:"change_id"`
	ChangeType string `json:"change_type"`

	StartMarker Span `json:"start_marker"`
	Content     Span `json:"content"`
	EndMarker   Span `json:"end_marker"`
}

// ContentText returns the logical content of m within text.
func (m Marker) ContentText(text string) string {
	if m.Content.Start < 0 || m.Content.End > len(text) || m.Content.Start > m.Content.End {
		return ""
	}
	return text[m.Content.Start:m.Content.End]
}

// MarkerIssue describes one offending span found during parsing. Well-formed
// pairs elsewhere in the same text still parse; nothing is silently merged
// or dropped.
type MarkerIssue struct {
	ChangeID   string `json:"change_id"`
	ChangeType string `json:"change_type"`
	Offset     int    `json:"offset"`
	Reason     string `json:"reason"`
}

// ParseResult carries every recognized pair plus every protocol violation.
type ParseResult struct {
	Markers []Marker
	Issues  []MarkerIssue
}

// Err returns a MalformedMarkers error summarizing the issues, or nil when
// the text parsed cleanly.
func (r ParseResult) Err() error {
	if len(r.Issues) == 0 {
		return nil
	}
	parts := make([]string, 0, len(r.Issues))
	for _, is := range r.Issues {
		parts = append(parts, fmt.Sprintf("%s %s at %d: %s", is.ChangeType, is.ChangeID, is.Offset, is.Reason))
	}
	return apierr.MalformedMarkers(fmt.Errorf("%s", strings.Join(parts, "; ")))
}

type markerToken struct {
	start, end int
	changeType string
	changeID   string
	closing    bool
}

func scanMarkerTokens(text string) []markerToken {
	var toks []markerToken
	for i := 0; i < len(text); {
		rel := strings.IndexByte(text[i:], '[')
		if rel < 0 {
			break
		}
		pos := i + rel
		rest := text[pos:]

		closing := false
		bodyStart := 0
		switch {
		case strings.HasPrefix(rest, "[/AI:"):
			closing = true
			bodyStart = pos + len("[/AI:")
		case strings.HasPrefix(rest, "[AI:"):
			bodyStart = pos + len("[AI:")
		default:
			i = pos + 1
			continue
		}

		stop := strings.IndexAny(text[bodyStart:], "]\n[")
		if stop < 0 || text[bodyStart+stop] != ']' {
			i = pos + 1
			continue
		}
		body := text[bodyStart : bodyStart+stop]
		colon := strings.IndexByte(body, ':')
		if colon <= 0 {
			i = pos + 1
			continue
		}
		changeType := markerChangeType(body[:colon])
		changeID := body[colon+1:]
		if changeType == "" || changeID == "" {
			i = pos + 1
			continue
		}

		end := bodyStart + stop + 1
		toks = append(toks, markerToken{
			start:      pos,
			end:        end,
			changeType: changeType,
			changeID:   changeID,
			closing:    closing,
		})
		i = end
	}
	return toks
}

func markerChangeType(raw string) string {
	switch raw {
	case "INSERT":
		return types.ChangeTypeInsert
	case "DELETE":
		return types.ChangeTypeDelete
	default:
		return ""
	}
}

func markerTypeLabel(changeType string) string {
	if changeType == types.ChangeTypeDelete {
		return "DELETE"
	}
	return "INSERT"
}

// StartMarker renders the opening marker for a change.
func StartMarker(changeType, changeID string) string {
	return "[AI:" + markerTypeLabel(changeType) + ":" + changeID + "]"
}

// EndMarker renders the closing marker for a change.
func EndMarker(changeType, changeID string) string {
	return "[/AI:" + markerTypeLabel(changeType) + ":" + changeID + "]"
}

// Parse locates every marker pair in text with an explicit two-pass scan:
// first every marker token, then for each start marker its nearest matching
// end marker with identical type and id. Unclosed starts, stray ends, and
// overlapping or interleaved pairs are reported as issues; the remaining
// well-formed pairs are returned in text order. The text may have been
// edited by the user since encoding, so nothing here assumes markers sit
// where the encoder put them.
func Parse(text string) ParseResult {
	toks := scanMarkerTokens(text)
	if len(toks) == 0 {
		return ParseResult{}
	}

	used := make([]bool, len(toks))
	var pairs []Marker
	var issues []MarkerIssue

	for i, t := range toks {
		if t.closing {
			continue
		}
		matched := -1
		for j := i + 1; j < len(toks); j++ {
			if toks[j].closing && !used[j] && toks[j].changeID == t.changeID && toks[j].changeType == t.changeType {
				matched = j
				break
			}
		}
		if matched < 0 {
			issues = append(issues, MarkerIssue{
				ChangeID:   t.changeID,
				ChangeType: t.changeType,
				Offset:     t.start,
				Reason:     "start marker has no matching end marker",
			})
			used[i] = true
			continue
		}
		used[i] = true
		used[matched] = true
		end := toks[matched]
		pairs = append(pairs, Marker{
			ChangeID:    t.changeID,
			ChangeType:  t.changeType,
			StartMarker: Span{Start: t.start, End: t.end},
			Content:     trimContentSpan(text, t.end, end.start),
			EndMarker:   Span{Start: end.start, End: end.end},
		})
	}

	for j, t := range toks {
		if t.closing && !used[j] {
			issues = append(issues, MarkerIssue{
				ChangeID:   t.changeID,
				ChangeType: t.changeType,
				Offset:     t.start,
				Reason:     "end marker has no matching start marker",
			})
		}
	}

	// Pairs may not nest or interleave. Flag every pair whose span admits
	// another pair's start marker; no implicit precedence between them.
	bad := map[int]bool{}
	for a := 0; a < len(pairs); a++ {
		for b := a + 1; b < len(pairs); b++ {
			if pairs[b].StartMarker.Start < pairs[a].EndMarker.End {
				bad[a] = true
				bad[b] = true
			}
		}
	}
	if len(bad) > 0 {
		kept := make([]Marker, 0, len(pairs)-len(bad))
		for idx, p := range pairs {
			if !bad[idx] {
				kept = append(kept, p)
				continue
			}
			issues = append(issues, MarkerIssue{
				ChangeID:   p.ChangeID,
				ChangeType: p.ChangeType,
				Offset:     p.StartMarker.Start,
				Reason:     "marker span overlaps another pair",
			})
		}
		pairs = kept
	}

	return ParseResult{Markers: pairs, Issues: issues}
}

func trimContentSpan(text string, start, end int) Span {
	if start > end {
		return Span{Start: start, End: start}
	}
	if start < end && text[start] == '\r' && start+1 < end && text[start+1] == '\n' {
		start += 2
	} else if start < end && text[start] == '\n' {
		start++
	}
	if end > start && text[end-1] == '\n' {
		end--
		if end > start && text[end-1] == '\r' {
			end--
		}
	}
	return Span{Start: start, End: end}
}

// Encode embeds the given proposals into text as marker pairs and returns
// the annotated document. Insert chunks land after their anchor line
// (StartLine, 1-based; 0 = top of document); delete chunks wrap the existing
// StartLine..EndLine range. Chunks of one group are laid out contiguously in
// ascending Order. Proposals are applied bottom-up so earlier anchors never
// shift under later ones.
func Encode(text string, proposals []types.DocumentEntityChange) (string, error) {
	if len(proposals) == 0 {
		return text, nil
	}

	seen := map[string]bool{}
	for _, c := range proposals {
		if err := c.Validate(); err != nil {
			return "", apierr.MalformedMarkers(err)
		}
		if seen[c.ChangeID] {
			return "", apierr.MalformedMarkers(fmt.Errorf("duplicate change_id %s", c.ChangeID))
		}
		seen[c.ChangeID] = true
	}

	lines := strings.Split(text, "\n")
	lineCount := len(lines)
	trailingNewline := lineCount > 0 && lines[lineCount-1] == ""
	if trailingNewline {
		lineCount--
	}

	ordered := make([]types.DocumentEntityChange, len(proposals))
	copy(ordered, proposals)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartLine != ordered[j].StartLine {
			return ordered[i].StartLine > ordered[j].StartLine
		}
		if ordered[i].GroupID != ordered[j].GroupID {
			return ordered[i].GroupID > ordered[j].GroupID
		}
		return ordered[i].Order > ordered[j].Order
	})

	for _, c := range ordered {
		switch c.ChangeType {
		case types.ChangeTypeInsert:
			anchor := c.StartLine
			if anchor > lineCount {
				anchor = lineCount
			}
			out := make([]string, 0, len(lines)+len(strings.Split(c.Content, "\n"))+2)
			out = append(out, lines[:anchor]...)
			out = append(out, StartMarker(c.ChangeType, c.ChangeID))
			out = append(out, strings.Split(c.Content, "\n")...)
			out = append(out, EndMarker(c.ChangeType, c.ChangeID))
			out = append(out, lines[anchor:]...)
			lines = out
		case types.ChangeTypeDelete:
			if c.EndLine > lineCount {
				return "", apierr.MalformedMarkers(fmt.Errorf("change %s: delete range %d..%d exceeds document length %d", c.ChangeID, c.StartLine, c.EndLine, lineCount))
			}
			out := make([]string, 0, len(lines)+2)
			out = append(out, lines[:c.StartLine-1]...)
			out = append(out, StartMarker(c.ChangeType, c.ChangeID))
			out = append(out, lines[c.StartLine-1:c.EndLine]...)
			out = append(out, EndMarker(c.ChangeType, c.ChangeID))
			out = append(out, lines[c.EndLine:]...)
			lines = out
		}
	}

	return strings.Join(lines, "\n"), nil
}
