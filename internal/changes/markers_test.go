package changes

import (
	"errors"
	"strings"
	"testing"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/apierr"
)

func TestEncode_InsertAfterLine(t *testing.T) {
	text := "Line1\nLine2\n"
	out, err := Encode(text, []types.DocumentEntityChange{{
		ChangeID:   "c1",
		ChangeType: types.ChangeTypeInsert,
		EntityType: "paragraph",
		StartLine:  1,
		Content:    "NewLine",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Line1\n[AI:INSERT:c1]\nNewLine\n[/AI:INSERT:c1]\nLine2\n"
	if out != want {
		t.Fatalf("unexpected encoding:\n%q\nwant:\n%q", out, want)
	}
}

func TestEncode_InsertAtTopOfDocument(t *testing.T) {
	out, err := Encode("Body\n", []types.DocumentEntityChange{{
		ChangeID:   "c1",
		ChangeType: types.ChangeTypeInsert,
		EntityType: "heading",
		StartLine:  0,
		Content:    "# Title",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "[AI:INSERT:c1]\n# Title\n[/AI:INSERT:c1]\nBody") {
		t.Fatalf("insert at line 0 did not land at top: %q", out)
	}
}

func TestEncode_DeleteWrapsRange(t *testing.T) {
	text := "a\nb\nc\nd\n"
	out, err := Encode(text, []types.DocumentEntityChange{{
		ChangeID:   "del1",
		ChangeType: types.ChangeTypeDelete,
		EntityType: "paragraph",
		StartLine:  2,
		EndLine:    3,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "a\n[AI:DELETE:del1]\nb\nc\n[/AI:DELETE:del1]\nd\n"
	if out != want {
		t.Fatalf("unexpected encoding:\n%q\nwant:\n%q", out, want)
	}
}

func TestEncode_GroupChunksStayContiguousAndOrdered(t *testing.T) {
	text := "Intro\nOutro\n"
	group := "g1"
	out, err := Encode(text, []types.DocumentEntityChange{
		{ChangeID: "c2", ChangeType: types.ChangeTypeInsert, EntityType: "paragraph", StartLine: 1, Content: "second", GroupID: group, Order: 1},
		{ChangeID: "c1", ChangeType: types.ChangeTypeInsert, EntityType: "paragraph", StartLine: 1, Content: "first", GroupID: group, Order: 0},
		{ChangeID: "c3", ChangeType: types.ChangeTypeInsert, EntityType: "paragraph", StartLine: 1, Content: "third", GroupID: group, Order: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := strings.Index(out, "first")
	second := strings.Index(out, "second")
	third := strings.Index(out, "third")
	if first < 0 || second < 0 || third < 0 {
		t.Fatalf("missing chunk content in %q", out)
	}
	if !(first < second && second < third) {
		t.Fatalf("chunks out of order: %q", out)
	}
	res := Parse(out)
	if len(res.Issues) != 0 {
		t.Fatalf("group encoding produced issues: %v", res.Issues)
	}
	if len(res.Markers) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(res.Markers))
	}
}

func TestEncode_RejectsDuplicateChangeIDs(t *testing.T) {
	_, err := Encode("x\n", []types.DocumentEntityChange{
		{ChangeID: "dup", ChangeType: types.ChangeTypeInsert, EntityType: "paragraph", StartLine: 0, Content: "a"},
		{ChangeID: "dup", ChangeType: types.ChangeTypeInsert, EntityType: "paragraph", StartLine: 1, Content: "b"},
	})
	if !errors.Is(err, apierr.ErrMalformedMarkers) {
		t.Fatalf("expected MalformedMarkers, got %v", err)
	}
}

func TestEncode_RejectsDeleteBeyondDocument(t *testing.T) {
	_, err := Encode("only\n", []types.DocumentEntityChange{{
		ChangeID:   "d1",
		ChangeType: types.ChangeTypeDelete,
		EntityType: "paragraph",
		StartLine:  1,
		EndLine:    9,
	}})
	if !errors.Is(err, apierr.ErrMalformedMarkers) {
		t.Fatalf("expected MalformedMarkers, got %v", err)
	}
}

func TestParse_RoundTripsEncodedPairs(t *testing.T) {
	text := "Line1\n[AI:INSERT:c1]\nNewLine\n[/AI:INSERT:c1]\nLine2\n"
	res := Parse(text)
	if err := res.Err(); err != nil {
		t.Fatalf("unexpected issues: %v", err)
	}
	if len(res.Markers) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(res.Markers))
	}
	m := res.Markers[0]
	if m.ChangeID != "c1" || m.ChangeType != types.ChangeTypeInsert {
		t.Fatalf("unexpected pair: %+v", m)
	}
	if got := m.ContentText(text); got != "NewLine" {
		t.Fatalf("expected trimmed content %q, got %q", "NewLine", got)
	}
}

func TestParse_ContentKeepsInnerLineBreaks(t *testing.T) {
	text := "[AI:INSERT:c1]\nfirst\nsecond\n[/AI:INSERT:c1]\n"
	res := Parse(text)
	if len(res.Markers) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(res.Markers))
	}
	if got := res.Markers[0].ContentText(text); got != "first\nsecond" {
		t.Fatalf("inner breaks lost: %q", got)
	}
}

func TestParse_MismatchedPairNeverMatches(t *testing.T) {
	text := "[AI:INSERT:c1]\nx\n[/AI:DELETE:c1]\n"
	res := Parse(text)
	if len(res.Markers) != 0 {
		t.Fatalf("expected no pairs, got %d", len(res.Markers))
	}
	if len(res.Issues) != 2 {
		t.Fatalf("expected unclosed start and stray end, got %v", res.Issues)
	}
}

func TestParse_StrayEndMarkerFlagged(t *testing.T) {
	res := Parse("before\n[/AI:INSERT:ghost]\nafter\n")
	if len(res.Issues) != 1 || res.Issues[0].ChangeID != "ghost" {
		t.Fatalf("expected one stray-end issue, got %v", res.Issues)
	}
}

func TestParse_InterleavedPairsFlaggedOthersSurvive(t *testing.T) {
	text := strings.Join([]string{
		"[AI:INSERT:a]",
		"[AI:INSERT:b]",
		"[/AI:INSERT:a]",
		"[/AI:INSERT:b]",
		"[AI:INSERT:ok]",
		"fine",
		"[/AI:INSERT:ok]",
	}, "\n")
	res := Parse(text)
	if len(res.Markers) != 1 || res.Markers[0].ChangeID != "ok" {
		t.Fatalf("expected only the clean pair to survive, got %+v", res.Markers)
	}
	flagged := map[string]bool{}
	for _, is := range res.Issues {
		flagged[is.ChangeID] = true
	}
	if !flagged["a"] || !flagged["b"] {
		t.Fatalf("expected both interleaved pairs flagged, got %v", res.Issues)
	}
}

func TestParse_IgnoresPlainBrackets(t *testing.T) {
	res := Parse("see [link](https://example.com) and [note]\n")
	if len(res.Markers) != 0 || len(res.Issues) != 0 {
		t.Fatalf("plain brackets should not parse: %+v", res)
	}
}

func TestParse_TextWithoutMarkers(t *testing.T) {
	res := Parse("just\nsome\ntext\n")
	if len(res.Markers) != 0 || len(res.Issues) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}
