package retrieval

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// BlockVector pairs a block's id and document position with its embedding.
type BlockVector struct {
	BlockID   uuid.UUID
	StartLine int
	Vector    []float32
}

// RankedBlock is one scored entry of a ranking, best first.
type RankedBlock struct {
	BlockID uuid.UUID
	Score   float64
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. A zero-norm
// vector or a dimensionality mismatch scores 0.0 rather than erroring, so a
// malformed or missing embedding never surfaces as a ranking failure.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores every item against query and returns all of them ordered by
// descending score, ties broken by ascending start line so rankings are
// deterministic. Inputs are never mutated.
func Rank(query []float32, items []BlockVector) []RankedBlock {
	if len(items) == 0 {
		return nil
	}
	type scored struct {
		id        uuid.UUID
		startLine int
		score     float64
	}
	rows := make([]scored, 0, len(items))
	for _, it := range items {
		rows = append(rows, scored{id: it.BlockID, startLine: it.StartLine, score: Cosine(query, it.Vector)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].startLine < rows[j].startLine
	})
	out := make([]RankedBlock, 0, len(rows))
	for _, r := range rows {
		out = append(out, RankedBlock{BlockID: r.id, Score: r.score})
	}
	return out
}
