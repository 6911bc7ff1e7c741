package retrieval

import (
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestCosine_IdenticalVectorsScoreOne(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5}
	got := Cosine(v, v)
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected 1.0, got %v", got)
	}
}

func TestCosine_IsSymmetric(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 7}
	if Cosine(a, b) != Cosine(b, a) {
		t.Fatalf("cosine not symmetric: %v vs %v", Cosine(a, b), Cosine(b, a))
	}
}

func TestCosine_OppositeVectorsScoreMinusOne(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-1, -2, -3}
	got := Cosine(a, b)
	if math.Abs(got-(-1.0)) > 1e-9 {
		t.Fatalf("expected -1.0, got %v", got)
	}
}

func TestCosine_ZeroNormScoresZero(t *testing.T) {
	if got := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("expected 0 for zero-norm vector, got %v", got)
	}
	if got := Cosine(nil, []float32{1}); got != 0 {
		t.Fatalf("expected 0 for empty vector, got %v", got)
	}
}

func TestCosine_DimensionMismatchScoresZero(t *testing.T) {
	if got := Cosine([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("expected 0 for mismatched dimensions, got %v", got)
	}
}

func TestRank_OrdersByDescendingScore(t *testing.T) {
	query := []float32{1, 0}
	items := []BlockVector{
		{BlockID: uuid.New(), StartLine: 0, Vector: []float32{0, 1}}, // orthogonal
		{BlockID: uuid.New(), StartLine: 5, Vector: []float32{1, 0}}, // identical
		{BlockID: uuid.New(), StartLine: 9, Vector: []float32{1, 1}}, // between
	}
	out := Rank(query, items)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0].BlockID != items[1].BlockID {
		t.Fatalf("expected identical vector first")
	}
	if out[1].BlockID != items[2].BlockID {
		t.Fatalf("expected partial match second")
	}
	for i := 1; i < len(out); i++ {
		if out[i].Score > out[i-1].Score {
			t.Fatalf("scores not non-increasing at %d: %v > %v", i, out[i].Score, out[i-1].Score)
		}
	}
}

func TestRank_TiesBreakByStartLine(t *testing.T) {
	query := []float32{1, 0}
	later := BlockVector{BlockID: uuid.New(), StartLine: 40, Vector: []float32{1, 0}}
	earlier := BlockVector{BlockID: uuid.New(), StartLine: 3, Vector: []float32{2, 0}}
	out := Rank(query, []BlockVector{later, earlier})
	if out[0].BlockID != earlier.BlockID {
		t.Fatalf("expected earlier block to win the tie")
	}
}

func TestRank_EmptyInput(t *testing.T) {
	if out := Rank([]float32{1}, nil); out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
}
