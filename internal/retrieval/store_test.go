package retrieval

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kalambet/triage/internal/storage"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewSQLiteIndex(s.DB())
}

// unit returns a 2-d vector at the given angle, so cosine scores are exact.
func unit(x, y float32) []float32 { return []float32{x, y} }

func TestSQLiteIndex_InsertAndQuery(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	meta := Metadata{
		TextSnippet:   "I was overcharged",
		CustomerEmail: "a@x.com",
		NormalizedKey: "billing",
		Sentiment:     "negative",
		AnswerType:    "KNOWN_SOLUTION",
		Timestamp:     ts,
	}
	if err := idx.Insert(ctx, "complaint-1-1", unit(1, 0), meta); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := idx.Query(ctx, unit(1, 0), 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1", len(got))
	}
	if got[0].ID != "complaint-1-1" || got[0].Score < 0.9999 {
		t.Errorf("match = %+v", got[0])
	}
	if !got[0].Metadata.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got[0].Metadata.Timestamp, ts)
	}
	got[0].Metadata.Timestamp = ts
	if got[0].Metadata != meta {
		t.Errorf("metadata = %+v, want %+v", got[0].Metadata, meta)
	}
}

func TestSQLiteIndex_QueryOrderAndTopK(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"same":     unit(1, 0),
		"close":    unit(0.9, 0.1),
		"orthog":   unit(0, 1),
		"opposite": unit(-1, 0),
	}
	for id, v := range vectors {
		if err := idx.Insert(ctx, id, v, Metadata{}); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	got, err := idx.Query(ctx, unit(1, 0), 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"same", "close", "orthog"}
	if len(got) != len(want) {
		t.Fatalf("got %d matches, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("match[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not descending: %v", got)
		}
	}

	all, err := idx.Query(ctx, unit(1, 0), 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if last := all[len(all)-1]; last.ID != "opposite" || last.Score > -0.9999 {
		t.Errorf("last match = %+v, want opposite with score -1", last)
	}
}

func TestSQLiteIndex_EmptyAndDegenerate(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if got, err := idx.Query(ctx, unit(1, 0), 3); err != nil || len(got) != 0 {
		t.Errorf("empty table: %v, %v", got, err)
	}
	if err := idx.Insert(ctx, "v", unit(1, 0), Metadata{}); err != nil {
		t.Fatal(err)
	}
	if got, _ := idx.Query(ctx, unit(1, 0), 0); len(got) != 0 {
		t.Errorf("topK=0 returned %d matches", len(got))
	}
	if got, _ := idx.Query(ctx, unit(0, 0), 3); len(got) != 0 {
		t.Errorf("zero vector returned %d matches", len(got))
	}
	if got, _ := idx.Query(ctx, []float32{1, 0, 0}, 3); len(got) != 0 {
		t.Errorf("mismatched dimension returned %d matches", len(got))
	}
}

func TestSQLiteIndex_DuplicateIDFails(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	if err := idx.Insert(ctx, "dup", unit(1, 0), Metadata{}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(ctx, "dup", unit(1, 0), Metadata{}); err == nil {
		t.Error("expected primary key violation")
	}
}

func TestSQLiteIndex_Count(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := idx.Insert(ctx, fmt.Sprintf("v%d", i), unit(1, float32(i)), Metadata{}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := idx.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
}

func TestEncodeDecodeFloat32s(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3e-7}
	out, err := decodeFloat32sInto(nil, encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := decodeFloat32sInto(nil, []byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
