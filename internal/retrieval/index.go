package retrieval

import (
	"context"
	"time"
)

// Index is a vector index over processed complaints. Implementations return
// errors; SimilarityIndex turns them into degraded results for the pipeline.
type Index interface {
	// Insert stores vector under id with its metadata.
	Insert(ctx context.Context, id string, vector []float32, meta Metadata) error

	// Query returns at most topK matches ordered by descending cosine similarity.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)
}

// Metadata travels with every stored vector and comes back on each match.
type Metadata struct {
	TextSnippet   string    `json:"text_snippet"`
	CustomerEmail string    `json:"customer_email"`
	NormalizedKey string    `json:"normalized_key"`
	Sentiment     string    `json:"sentiment"`
	AnswerType    string    `json:"answer_type"`
	Timestamp     time.Time `json:"timestamp"`
}

// Match is one query hit. Score is cosine similarity in [-1, 1].
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}
