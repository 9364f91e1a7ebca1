// Package resolution turns an incoming complaint into a labelled, answered
// and persisted record.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/triage/internal/classify"
	"github.com/kalambet/triage/internal/metrics"
	"github.com/kalambet/triage/internal/retrieval"
	"github.com/kalambet/triage/internal/storage"
)

// Classifier labels complaint text. It always returns in-set labels.
type Classifier interface {
	Classify(ctx context.Context, text string) classify.Labels
}

// Embedder returns a vector for text, or nil when none is available.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Similarity is the best-effort vector index.
type Similarity interface {
	Query(ctx context.Context, vector []float32, topK int) []retrieval.Match
	Insert(ctx context.Context, id string, vector []float32, meta retrieval.Metadata) bool
}

// SolutionStore looks up curated replies. A missing key is storage.ErrNotFound.
type SolutionStore interface {
	GetSolution(ctx context.Context, key string) (string, error)
}

// ComplaintStore persists processed complaints.
type ComplaintStore interface {
	InsertComplaint(ctx context.Context, c storage.Complaint) (storage.Complaint, error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Classifier Classifier
	Embedder   Embedder
	Similarity Similarity
	Solutions  SolutionStore
	Complaints ComplaintStore
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Engine runs the resolution pipeline. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	classifier Classifier
	embedder   Embedder
	similarity Similarity
	solutions  SolutionStore
	complaints ComplaintStore
	policy     Policy
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates an Engine. It returns an error when the policy is invalid.
func New(deps Deps, policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		classifier: deps.Classifier,
		embedder:   deps.Embedder,
		similarity: deps.Similarity,
		solutions:  deps.Solutions,
		complaints: deps.Complaints,
		policy:     policy,
		metrics:    deps.Metrics,
		logger:     logger,
	}, nil
}

// Policy returns the engine's decision policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Process classifies the complaint while looking up similar past complaints,
// decides the answer, stores the complaint and then its embedding.
//
// Only ErrValidation and ErrPersistence errors are returned; classifier,
// embedding and index problems degrade the decision instead.
func (e *Engine) Process(ctx context.Context, c Complaint) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	start := time.Now()

	var (
		labels  classify.Labels
		vector  []float32
		matches []retrieval.Match
	)
	// Neither branch returns an error; the group is only a join point.
	var g errgroup.Group
	g.Go(func() error {
		labels = e.classifier.Classify(ctx, c.Text)
		return nil
	})
	g.Go(func() error {
		vector = e.embedder.Embed(ctx, c.Text)
		if len(vector) > 0 {
			matches = e.similarity.Query(ctx, vector, e.policy.TopK)
		}
		return nil
	})
	_ = g.Wait()

	// Guard against collaborators that break the in-set contract.
	key := string(classify.CoerceCategory(string(labels.NormalizedKey)))
	sentiment := string(classify.CoerceSentiment(string(labels.Sentiment)))

	d, err := e.decide(ctx, key, matches)
	if err != nil {
		return Result{}, err
	}
	e.metrics.Tier(string(d.tier))

	saved, err := e.complaints.InsertComplaint(ctx, storage.Complaint{
		CustomerEmail: c.CustomerEmail,
		Text:          c.Text,
		Sentiment:     sentiment,
		NormalizedKey: key,
		AnswerType:    string(d.answerType),
		Answered:      true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if len(vector) > 0 {
		id := EmbeddingID(saved.ID, saved.CreatedAt)
		e.similarity.Insert(ctx, id, vector, retrieval.Metadata{
			TextSnippet:   Snippet(c.Text, e.policy.SnippetLength),
			CustomerEmail: c.CustomerEmail,
			NormalizedKey: key,
			Sentiment:     sentiment,
			AnswerType:    string(d.answerType),
			Timestamp:     saved.CreatedAt,
		})
	}

	e.metrics.ComplaintProcessed(string(d.answerType), time.Since(start))
	e.logger.Info("complaint resolved",
		"complaint_id", saved.ID,
		"normalized_key", key,
		"sentiment", sentiment,
		"answer_type", d.answerType,
		"tier", d.tier,
		"matches", len(matches),
	)

	return Result{
		ComplaintID:    saved.ID,
		NormalizedKey:  key,
		Sentiment:      sentiment,
		AnswerType:     d.answerType,
		EmailSent:      saved.Answered,
		EmailResponse:  d.reply,
		SimilarMatches: publicMatches(matches),
		Tier:           d.tier,
	}, nil
}

type decision struct {
	answerType AnswerType
	reply      string
	tier       Tier
}

// decide applies the tiers in order: the category's own solution, then the
// solution of a strongly similar complaint that was itself answered from a
// solution, then the stock reply.
func (e *Engine) decide(ctx context.Context, key string, matches []retrieval.Match) (decision, error) {
	text, err := e.solution(ctx, key)
	if err != nil {
		return decision{}, err
	}
	if text != "" {
		return decision{answerType: KnownSolution, reply: text, tier: TierExactMatch}, nil
	}

	stock := decision{answerType: Stock, reply: fmt.Sprintf(StockTemplate, key), tier: TierNoMatch}
	if len(matches) == 0 {
		return stock, nil
	}

	stock.tier = TierMatchWithoutSolution
	best := matches[0]
	if best.Score <= e.policy.Threshold || best.Metadata.AnswerType != string(KnownSolution) {
		return stock, nil
	}
	// The matched complaint's category, which may differ from key.
	text, err = e.solution(ctx, best.Metadata.NormalizedKey)
	if err != nil {
		return decision{}, err
	}
	if text == "" {
		return stock, nil
	}
	return decision{answerType: KnownSolution, reply: text, tier: TierSimilarMatch}, nil
}

// solution returns the solution text for key, or "" when there is none or it is blank.
func (e *Engine) solution(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	text, err := e.solutions.GetSolution(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return text, nil
}

func publicMatches(matches []retrieval.Match) []SimilarMatch {
	if len(matches) == 0 {
		return nil
	}
	out := make([]SimilarMatch, len(matches))
	for i, m := range matches {
		out[i] = SimilarMatch{Score: m.Score, Category: m.Metadata.NormalizedKey, Sentiment: m.Metadata.Sentiment}
	}
	return out
}

// EmbeddingID derives the vector id of a stored complaint from its id and
// creation time.
func EmbeddingID(complaintID int64, createdAt time.Time) string {
	return fmt.Sprintf("complaint-%d-%d", complaintID, createdAt.UnixMilli())
}

// Snippet returns the first n characters of text.
func Snippet(text string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
