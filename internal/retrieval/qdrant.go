package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

var _ Index = (*QdrantIndex)(nil)

// pointNamespace derives stable Qdrant point UUIDs from embedding ids, which
// are not UUIDs themselves.
var pointNamespace = uuid.MustParse("5b0d1c52-2a2f-4c4e-9d0f-6f1f3c2b7a10")

// Payload keys stored with each point.
const (
	payloadEmbeddingID   = "embedding_id"
	payloadTextSnippet   = "text_snippet"
	payloadCustomerEmail = "customer_email"
	payloadNormalizedKey = "normalized_key"
	payloadSentiment     = "sentiment"
	payloadAnswerType    = "answer_type"
	payloadTimestamp     = "timestamp"
)

// qdrantPoints is the subset of *qdrant.Client used by QdrantIndex.
type qdrantPoints interface {
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
}

// QdrantConfig configures the gRPC connection and target collection.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// QdrantIndex stores complaint vectors in a Qdrant collection using cosine distance.
type QdrantIndex struct {
	points     qdrantPoints
	client     *qdrant.Client
	collection string
}

// NewQdrantIndex connects to Qdrant, checks its health and creates the
// collection with the configured dimension if it does not exist.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant health check: %w", err)
	}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("checking collection %s: %w", cfg.Collection, err)
	}
	if exists {
		info, err := client.GetCollectionInfo(ctx, cfg.Collection)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("reading collection %s: %w", cfg.Collection, err)
		}
		if err := checkCollectionDimension(cfg.Collection, info, cfg.Dimension); err != nil {
			client.Close()
			return nil, err
		}
	} else {
		err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(cfg.Dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %s: %w", cfg.Collection, err)
		}
	}

	return &QdrantIndex{points: client, client: client, collection: cfg.Collection}, nil
}

// checkCollectionDimension fails when an existing collection was created
// with a different vector size, or with named vectors this index cannot use.
func checkCollectionDimension(name string, info *qdrant.CollectionInfo, want int) error {
	vc := info.GetConfig().GetParams().GetVectorsConfig()
	params := vc.GetParams()
	if params == nil {
		return fmt.Errorf("collection %s has no single unnamed vector config", name)
	}
	if got := params.GetSize(); got != uint64(want) {
		return fmt.Errorf("collection %s stores %d-dimensional vectors but index.dimension is %d", name, got, want)
	}
	return nil
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// PointID maps an embedding id to the UUID used as the Qdrant point id.
func PointID(embeddingID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(embeddingID)).String()
}

func (q *QdrantIndex) Insert(ctx context.Context, id string, vector []float32, meta Metadata) error {
	ts := meta.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	payload := map[string]*qdrant.Value{
		payloadEmbeddingID:   stringValue(id),
		payloadTextSnippet:   stringValue(meta.TextSnippet),
		payloadCustomerEmail: stringValue(meta.CustomerEmail),
		payloadNormalizedKey: stringValue(meta.NormalizedKey),
		payloadSentiment:     stringValue(meta.Sentiment),
		payloadAnswerType:    stringValue(meta.AnswerType),
		payloadTimestamp:     stringValue(ts.UTC().Format(time.RFC3339Nano)),
	}

	_, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(PointID(id)),
			Vectors: qdrant.NewVectors(vector...),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("upserting point %s: %w", id, err)
	}
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	points, err := q.points.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", q.collection, err)
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, matchFromPoint(p))
	}
	sortByScore(matches)
	return matches, nil
}

func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	n, err := q.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting collection %s: %w", q.collection, err)
	}
	return int(n), nil
}

func matchFromPoint(p *qdrant.ScoredPoint) Match {
	m := Match{Score: p.GetScore()}
	payload := p.GetPayload()
	m.ID = payloadString(payload, payloadEmbeddingID)
	if m.ID == "" {
		m.ID = p.GetId().GetUuid()
	}
	m.Metadata = Metadata{
		TextSnippet:   payloadString(payload, payloadTextSnippet),
		CustomerEmail: payloadString(payload, payloadCustomerEmail),
		NormalizedKey: payloadString(payload, payloadNormalizedKey),
		Sentiment:     payloadString(payload, payloadSentiment),
		AnswerType:    payloadString(payload, payloadAnswerType),
	}
	if ts, err := time.Parse(time.RFC3339Nano, payloadString(payload, payloadTimestamp)); err == nil {
		m.Metadata.Timestamp = ts
	}
	return m
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
		return s.StringValue
	}
	return ""
}
