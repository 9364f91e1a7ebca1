package engine

import "context"

// Chatter is the slice of an inference backend the classifier needs.
type Chatter interface {
	// Chat sends messages to the given model and returns the assistant's response.
	// When jsonSchema is non-nil, structured JSON output is requested.
	Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)
}

// EmbeddingModel is the slice of an inference backend the embedder needs.
type EmbeddingModel interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Engine abstracts the local inference backend. The pipeline depends on the
// narrow Chatter and EmbeddingModel views; the full interface is used by the
// startup readiness check and the status command.
type Engine interface {
	Chatter
	EmbeddingModel

	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool

	// ListModels returns the names of all locally available models.
	ListModels(ctx context.Context) ([]string, error)

	// HasModel reports whether the given model name is available locally.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
