package resolution

import "fmt"

// Policy holds the tunables of the tiered decision.
type Policy struct {
	// Threshold is the similarity score a match must strictly exceed to
	// lend its category's solution.
	Threshold float32
	// TopK is how many similar complaints are retrieved.
	TopK int
	// SnippetLength caps the text stored with each embedding, in characters.
	SnippetLength int
}

// DefaultPolicy returns threshold 0.7, top 3 matches and 500-character snippets.
func DefaultPolicy() Policy {
	return Policy{Threshold: 0.7, TopK: 3, SnippetLength: 500}
}

// Validate rejects policies the engine cannot run with.
func (p Policy) Validate() error {
	if p.Threshold < -1 || p.Threshold > 1 {
		return fmt.Errorf("similarity threshold %v outside [-1, 1]", p.Threshold)
	}
	if p.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1, got %d", p.TopK)
	}
	if p.SnippetLength < 0 {
		return fmt.Errorf("snippet length must not be negative, got %d", p.SnippetLength)
	}
	return nil
}
