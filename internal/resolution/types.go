package resolution

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks a complaint rejected before it enters the pipeline.
	ErrValidation = errors.New("invalid complaint")

	// ErrPersistence marks a failure to read or write the complaint store.
	ErrPersistence = errors.New("complaint store failure")
)

// AnswerType says where the reply text came from.
type AnswerType string

const (
	KnownSolution AnswerType = "KNOWN_SOLUTION"
	Stock         AnswerType = "STOCK"
)

// Tier names the resolution step that produced a decision.
type Tier string

const (
	TierExactMatch           Tier = "exact_match"
	TierSimilarMatch         Tier = "similar_match"
	TierMatchWithoutSolution Tier = "match_without_solution"
	TierNoMatch              Tier = "no_match"
)

// StockTemplate is the generic reply; %s is the complaint's category.
const StockTemplate = "Thank you for contacting us about your %s issue. Our support team has received your message and will get back to you shortly."

// Complaint is an incoming support message.
type Complaint struct {
	CustomerEmail string `json:"customer_email"`
	Text          string `json:"text"`
}

// Validate trims both fields and rejects empty ones. The error wraps ErrValidation.
func (c *Complaint) Validate() error {
	c.CustomerEmail = strings.TrimSpace(c.CustomerEmail)
	c.Text = strings.TrimSpace(c.Text)

	var missing []string
	if c.CustomerEmail == "" {
		missing = append(missing, "customer_email")
	}
	if c.Text == "" {
		missing = append(missing, "text")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, " and "))
	}
	return nil
}

// SimilarMatch is the public view of a similarity hit. It carries no ids or
// customer data from the matched complaint.
type SimilarMatch struct {
	Score     float32 `json:"score"`
	Category  string  `json:"category"`
	Sentiment string  `json:"sentiment"`
}

// Result is the outcome of processing one complaint.
type Result struct {
	ComplaintID    int64          `json:"complaint_id"`
	NormalizedKey  string         `json:"normalized_key"`
	Sentiment      string         `json:"sentiment"`
	AnswerType     AnswerType     `json:"answer_type"`
	EmailSent      bool           `json:"email_sent"`
	EmailResponse  string         `json:"email_response"`
	SimilarMatches []SimilarMatch `json:"similarMatches,omitempty"`
	Tier           Tier           `json:"-"`
}
