package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Complaint is a processed complaint row. Rows are written once and never updated.
type Complaint struct {
	ID            int64     `json:"id"`
	CustomerEmail string    `json:"customer_email"`
	Text          string    `json:"text"`
	Sentiment     string    `json:"sentiment"`
	NormalizedKey string    `json:"normalized_key"`
	AnswerType    string    `json:"answer_type"`
	Answered      bool      `json:"answered"`
	CreatedAt     time.Time `json:"created_at"`
}

// Solution is the curated reply for one category.
type Solution struct {
	ID            int64  `json:"id"`
	NormalizedKey string `json:"normalized_key" yaml:"normalized_key"`
	SolutionText  string `json:"solution_text" yaml:"solution_text"`
}

// ComplaintCounts are the aggregate counters read by analytics.
type ComplaintCounts struct {
	Total         int
	Positive      int
	Negative      int
	KnownSolution int
	Stock         int
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
