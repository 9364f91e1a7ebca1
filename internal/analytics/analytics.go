// Package analytics computes the aggregate view over processed complaints.
package analytics

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/kalambet/triage/internal/storage"
)

// Counter reads the raw counters from the complaint store.
type Counter interface {
	CountComplaints(ctx context.Context) (storage.ComplaintCounts, error)
}

// Percent is a percentage rounded to two decimals. It always encodes with
// exactly two fractional digits, e.g. 33.33 or 0.00.
type Percent float64

// MarshalJSON implements json.Marshaler.
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(p), 'f', 2, 64)), nil
}

func (p Percent) String() string {
	return strconv.FormatFloat(float64(p), 'f', 2, 64)
}

// Share is a count together with its percentage of the total.
type Share struct {
	Count      int     `json:"count"`
	Percentage Percent `json:"percentage"`
}

// Sentiment counts; neutral complaints are not reported.
type Sentiment struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// AnswerTypes splits complaints by where their reply came from.
type AnswerTypes struct {
	KnownSolution Share `json:"known_solution"`
	Stock         Share `json:"stock"`
}

// Snapshot is the analytics payload.
type Snapshot struct {
	TotalComplaints int         `json:"total_complaints"`
	Sentiment       Sentiment   `json:"sentiment"`
	AnswerTypes     AnswerTypes `json:"answer_types"`
}

// Aggregator builds snapshots from the complaint store.
type Aggregator struct {
	counter Counter
}

// New creates an Aggregator.
func New(counter Counter) *Aggregator {
	return &Aggregator{counter: counter}
}

// Snapshot reads the current counters. It has no side effects, so repeated
// calls without new complaints return equal snapshots.
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	c, err := a.counter.CountComplaints(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("counting complaints: %w", err)
	}
	return FromCounts(c), nil
}

// FromCounts derives a snapshot from raw counters.
func FromCounts(c storage.ComplaintCounts) Snapshot {
	return Snapshot{
		TotalComplaints: c.Total,
		Sentiment:       Sentiment{Positive: c.Positive, Negative: c.Negative},
		AnswerTypes: AnswerTypes{
			KnownSolution: Share{Count: c.KnownSolution, Percentage: percentOf(c.KnownSolution, c.Total)},
			Stock:         Share{Count: c.Stock, Percentage: percentOf(c.Stock, c.Total)},
		},
	}
}

func percentOf(n, total int) Percent {
	if total == 0 {
		return 0
	}
	return Percent(math.Round(float64(n)*10000/float64(total)) / 100)
}
