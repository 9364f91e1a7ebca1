package classify

import "strings"

// Category is the canonical support category a complaint is filed under.
type Category string

const (
	Billing   Category = "billing"
	Technical Category = "technical"
	General   Category = "general"
)

// Categories lists every valid category.
var Categories = []Category{Billing, Technical, General}

// Sentiment is the tone label attached to a complaint.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

// Sentiments lists every valid sentiment.
var Sentiments = []Sentiment{Positive, Neutral, Negative}

// Labels is the classifier output. Both fields are always in-set.
type Labels struct {
	NormalizedKey Category  `json:"normalized_key"`
	Sentiment     Sentiment `json:"sentiment"`
}

// DefaultLabels is returned when nothing usable can be recovered.
var DefaultLabels = Labels{NormalizedKey: General, Sentiment: Neutral}

// ParseCategory returns the category named by s and whether it is valid.
// Matching ignores case and surrounding whitespace.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Categories {
		if c == v {
			return c, true
		}
	}
	return "", false
}

// ParseSentiment returns the sentiment named by s and whether it is valid.
func ParseSentiment(s string) (Sentiment, bool) {
	v := Sentiment(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Sentiments {
		if v == known {
			return v, true
		}
	}
	return "", false
}

// CoerceCategory maps out-of-set values to General.
func CoerceCategory(s string) Category {
	if c, ok := ParseCategory(s); ok {
		return c
	}
	return General
}

// CoerceSentiment maps out-of-set values to Neutral.
func CoerceSentiment(s string) Sentiment {
	if v, ok := ParseSentiment(s); ok {
		return v
	}
	return Neutral
}
