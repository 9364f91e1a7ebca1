package classify

import (
	"encoding/json"
	"regexp"
)

// Stage names the parse step that produced a label pair.
type Stage string

const (
	StageJSON    Stage = "json"
	StageRegex   Stage = "regex"
	StageDefault Stage = "default"
)

var (
	keyPattern       = regexp.MustCompile(`(?i)normalized_key\W*(billing|technical|general)`)
	sentimentPattern = regexp.MustCompile(`(?i)sentiment\W*(positive|neutral|negative)`)
)

// Parse recovers labels from a raw model response. Each field is taken from
// the first balanced JSON object when present and in-set, otherwise from a
// pattern match against the raw text, otherwise from DefaultLabels. The
// returned Stage is the latest step any field needed. Parse never fails.
func Parse(raw string) (Labels, Stage) {
	var (
		key       Category
		sentiment Sentiment
		haveKey   bool
		haveSent  bool
	)

	if obj, ok := firstObject(raw); ok {
		var fields struct {
			NormalizedKey any `json:"normalized_key"`
			Sentiment     any `json:"sentiment"`
		}
		if json.Unmarshal([]byte(obj), &fields) == nil {
			if s, ok := fields.NormalizedKey.(string); ok {
				key, haveKey = ParseCategory(s)
			}
			if s, ok := fields.Sentiment.(string); ok {
				sentiment, haveSent = ParseSentiment(s)
			}
		}
	}
	if haveKey && haveSent {
		return Labels{NormalizedKey: key, Sentiment: sentiment}, StageJSON
	}

	stage := StageRegex
	if !haveKey {
		if m := keyPattern.FindStringSubmatch(raw); m != nil {
			key, haveKey = ParseCategory(m[1])
		}
	}
	if !haveSent {
		if m := sentimentPattern.FindStringSubmatch(raw); m != nil {
			sentiment, haveSent = ParseSentiment(m[1])
		}
	}

	if !haveKey {
		key, stage = DefaultLabels.NormalizedKey, StageDefault
	}
	if !haveSent {
		sentiment, stage = DefaultLabels.Sentiment, StageDefault
	}
	return Labels{NormalizedKey: key, Sentiment: sentiment}, stage
}

// firstObject returns the first balanced {...} substring of s. Braces inside
// JSON string literals are ignored.
func firstObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if start < 0 {
			if ch == '{' {
				start, depth = i, 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
