package classify

import "github.com/kalambet/triage/internal/engine"

const systemPrompt = `You are a customer-support triage engine. Read the customer's message and label it. Your output must be ONLY a single JSON object with exactly two fields. Do not include any other text, prose, or markdown.

Fields:
- "normalized_key": the support category, one of "billing", "technical", "general".
  - "billing": charges, invoices, refunds, payment methods, subscriptions.
  - "technical": errors, outages, bugs, login or connectivity problems.
  - "general": anything else.
- "sentiment": the customer's tone, one of "positive", "neutral", "negative".

Example: {"normalized_key": "billing", "sentiment": "negative"}`

// BuildPrompt constructs the chat messages for classifying text.
func BuildPrompt(text string) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: text},
	}
}

// labelSchema constrains structured output to the two in-set fields.
func labelSchema() *engine.Schema {
	keys := make([]string, len(Categories))
	for i, c := range Categories {
		keys[i] = string(c)
	}
	sentiments := make([]string, len(Sentiments))
	for i, s := range Sentiments {
		sentiments[i] = string(s)
	}
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"normalized_key": {Type: "string", Description: "Support category", Enum: keys},
			"sentiment":      {Type: "string", Description: "Customer tone", Enum: sentiments},
		},
		Required: []string{"normalized_key", "sentiment"},
	}
}
