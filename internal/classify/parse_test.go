package classify

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      Labels
		wantStage Stage
	}{
		{
			name:      "clean json",
			raw:       `{"normalized_key":"billing","sentiment":"negative"}`,
			want:      Labels{Billing, Negative},
			wantStage: StageJSON,
		},
		{
			name:      "json wrapped in prose",
			raw:       "Sure! Here you go:\n```json\n{\"normalized_key\": \"Technical\", \"sentiment\": \"POSITIVE\"}\n```",
			want:      Labels{Technical, Positive},
			wantStage: StageJSON,
		},
		{
			name:      "braces inside string values",
			raw:       `{"note":"a } inside","normalized_key":"technical","sentiment":"neutral"} {"normalized_key":"billing"}`,
			want:      Labels{Technical, Neutral},
			wantStage: StageJSON,
		},
		{
			name:      "json missing sentiment falls back to regex",
			raw:       `{"normalized_key":"billing"} also sentiment: negative`,
			want:      Labels{Billing, Negative},
			wantStage: StageRegex,
		},
		{
			name:      "broken json recovered by regex",
			raw:       `{"normalized_key": "technical", "sentiment": "negative"`,
			want:      Labels{Technical, Negative},
			wantStage: StageRegex,
		},
		{
			name:      "out of set json value",
			raw:       `{"normalized_key":"shipping","sentiment":"angry"}`,
			want:      DefaultLabels,
			wantStage: StageDefault,
		},
		{
			name:      "partial regex recovery",
			raw:       `NORMALIZED_KEY = billing`,
			want:      Labels{Billing, Neutral},
			wantStage: StageDefault,
		},
		{
			name:      "nothing parseable",
			raw:       "I cannot help with that.",
			want:      Labels{NormalizedKey: "general", Sentiment: "neutral"},
			wantStage: StageDefault,
		},
		{
			name:      "empty",
			raw:       "",
			want:      DefaultLabels,
			wantStage: StageDefault,
		},
		{
			name:      "non-string fields",
			raw:       `{"normalized_key": 3, "sentiment": null}`,
			want:      DefaultLabels,
			wantStage: StageDefault,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stage := Parse(tt.raw)
			if got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
			if stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", stage, tt.wantStage)
			}
		})
	}
}

func TestFirstObject(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{`x {"a":{"b":1}} y`, `{"a":{"b":1}}`, true},
		{`{"a":"\"}"}`, `{"a":"\"}"}`, true},
		{`{"a":1`, "", false},
		{`no braces`, "", false},
	}
	for _, tt := range tests {
		got, ok := firstObject(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("firstObject(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCoerce(t *testing.T) {
	if got := CoerceCategory("Billing "); got != Billing {
		t.Errorf("CoerceCategory = %q", got)
	}
	if got := CoerceCategory("refunds"); got != General {
		t.Errorf("CoerceCategory(out of set) = %q, want general", got)
	}
	if got := CoerceSentiment("furious"); got != Neutral {
		t.Errorf("CoerceSentiment(out of set) = %q, want neutral", got)
	}
}
