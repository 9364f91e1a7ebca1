package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kalambet/triage/internal/engine"
	"github.com/kalambet/triage/internal/metrics"
)

// fakeChatter implements engine.Chatter for testing.
type fakeChatter struct {
	response string
	err      error
	delay    time.Duration

	gotModel    string
	gotMessages []engine.Message
	gotSchema   *engine.Schema
}

func (f *fakeChatter) Chat(ctx context.Context, model string, messages []engine.Message, schema *engine.Schema) (string, error) {
	f.gotModel, f.gotMessages, f.gotSchema = model, messages, schema
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func TestClassify_Billing(t *testing.T) {
	chat := &fakeChatter{response: `{"normalized_key":"billing","sentiment":"negative"}`}
	c := New(chat, "llama3.2", Options{})

	got := c.Classify(context.Background(), "I was overcharged")
	if got != (Labels{Billing, Negative}) {
		t.Errorf("Classify() = %+v", got)
	}
	if chat.gotModel != "llama3.2" {
		t.Errorf("model = %q", chat.gotModel)
	}
	if len(chat.gotMessages) != 2 || chat.gotMessages[1].Content != "I was overcharged" {
		t.Errorf("messages = %+v", chat.gotMessages)
	}
	if chat.gotSchema == nil || len(chat.gotSchema.Properties["normalized_key"].Enum) != 3 {
		t.Errorf("schema missing category enum: %+v", chat.gotSchema)
	}
}

func TestClassify_ChatErrorYieldsDefaults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := New(&fakeChatter{err: errors.New("connection refused")}, "llama3.2", Options{Metrics: m})

	if got := c.Classify(context.Background(), "hello"); got != DefaultLabels {
		t.Errorf("Classify() = %+v, want defaults", got)
	}
	if n := testutil.ToFloat64(m.ClassifierParse.WithLabelValues("default")); n != 1 {
		t.Errorf("default parse count = %v, want 1", n)
	}
}

func TestClassify_Timeout(t *testing.T) {
	chat := &fakeChatter{response: `{"normalized_key":"billing","sentiment":"negative"}`, delay: time.Second}
	c := New(chat, "llama3.2", Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	got := c.Classify(context.Background(), "slow")
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Classify did not honour its timeout")
	}
	if got != DefaultLabels {
		t.Errorf("Classify() = %+v, want defaults", got)
	}
}

func TestClassify_GarbageIsInSet(t *testing.T) {
	c := New(&fakeChatter{response: "¯\\_(ツ)_/¯"}, "llama3.2", Options{})
	got := c.Classify(context.Background(), "??")
	if got.NormalizedKey != "general" || got.Sentiment != "neutral" {
		t.Errorf("Classify() = %+v, want general/neutral", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	msgs := BuildPrompt("my router keeps rebooting")
	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, "normalized_key") {
		t.Errorf("system prompt = %+v", msgs[0])
	}
	if msgs[1].Role != "user" || msgs[1].Content != "my router keeps rebooting" {
		t.Errorf("user message = %+v", msgs[1])
	}
}
