package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kalambet/triage/internal/analytics"
	"github.com/kalambet/triage/internal/delivery"
	"github.com/kalambet/triage/internal/metrics"
	"github.com/kalambet/triage/internal/resolution"
	"github.com/kalambet/triage/internal/storage"
)

const testToken = "test-token-12345"

// fakeEngine persists every valid complaint as a billing stock answer.
type fakeEngine struct {
	store *storage.Store
	err   error
}

func (f *fakeEngine) Process(ctx context.Context, c resolution.Complaint) (resolution.Result, error) {
	if err := c.Validate(); err != nil {
		return resolution.Result{}, err
	}
	if f.err != nil {
		return resolution.Result{}, f.err
	}
	saved, err := f.store.InsertComplaint(ctx, storage.Complaint{
		CustomerEmail: c.CustomerEmail, Text: c.Text,
		Sentiment: "negative", NormalizedKey: "billing", AnswerType: "STOCK", Answered: true,
	})
	if err != nil {
		return resolution.Result{}, err
	}
	return resolution.Result{
		ComplaintID: saved.ID, NormalizedKey: "billing", Sentiment: "negative",
		AnswerType: resolution.Stock, EmailSent: true, EmailResponse: "stock",
		SimilarMatches: []resolution.SimilarMatch{{Score: 0.5, Category: "technical", Sentiment: "neutral"}},
	}, nil
}

type testApp struct {
	handler http.Handler
	store   *storage.Store
	engine  *fakeEngine
	queue   *delivery.QueuePublisher
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	metrics.New(reg)
	app := &testApp{
		store:  store,
		engine: &fakeEngine{store: store},
		queue:  delivery.NewQueuePublisher(store, 3),
	}
	app.handler = NewHandler(Deps{
		Engine:    app.engine,
		Store:     store,
		Analytics: analytics.New(store),
		Publisher: app.queue,
		Token:     testToken,
		Gatherer:  reg,
	})
	return app
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (a *testApp) do(t *testing.T, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, authReq(method, url, body, testToken))
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error.Type, body.Error.Message
}

func TestAuth_Required(t *testing.T) {
	app := setupApp(t)
	for _, token := range []string{"", "wrong"} {
		rr := httptest.NewRecorder()
		app.handler.ServeHTTP(rr, authReq(http.MethodGet, "/analytics", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rr.Code)
		}
	}
}

func TestHealth_Public(t *testing.T) {
	app := setupApp(t)
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", rr.Code, rr.Body.String())
	}
}

func TestMetrics_Public(t *testing.T) {
	app := setupApp(t)
	app.do(t, http.MethodPost, "/complaints", `{"customer_email":"a@x.com","text":"hi"}`)

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
}

func TestSubmitComplaint(t *testing.T) {
	app := setupApp(t)

	rr := app.do(t, http.MethodPost, "/complaints", `{"customer_email":"a@x.com","text":"I was overcharged"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var got map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"normalized_key", "sentiment", "answer_type", "email_sent", "similarMatches"} {
		if _, ok := got[key]; !ok {
			t.Errorf("response missing %q: %v", key, got)
		}
	}
	if _, ok := got["tier"]; ok {
		t.Error("response leaks the internal tier")
	}
}

func TestSubmitComplaint_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		engine   error
		wantCode int
		wantType string
	}{
		{"malformed json", `{"customer_email":`, nil, 400, "invalid_request_error"},
		{"missing text", `{"customer_email":"a@x.com"}`, nil, 400, "invalid_request_error"},
		{"blank email", `{"customer_email":"  ","text":"x"}`, nil, 400, "invalid_request_error"},
		{"persistence", `{"customer_email":"a@x.com","text":"x"}`, fmt.Errorf("%w: disk full", resolution.ErrPersistence), 500, "api_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(t)
			app.engine.err = tt.engine
			rr := app.do(t, http.MethodPost, "/complaints", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if typ, _ := decodeError(t, rr); typ != tt.wantType {
				t.Errorf("error type = %q, want %q", typ, tt.wantType)
			}
		})
	}
}

func TestQueueComplaint(t *testing.T) {
	app := setupApp(t)

	rr := app.do(t, http.MethodPost, "/complaints/async", `{"customer_email":"a@x.com","text":"later"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	counts, err := app.store.JobCounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts[storage.JobPending] != 1 {
		t.Errorf("job counts = %v, want one pending", counts)
	}

	rr = app.do(t, http.MethodPost, "/complaints/async", `{"customer_email":"a@x.com"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid async complaint status = %d, want 400", rr.Code)
	}
}

func TestQueueComplaint_NotConfigured(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	h := NewHandler(Deps{Store: store, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/complaints/async", `{"customer_email":"a@x.com","text":"x"}`, testToken))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestListComplaints(t *testing.T) {
	app := setupApp(t)
	for i := 0; i < 3; i++ {
		app.do(t, http.MethodPost, "/complaints", fmt.Sprintf(`{"customer_email":"a@x.com","text":"complaint %d"}`, i))
	}

	rr := app.do(t, http.MethodGet, "/complaints?limit=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got []storage.Complaint
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Text != "complaint 2" {
		t.Errorf("complaints = %+v, want newest two", got)
	}

	rr = app.do(t, http.MethodGet, "/complaints?offset=10", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty page = %s, want []", rr.Body.String())
	}
}

func TestAnalytics(t *testing.T) {
	app := setupApp(t)

	rr := app.do(t, http.MethodGet, "/analytics", "")
	want := `{"total_complaints":0,"sentiment":{"positive":0,"negative":0},"answer_types":{"known_solution":{"count":0,"percentage":0.00},"stock":{"count":0,"percentage":0.00}}}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Errorf("analytics =\n%s\nwant\n%s", got, want)
	}

	app.do(t, http.MethodPost, "/complaints", `{"customer_email":"a@x.com","text":"x"}`)
	rr = app.do(t, http.MethodGet, "/analytics", "")
	var snap analytics.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.TotalComplaints != 1 || snap.AnswerTypes.Stock.Percentage != 100 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSolutions_CRUD(t *testing.T) {
	app := setupApp(t)

	rr := app.do(t, http.MethodPut, "/solutions/billing", `{"solution_text":"Please contact billing support."}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = app.do(t, http.MethodGet, "/solutions", "")
	var list []storage.Solution
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].NormalizedKey != "billing" || list[0].SolutionText != "Please contact billing support." {
		t.Errorf("solutions = %+v", list)
	}

	if rr := app.do(t, http.MethodDelete, "/solutions/billing", ""); rr.Code != http.StatusOK {
		t.Errorf("delete status = %d", rr.Code)
	}
	if rr := app.do(t, http.MethodDelete, "/solutions/billing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestSolutions_Validation(t *testing.T) {
	app := setupApp(t)

	tests := []struct {
		url, body string
	}{
		{"/solutions/shipping", `{"solution_text":"x"}`},
		{"/solutions/billing", `{"solution_text":"   "}`},
		{"/solutions/billing", `not json`},
	}
	for _, tt := range tests {
		rr := app.do(t, http.MethodPut, tt.url, tt.body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("PUT %s %s: status = %d, want 400", tt.url, tt.body, rr.Code)
		}
	}
}

func TestHealth_StoreDown(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store.Close()
	h := NewHandler(Deps{Store: store, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

type fixedCount int

func (n fixedCount) Count(context.Context) int { return int(n) }

func TestStats(t *testing.T) {
	app := setupApp(t)
	app.do(t, http.MethodPost, "/complaints/async", `{"customer_email":"a@x.com","text":"later"}`)

	rr := app.do(t, http.MethodGet, "/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got statsResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Queue[storage.JobPending] != 1 {
		t.Errorf("queue = %v, want one pending", got.Queue)
	}
	if got.IndexedVectors != -1 {
		t.Errorf("indexed_vectors = %d, want -1 without an index", got.IndexedVectors)
	}

	h := NewHandler(Deps{Store: app.store, Index: fixedCount(12), Token: testToken})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/stats", "", testToken))
	if !strings.Contains(rr.Body.String(), `"indexed_vectors":12`) {
		t.Errorf("body = %s, want indexed_vectors 12", rr.Body.String())
	}
}
