package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"resty.dev/v3"

	"github.com/mixhq/agent/internal/config"
	"github.com/mixhq/agent/internal/rule"
)

type stubGate struct {
	allow bool
	calls int
}

func (g *stubGate) Allow(context.Context, *config.Condition) bool {
	g.calls++
	return g.allow
}

type countingRecorder struct {
	checked, skipped, passed, failed int
}

func (r *countingRecorder) RecordTarget(checked bool) {
	if checked {
		r.checked++
	} else {
		r.skipped++
	}
}

func (r *countingRecorder) RecordMatch(matched bool) {
	if matched {
		r.passed++
	} else {
		r.failed++
	}
}

func newTestClient(t *testing.T) *resty.Client {
	t.Helper()
	client := resty.New().SetTimeout(2 * time.Second)
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestEngine(t *testing.T, cfg Config, gate Gatekeeper, rec Recorder) *Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	return NewEngine(cfg, Dependencies{
		HTTPClient: newTestClient(t),
		Gate:       gate,
		Matcher:    rule.NewMatcher(rule.WithNow(func() time.Time { return fixed }), rule.WithLogger(logger)),
		Logger:     logger,
		Metrics:    rec,
	})
}

func TestCheckMatchesKeywords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\ufeff" + `{"data":{"status":"ok","count":3,"updated":"2024-05-01 11:58:00","blob":{}}}`))
	}))
	defer server.Close()

	rec := &countingRecorder{}
	engine := newTestEngine(t, Config{}, nil, rec)
	results := engine.Check(context.Background(), []config.Target{{
		Name: "health",
		URL:  server.URL,
		Keywords: map[string]string{
			"b_count":   "N|.data.count|4",
			"a_status":  "N|.data.status|ok",
			"c_updated": "T|.data.updated|5m|%Y-%m-%d %H:%M:%S",
			"d_blob":    "N|.data.blob|x",
			"e_missing": "N|.data.nothing|x",
			"f_broken":  "N|.data",
		},
	}}, "")

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	res := results[0]
	if !res.Success || res.Status != http.StatusOK || res.Message != "" {
		t.Fatalf("unexpected target result %+v", res)
	}
	if len(res.MatchResult) != 3 {
		t.Fatalf("expected 3 match results, got %+v", res.MatchResult)
	}
	want := []struct {
		keyword string
		matched bool
	}{
		{"a_status", true},
		{"b_count", false},
		{"c_updated", true},
	}
	for i, w := range want {
		mr := res.MatchResult[i]
		if mr.Keyword != w.keyword || mr.Matched != w.matched || !mr.Found {
			t.Fatalf("match %d: expected %s matched=%t, got %+v", i, w.keyword, w.matched, mr)
		}
	}
	if rec.checked != 1 || rec.passed != 2 || rec.failed != 1 {
		t.Fatalf("unexpected counters %+v", rec)
	}
}

func TestCheckSkipsExcludedAndGatedTargets(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	gate := &stubGate{allow: false}
	rec := &countingRecorder{}
	engine := newTestEngine(t, Config{}, gate, rec)
	results := engine.Check(context.Background(), []config.Target{
		{Name: "excluded", URL: server.URL, Exclude: true},
		{Name: "gated", URL: server.URL, Condition: &config.Condition{URL: server.URL, When: "false"}},
		{Name: "plain", URL: server.URL},
	}, "")

	if len(results) != 1 || results[0].Name != "plain" {
		t.Fatalf("expected only the plain target, got %+v", results)
	}
	if results[0].MatchResult == nil {
		t.Fatalf("expected empty, non-nil match results")
	}
	if gate.calls != 1 {
		t.Fatalf("expected gate to be consulted once, got %d", gate.calls)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one target request, got %d", hits.Load())
	}
	if rec.skipped != 2 || rec.checked != 1 {
		t.Fatalf("unexpected counters %+v", rec)
	}

	gate.allow = true
	results = engine.Check(context.Background(), []config.Target{
		{Name: "gated", URL: server.URL, Condition: &config.Condition{URL: server.URL, When: "true"}},
	}, "")
	if len(results) != 1 {
		t.Fatalf("expected open gate to run target, got %+v", results)
	}
}

func TestCheckHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("nope"))
		case "/html":
			w.Write([]byte("<html>"))
		}
	}))
	defer server.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	engine := newTestEngine(t, Config{}, nil, nil)
	results := engine.Check(context.Background(), []config.Target{
		{Name: "missing", URL: server.URL + "/missing", Keywords: map[string]string{"k": "N|.a|1"}},
		{Name: "html", URL: server.URL + "/html", Keywords: map[string]string{"k": "N|.a|1"}},
		{Name: "down", URL: closedURL},
	}, "")

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	missing := results[0]
	if missing.Success || missing.Status != http.StatusNotFound || !strings.Contains(missing.Message, "nope") || !strings.HasPrefix(missing.Message, "404") {
		t.Fatalf("unexpected 404 result %+v", missing)
	}

	html := results[1]
	if !html.Success || html.Status != http.StatusOK || html.Message == "" || len(html.MatchResult) != 0 {
		t.Fatalf("unexpected invalid-json result %+v", html)
	}

	down := results[2]
	if down.Success || down.Status != StatusNetworkFailure || down.Message == "" {
		t.Fatalf("unexpected network failure result %+v", down)
	}
}

func TestCheckAttachesToken(t *testing.T) {
	var gotAuth, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCustom = r.Header.Get("X-Token")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	engine := newTestEngine(t, Config{}, nil, nil)
	engine.Check(context.Background(), []config.Target{{Name: "a", URL: server.URL, Auth: true}}, "secret")
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}

	engine.Check(context.Background(), []config.Target{{Name: "b", URL: server.URL}}, "secret")
	if gotAuth != "" {
		t.Fatalf("expected no auth header for unauthenticated target, got %q", gotAuth)
	}

	custom := newTestEngine(t, Config{TokenHeader: "X-Token"}, nil, nil)
	custom.Check(context.Background(), []config.Target{{Name: "c", URL: server.URL, Auth: true}}, "secret")
	if gotCustom != "secret" || gotAuth != "" {
		t.Fatalf("expected custom token header, got custom=%q auth=%q", gotCustom, gotAuth)
	}
}
