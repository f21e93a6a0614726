package probe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mixhq/agent/internal/config"
)

func TestTokenSourceAcquire(t *testing.T) {
	var gotKeys map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		switch r.URL.Path {
		case "/token":
			json.NewDecoder(r.Body).Decode(&gotKeys)
			w.Write([]byte(`{"data":{"token":"abc"}}`))
		case "/numeric":
			w.Write([]byte(`{"data":{"token":42}}`))
		case "/denied":
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("bad key"))
		}
	}))
	defer server.Close()

	source := NewTokenSource(newTestClient(t))
	ctx := context.Background()
	auth := config.Auth{
		Enabled: true,
		Keys:    map[string]string{"app_key": "k1"},
		Token:   config.Token{URL: server.URL + "/token", JSONPath: ".data.token"},
	}

	tok, err := source.Acquire(ctx, auth)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if tok.Value != "abc" || tok.Status != http.StatusOK {
		t.Fatalf("unexpected token %+v", tok)
	}
	if gotKeys["app_key"] != "k1" {
		t.Fatalf("expected keys posted as JSON, got %v", gotKeys)
	}

	auth.Token.URL = server.URL + "/numeric"
	tok, err = source.Acquire(ctx, auth)
	if !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected malformed token error, got %v", err)
	}
	if tok.Status != http.StatusOK {
		t.Fatalf("expected status on malformed token, got %+v", tok)
	}

	auth.Token.URL = server.URL + "/denied"
	tok, err = source.Acquire(ctx, auth)
	if !errors.Is(err, ErrTokenStatus) {
		t.Fatalf("expected status error, got %v", err)
	}
	if tok.Status != http.StatusUnauthorized || tok.Body != "bad key" {
		t.Fatalf("unexpected rejected token %+v", tok)
	}
}

func TestTokenSourceNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	source := NewTokenSource(newTestClient(t))
	tok, err := source.Acquire(context.Background(), config.Auth{Token: config.Token{URL: url, JSONPath: ".token"}})
	if err == nil {
		t.Fatalf("expected network error")
	}
	if errors.Is(err, ErrTokenStatus) || errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if tok.Status != 0 {
		t.Fatalf("expected zero token, got %+v", tok)
	}
}
