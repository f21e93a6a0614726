package probe

import (
	"context"
	"errors"
	"fmt"

	"resty.dev/v3"

	"github.com/mixhq/agent/internal/config"
	"github.com/mixhq/agent/internal/jsonpath"
)

var (
	// ErrTokenStatus marks a token endpoint that answered with a non-2xx status.
	ErrTokenStatus = errors.New("token endpoint rejected credentials")
	// ErrTokenMalformed marks a 2xx token response the token could not be read from.
	ErrTokenMalformed = errors.New("malformed token response")
)

// Token is the outcome of one token request. Status and Body are set whenever
// the endpoint answered.
type Token struct {
	Value  string
	Status int
	Body   string
}

// TokenSource requests bearer tokens from the configured auth endpoint.
type TokenSource struct {
	client *resty.Client
}

func NewTokenSource(client *resty.Client) *TokenSource {
	if client == nil {
		client = resty.New()
	}
	return &TokenSource{client: client}
}

// Acquire posts auth.Keys as a JSON object and reads the token at
// auth.Token.JSONPath. A transport failure returns a zero Token.
func (s *TokenSource) Acquire(ctx context.Context, auth config.Auth) (Token, error) {
	keys := auth.Keys
	if keys == nil {
		keys = map[string]string{}
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(keys).
		Post(auth.Token.URL)
	if err != nil {
		return Token{}, fmt.Errorf("request token: %w", err)
	}

	tok := Token{Status: resp.StatusCode(), Body: resp.String()}
	if !resp.IsSuccess() {
		return tok, fmt.Errorf("%w: %s", ErrTokenStatus, resp.Status())
	}

	doc, err := jsonpath.Parse(resp.Bytes())
	if err != nil {
		return tok, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	value, found, err := jsonpath.Lookup(doc, auth.Token.JSONPath)
	if err != nil {
		return tok, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !found || value.Kind() != jsonpath.KindString {
		return tok, fmt.Errorf("%w: no string at %s", ErrTokenMalformed, auth.Token.JSONPath)
	}
	tok.Value = value.String()
	return tok, nil
}
