package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elee1766/gauntletfuse/src/orclient"
	"github.com/elee1766/gauntletfuse/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"rate limit status", &orclient.APIError{StatusCode: 429}, KindRateLimited},
		{"rate limit code", &orclient.APIError{StatusCode: 400, Code: "rate_limit_exceeded"}, KindRateLimited},
		{"unauthorized", &orclient.APIError{StatusCode: 401}, KindAuthFailed},
		{"forbidden", &orclient.APIError{StatusCode: 403}, KindAuthFailed},
		{"gateway timeout", &orclient.APIError{StatusCode: 504}, KindTimeout},
		{"server error", &orclient.APIError{StatusCode: 500}, KindUnknown},
		{"timeout code", &orclient.APIError{StatusCode: 502, Code: "timeout"}, KindTimeout},
		{"wrapped api error", fmt.Errorf("chat: %w", &orclient.APIError{StatusCode: 429}), KindRateLimited},
		{"client timeout", &orclient.TimeoutError{Operation: "chat", Duration: time.Second}, KindTimeout},
		{"wrapped client timeout", fmt.Errorf("chat: %w", &orclient.TimeoutError{Operation: "chat", Cause: context.DeadlineExceeded}), KindTimeout},
		{"rate limit sentinel", fmt.Errorf("chat: %w", orclient.ErrRateLimited), KindRateLimited},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), KindTimeout},
		{"no key", orclient.ErrNoAPIKey, KindAuthFailed},
		{"other", errors.New("boom"), KindUnknown},
		{"already classified", &Error{Kind: KindRateLimited}, KindRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("p", tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.want, KindOf(got))
		})
	}
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestHTTPInvoker(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"X is a thing."}}]}`)
	}))
	defer srv.Close()

	env := map[string]string{"TEST_PROVIDER_KEY": "secret"}
	inv := NewHTTPInvoker(HTTPConfig{
		DefaultModel: "openai/gpt-4o-mini",
		LookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	})

	provider := storage.Provider{Name: "local", BaseURL: srv.URL, KeyAlias: "TEST_PROVIDER_KEY"}
	text, err := inv.Invoke(context.Background(), Request{
		Provider:   provider,
		SystemText: "You are a rigorous fact checker.",
		Prompt:     "Explain X",
		Settings:   storage.Settings{Temperature: storage.Ptr(0.7)},
	})
	require.NoError(t, err)
	assert.Equal(t, "X is a thing.", text)
	assert.Equal(t, "openai/gpt-4o-mini", body["model"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-9)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "Explain X", msgs[1].(map[string]any)["content"])

	t.Run("missing key env", func(t *testing.T) {
		_, err := inv.Invoke(context.Background(), Request{
			Provider: storage.Provider{Name: "x", BaseURL: srv.URL, KeyAlias: "UNSET_KEY"},
			Prompt:   "hi",
		})
		assert.Equal(t, KindAuthFailed, KindOf(err))
	})

	t.Run("no model", func(t *testing.T) {
		bare := NewHTTPInvoker(HTTPConfig{LookupEnv: func(string) (string, bool) { return "k", true }})
		_, err := bare.Invoke(context.Background(), Request{Provider: provider, Prompt: "hi"})
		assert.Equal(t, KindUnknown, KindOf(err))
	})
}

func TestHTTPInvokerRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"slow down"}}`)
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(HTTPConfig{DefaultModel: "m", LookupEnv: func(string) (string, bool) { return "k", true }})
	_, err := inv.Invoke(context.Background(), Request{
		Provider: storage.Provider{Name: "p", BaseURL: srv.URL, KeyAlias: "K"},
		Prompt:   "hi",
	})
	var ie *Error
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, KindRateLimited, ie.Kind)
	assert.Equal(t, "p", ie.Provider)
}
