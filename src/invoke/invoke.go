// Package invoke sends one persona-scoped prompt to a model provider and
// classifies the failure when it does not come back.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/elee1766/gauntletfuse/src/aisdk"
	"github.com/elee1766/gauntletfuse/src/orclient"
	"github.com/elee1766/gauntletfuse/src/storage"
)

// Request is one generation request.
type Request struct {
	Provider   storage.Provider
	SystemText string
	Prompt     string
	Settings   storage.Settings
}

// Invoker returns the completion text for a request, or an *Error.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, req Request) (string, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// HTTPConfig configures the HTTP invoker.
type HTTPConfig struct {
	Logger *slog.Logger
	// DefaultModel is used when a participant's settings name no model
	DefaultModel string
	// Timeout bounds one attempt
	Timeout  time.Duration
	SiteName string
	// LookupEnv resolves key aliases; defaults to os.LookupEnv
	LookupEnv  func(string) (string, bool)
	HTTPClient *http.Client
}

// HTTPInvoker invokes OpenAI-compatible chat completion endpoints. The API
// key is read from the environment variable named by the provider's key
// alias at call time, so rotating a key needs no restart.
type HTTPInvoker struct {
	cfg    HTTPConfig
	logger *slog.Logger

	mu      sync.Mutex
	clients map[clientKey]*orclient.Client
}

type clientKey struct {
	baseURL string
	apiKey  string
}

var _ Invoker = (*HTTPInvoker)(nil)

// NewHTTPInvoker creates an invoker that reuses one client per endpoint and key.
func NewHTTPInvoker(cfg HTTPConfig) *HTTPInvoker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LookupEnv == nil {
		cfg.LookupEnv = os.LookupEnv
	}
	return &HTTPInvoker{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "invoker"),
		clients: make(map[clientKey]*orclient.Client),
	}
}

// Invoke implements Invoker.
func (h *HTTPInvoker) Invoke(ctx context.Context, req Request) (string, error) {
	name := req.Provider.Name
	apiKey, err := h.apiKey(req.Provider)
	if err != nil {
		return "", &Error{Kind: KindAuthFailed, Provider: name, Err: err}
	}

	model := req.Settings.Model
	if model == "" {
		model = h.cfg.DefaultModel
	}
	if model == "" {
		return "", &Error{Kind: KindUnknown, Provider: name, Err: errors.New("no model configured")}
	}

	var messages []*aisdk.Message
	if req.SystemText != "" {
		messages = append(messages, &aisdk.Message{Role: "system", Content: req.SystemText})
	}
	messages = append(messages, &aisdk.Message{Role: "user", Content: req.Prompt})

	client := h.client(req.Provider.BaseURL, apiKey)
	resp, err := client.CreateChatCompletion(ctx, &aisdk.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Settings.Temperature,
		MaxTokens:   req.Settings.MaxTokens,
		TopP:        req.Settings.TopP,
		Extra:       req.Settings.Extra,
	})
	if err != nil {
		ie := Classify(name, err)
		h.logger.Debug("invocation failed", "provider", name, "model", model, "kind", ie.Kind, "error", err)
		return "", ie
	}
	return resp.Content(), nil
}

func (h *HTTPInvoker) apiKey(p storage.Provider) (string, error) {
	if p.KeyAlias == "" {
		return "", fmt.Errorf("provider %q has no key alias", p.Name)
	}
	key, ok := h.cfg.LookupEnv(p.KeyAlias)
	if !ok || key == "" {
		return "", fmt.Errorf("environment variable %s is not set", p.KeyAlias)
	}
	return key, nil
}

func (h *HTTPInvoker) client(baseURL, apiKey string) *orclient.Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := clientKey{baseURL: baseURL, apiKey: apiKey}
	if c, ok := h.clients[k]; ok {
		return c
	}
	c := orclient.NewClient(orclient.Config{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Logger:     h.cfg.Logger,
		Timeout:    h.cfg.Timeout,
		HTTPClient: h.cfg.HTTPClient,
		SiteName:   h.cfg.SiteName,
	})
	h.clients[k] = c
	return c
}

// ListModels lists the provider's models using its configured key.
func (h *HTTPInvoker) ListModels(ctx context.Context, p storage.Provider) ([]*aisdk.ModelInfo, error) {
	apiKey, err := h.apiKey(p)
	if err != nil {
		return nil, &Error{Kind: KindAuthFailed, Provider: p.Name, Err: err}
	}
	models, err := h.client(p.BaseURL, apiKey).ListModels(ctx)
	if err != nil {
		return nil, Classify(p.Name, err)
	}
	return models, nil
}
