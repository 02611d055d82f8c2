package orclient

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds configuration for an OpenAI-compatible chat completion client
type Config struct {
	APIKey     string        // Bearer token sent with every request
	BaseURL    string        // Base URL, e.g. https://openrouter.ai/api/v1
	Logger     *slog.Logger  // Logger for debugging
	Timeout    time.Duration // Per-request HTTP timeout
	HTTPClient *http.Client  // Optional; replaces the default client
	SiteURL    string        // Site URL for ranking
	SiteName   string        // Site name for ranking
}
