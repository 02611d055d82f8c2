package orclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/elee1766/gauntletfuse/src/aisdk"
)

// ModelsResponse represents the response from the /models endpoint
type ModelsResponse struct {
	Data []*aisdk.ModelInfo `json:"data"`
}

// ListModels returns the models served by the endpoint, sorted by id. It
// doubles as a credential check for a provider.
func (c *Client) ListModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, req, "list models")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleError(resp)
	}

	var modelsResp ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	sort.Slice(modelsResp.Data, func(i, j int) bool {
		return modelsResp.Data[i].ID < modelsResp.Data[j].ID
	})
	return modelsResp.Data, nil
}
