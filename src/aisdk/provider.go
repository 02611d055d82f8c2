package aisdk

import (
	"context"
)

// Completer sends one non-streaming chat completion request.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// ModelLister lists the models an endpoint serves.
type ModelLister interface {
	ListModels(ctx context.Context) ([]*ModelInfo, error)
}
