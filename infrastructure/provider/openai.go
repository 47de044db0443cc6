package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/searchsync/searchsync/internal/config"
)

// errEmbeddingCountMismatch indicates the API returned fewer embedding
// vectors than requested. Retryable: transient upstream issues can produce
// partial responses behind a 200 status.
var errEmbeddingCountMismatch = errors.New("embedding response count mismatch")

// OpenAIEmbedder generates embeddings through an OpenAI-compatible API.
type OpenAIEmbedder struct {
	client        *openai.Client
	model         string
	dimension     int
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewOpenAIEmbedder creates an embedder from endpoint configuration.
func NewOpenAIEmbedder(endpoint config.Endpoint) *OpenAIEmbedder {
	clientConfig := openai.DefaultConfig(endpoint.APIKey())
	if endpoint.BaseURL() != "" {
		clientConfig.BaseURL = endpoint.BaseURL()
	}
	if endpoint.Timeout() > 0 {
		clientConfig.HTTPClient = &http.Client{
			Timeout: endpoint.Timeout(),
		}
	}

	return &OpenAIEmbedder{
		client:        openai.NewClientWithConfig(clientConfig),
		model:         endpoint.Model(),
		dimension:     endpoint.Dimension(),
		maxRetries:    endpoint.MaxRetries(),
		initialDelay:  time.Second,
		backoffFactor: 2.0,
	}
}

// Dimension returns the configured embedding dimensionality.
func (p *OpenAIEmbedder) Dimension() int {
	return p.dimension
}

// Embed generates embeddings for the given texts in a single API call.
func (p *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	}

	var resp openai.EmbeddingResponse
	var err error

	err = p.withRetry(ctx, func() error {
		resp, err = p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", errEmbeddingCountMismatch, len(resp.Data), len(texts))
		}
		return nil
	})
	if err != nil {
		return nil, p.wrapError("embedding", err)
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		embeddings[i] = data.Embedding
	}
	return embeddings, nil
}

// withRetry executes the function with exponential backoff retry.
func (p *OpenAIEmbedder) withRetry(ctx context.Context, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable determines if an error should be retried.
func isRetryable(err error) bool {
	if errors.Is(err, errEmbeddingCountMismatch) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return true
	}

	return false
}

// wrapError wraps an OpenAI error into a ProviderError.
func (p *OpenAIEmbedder) wrapError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewProviderError(operation, 0, err.Error(), err)
}

var _ Embedder = (*OpenAIEmbedder)(nil)
