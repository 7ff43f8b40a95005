// Package bedrock implements the embedding provider contract against AWS
// Bedrock Cohere embed models (e.g. cohere.embed-multilingual-v3).
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/tradekit/hscodex/internal/domain"
	"github.com/tradekit/hscodex/internal/metrics"
)

// Embedder is an embedding provider backed by AWS Bedrock.
type Embedder struct {
	client    *bedrockruntime.Client
	model     string
	inputType string
	logger    *zap.Logger
}

// Config holds the Bedrock provider settings.
type Config struct {
	Region    string
	Model     string
	InputType string // "search_query" for queries, "search_document" for corpus rows
	Logger    *zap.Logger
}

// cohereEmbedRequest is the Cohere embed model request body.
type cohereEmbedRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

// cohereEmbedResponse is the Cohere embed model response body.
type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbedder creates a Bedrock embedding provider using the default AWS
// credential chain.
func NewEmbedder(ctx context.Context, cfg *Config) (*Embedder, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	inputType := cfg.InputType
	if inputType == "" {
		inputType = "search_query"
	}

	return &Embedder{
		client:    bedrockruntime.NewFromConfig(awsCfg),
		model:     cfg.Model,
		inputType: inputType,
		logger:    cfg.Logger,
	}, nil
}

// Embed implements domain.Embedder. All failures fold into
// domain.ErrEmbeddingProviderError; no retries are performed here.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	body, err := json.Marshal(cohereEmbedRequest{
		Texts:     []string{text},
		InputType: e.inputType,
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("marshal embed request: %w", err)
	}

	start := time.Now()

	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("bedrock", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("bedrock", e.model, "api_error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("invoke model: %v: %w", err, domain.ErrEmbeddingProviderError)
	}

	var resp cohereEmbedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("bedrock", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("bedrock", e.model, "malformed_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("decode embed response: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues("bedrock", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("bedrock", e.model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("bedrock", e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("bedrock", e.model).Observe(duration.Seconds())

	return domain.EmbeddingResult{Embedding: resp.Embeddings[0]}, nil
}
