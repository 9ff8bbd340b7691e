// Package llm exposes the structured-generation model used by the document
// pipeline. The provider is consumed as an opaque function: prompt plus
// target schema in, typed value out.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/vialegal/docket/internal/common"
	"github.com/vialegal/docket/internal/llm/providers"
)

type Request = providers.Request

type Provider = providers.Provider

// NewProvider selects the OpenAI provider when OPENAI_API_KEY is configured
// and falls back to the local stub otherwise.
func NewProvider() Provider {
	logger := common.Logger()
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		logger.Warn("llm: OPENAI_API_KEY not set; falling back to local provider")
		return providers.NewLocalProvider()
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if endpoint := strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT")); endpoint != "" {
		logger.Info("llm: using custom OpenAI endpoint", "endpoint", endpoint)
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	if timeoutStr := strings.TrimSpace(os.Getenv("OPENAI_HTTP_TIMEOUT")); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			logger.Warn("llm: invalid OPENAI_HTTP_TIMEOUT, using default", "value", timeoutStr, "error", err)
		} else {
			opts = append(opts, option.WithRequestTimeout(timeout))
		}
	}
	client := openai.NewClient(opts...)
	logger.Info("llm: OpenAI provider selected")
	return providers.NewOpenAIProvider(client)
}

// Invoke runs one structured-generation call and decodes the result into T.
// T and schema travel together so call sites cannot mismatch them.
func Invoke[T any](ctx context.Context, p Provider, schemaName, system, prompt string) (T, error) {
	var out T
	schema, err := SchemaFor[T]()
	if err != nil {
		return out, err
	}
	raw, err := p.Generate(ctx, Request{
		System:     system,
		Prompt:     prompt,
		SchemaName: schemaName,
		Schema:     schema,
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("llm: decode %s response: %w", schemaName, err)
	}
	return out, nil
}
