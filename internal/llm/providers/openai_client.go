package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"

	"github.com/vialegal/docket/internal/common"
)

// OpenAIProvider generates schema-constrained JSON via chat completions with
// a JSON-schema response format.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIProvider(client openai.Client) *OpenAIProvider {
	model := strings.TrimSpace(os.Getenv("OPENAI_CHAT_MODEL"))
	if model == "" {
		model = openai.ChatModelGPT4o
	}
	logger := common.Logger()
	logger.Info("llm: OpenAI provider configured", "model", model)
	return &OpenAIProvider{client: client, model: model}
}

func (o *OpenAIProvider) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	logger := common.Logger()
	logger.Debug("llm: structured generation request", "model", o.model, "schema", req.SchemaName, "prompt_len", len(req.Prompt))

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("llm: structured generation failed", "schema", req.SchemaName, "error", err)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	content := resp.Choices[0].Message.Content
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("model returned invalid JSON for schema %s", req.SchemaName)
	}
	logger.Debug("llm: structured generation succeeded", "schema", req.SchemaName, "response_len", len(content))
	return json.RawMessage(content), nil
}

func (o *OpenAIProvider) Name() string {
	return "openai"
}
