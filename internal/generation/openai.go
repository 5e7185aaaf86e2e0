package generation

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAI drives title sampling through the Responses API. One client
// is safe for concurrent independent requests, so pipeline runs can
// share it.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (o *OpenAI) Generate(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	if o.model == "" {
		return "", errors.New("generation: model is empty")
	}
	params := responses.ResponseNewParams{
		Model:           o.model,
		Instructions:    openai.String(system),
		Temperature:     openai.Float(temperature),
		MaxOutputTokens: openai.Int(80),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
	}
	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return "", classifyError(err)
	}
	return resp.OutputText(), nil
}
