package citadelcbt

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// OpenAIModel answers model requests with a forced tool call so the reply
// follows the request schema
type OpenAIModel struct {
	client *openai.Client
	model  string
}

// NewOpenAIModel creates a model backed by the OpenAI chat completions API
func NewOpenAIModel(apiKey, model string) *OpenAIModel {
	return NewOpenAIModelWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewOpenAIModelWithConfig is NewOpenAIModel with a custom client config
func NewOpenAIModelWithConfig(config openai.ClientConfig, model string) *OpenAIModel {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIModel{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Generate sends the prompt and returns the JSON text of the reply. Tool
// parameters must be an object, so the request schema is wrapped in an
// "items" property and unwrapped again here.
func (m *OpenAIModel) Generate(ctx context.Context, req ModelRequest) (string, error) {
	name := req.Name
	if name == "" {
		name = "submit_result"
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := m.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:    m.model,
			Messages: messages,
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        name,
						Description: "Submit the requested content",
						Parameters: jsonschema.Definition{
							Type: jsonschema.Object,
							Properties: map[string]jsonschema.Definition{
								"items": req.Schema,
							},
							Required: []string{"items"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: name,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to call model: %w", err)
	}

	VerboseLog("Received response from %s with %d choices", m.model, len(resp.Choices))

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", m.model)
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		// Some models answer in plain content despite the tool choice
		return choice.Message.Content, nil
	}

	toolCall := choice.Message.ToolCalls[0]
	if toolCall.Function.Name != name {
		return "", fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}

	var args struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil || len(args.Items) == 0 {
		// Hand the raw text back and let the caller decide how to treat it
		return toolCall.Function.Arguments, nil
	}
	return string(args.Items), nil
}
