package engines

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

var ErrNoChoices = errors.New("no choices in response")

const defaultAzureAPIVersion = "2024-02-01"

// GPT talks to OpenAI-compatible chat completion endpoints, including
// self-hosted servers and Azure OpenAI deployments.
type GPT struct {
	client *openai.Client
	model  Model
}

func NewGPTEngine(model Model, httpClient *http.Client) (*GPT, error) {
	var clientConfig openai.ClientConfig
	switch model.Provider {
	case ProviderAzure:
		if model.BaseURL == "" {
			return nil, fmt.Errorf("azure model %q requires a base url", model.Name)
		}
		clientConfig = openai.DefaultAzureConfig(model.APIKey, model.BaseURL)
		clientConfig.APIVersion = defaultAzureAPIVersion
		if model.APIVersion != "" {
			clientConfig.APIVersion = model.APIVersion
		}
		deployment := model.wireModel()
		clientConfig.AzureModelMapperFunc = func(string) string {
			return deployment
		}
	case ProviderOpenAI, "":
		apiKey := model.APIKey
		if apiKey == "" {
			// self-hosted servers usually ignore the key but the header must be present
			apiKey = "EMPTY"
		}
		clientConfig = openai.DefaultConfig(apiKey)
		if model.BaseURL != "" {
			clientConfig.BaseURL = model.BaseURL
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, model.Provider)
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	} else if model.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: model.Timeout}
	}
	return &GPT{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

func (gpt *GPT) Chat(ctx context.Context, prompt *ChatPrompt) (*ChatMessage, error) {
	resp, err := gpt.client.CreateChatCompletion(ctx, gpt.buildChatRequest(prompt))
	if err != nil {
		return nil, fmt.Errorf("chat completion for %s failed: %w", gpt.model.Name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", gpt.model.Name, ErrNoChoices)
	}
	return &ChatMessage{
		Role: ConvRoleAssistant,
		Text: resp.Choices[0].Message.Content,
	}, nil
}

func (gpt *GPT) buildChatRequest(prompt *ChatPrompt) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(prompt.History))
	for i, msg := range prompt.History {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Text,
		}
	}
	req := openai.ChatCompletionRequest{
		Model:       gpt.model.wireModel(),
		Messages:    messages,
		MaxTokens:   gpt.model.MaxTokens,
		Temperature: gpt.model.Temperature,
	}
	if len(gpt.model.Stop) > 0 {
		req.Stop = gpt.model.Stop
	}
	return req
}
