package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/engramlab/engram/pkg/memory"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation handed to a completion capability.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the text-completion capability: given a message list, return a
// generated message. With jsonMode the response must be a single JSON object.
type Completer interface {
	Complete(ctx context.Context, msgs []Message, jsonMode bool) (string, error)
}

// OpenAICompleter implements Completer on the OpenAI chat completions API.
type OpenAICompleter struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAICompleter creates a completer for the given model.
func NewOpenAICompleter(apiKey, model string) *OpenAICompleter {
	return &OpenAICompleter{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 4096,
	}
}

// Complete makes an API call to OpenAI.
func (c *OpenAICompleter) Complete(ctx context.Context, msgs []Message, jsonMode bool) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(0),
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	response, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &memory.CapabilityError{Kind: "completion", Err: err}
	}
	if len(response.Choices) == 0 {
		return "", &memory.CapabilityError{Kind: "completion", Err: fmt.Errorf("empty completion response")}
	}

	return response.Choices[0].Message.Content, nil
}

// AnthropicCompleter implements Completer on the Anthropic messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicCompleter creates a completer for the given model.
func NewAnthropicCompleter(apiKey, model string) *AnthropicCompleter {
	return &AnthropicCompleter{
		client:    anthropic.NewClient(anthropicoption.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 4096,
	}
}

// Complete makes an API call to Anthropic Claude.
func (c *AnthropicCompleter) Complete(ctx context.Context, msgs []Message, jsonMode bool) (string, error) {
	system := ""
	anthropicMessages := []anthropic.MessageParam{}

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			system = msg.Content
		case RoleAssistant:
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		default:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	// Claude has no JSON response mode; the system prompt carries the
	// constraint instead.
	if jsonMode {
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object and nothing else.")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  anthropicMessages,
		MaxTokens: c.maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	response, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", &memory.CapabilityError{Kind: "completion", Err: err}
	}

	content := ""
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += b.Text
		}
	}
	if content == "" {
		return "", &memory.CapabilityError{Kind: "completion", Err: fmt.Errorf("empty completion response")}
	}

	return content, nil
}
