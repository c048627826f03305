package inference

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicService implements Service against the Anthropic Messages API.
type AnthropicService struct {
	client anthropic.Client
	model  string
}

// NewAnthropicService builds a client for the given model.
func NewAnthropicService(apiKey, model string) *AnthropicService {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5)
	}
	return &AnthropicService{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (s *AnthropicService) Name() string { return "anthropic" }

func (s *AnthropicService) ClassifyAttachments(ctx context.Context, images []Image, contextText string) (*Extraction, error) {
	blocks := []anthropic.ContentBlockParamUnion{}
	if contextText == "" {
		contextText = "Contenido de la imagen:"
	}
	blocks = append(blocks, anthropic.NewTextBlock(contextText))
	for _, img := range images {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MediaType, base64.StdEncoding.EncodeToString(img.Data)))
	}

	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: classifySystemPrompt}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic classify: %w", err)
	}
	return parseExtraction(textOf(msg))
}

func (s *AnthropicService) Converse(ctx context.Context, systemPrompt string, history []Turn, userContent string) (string, error) {
	msgs := []anthropic.MessageParam{}
	for _, t := range history {
		if t.Role == "assistant" {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		}
	}
	msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(userContent)))

	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  msgs,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic converse: %w", err)
	}
	return textOf(msg), nil
}

// textOf concatenates the text blocks of a response.
func textOf(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
