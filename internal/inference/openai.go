package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIService implements Service for OpenAI-compatible APIs.
type OpenAIService struct {
	client openai.Client
	model  string
}

// NewOpenAIService builds a client; baseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAIService(apiKey, baseURL, model string) *OpenAIService {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIService{client: openai.NewClient(opts...), model: model}
}

func (s *OpenAIService) Name() string { return "openai" }

func (s *OpenAIService) ClassifyAttachments(ctx context.Context, images []Image, contextText string) (*Extraction, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{}
	if contextText != "" {
		parts = append(parts, openai.TextContentPart(contextText))
	} else {
		parts = append(parts, openai.TextContentPart("Contenido de la imagen:"))
	}
	for _, img := range images {
		dataURI := fmt.Sprintf("data:%s;base64,%s", img.MediaType, base64.StdEncoding.EncodeToString(img.Data))
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURI,
		}))
	}

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifySystemPrompt),
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: parts,
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai classify: empty response")
	}
	return parseExtraction(resp.Choices[0].Message.Content)
}

func (s *OpenAIService) Converse(ctx context.Context, systemPrompt string, history []Turn, userContent string) (string, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemPrompt)}
	for _, t := range history {
		if t.Role == "assistant" {
			msgs = append(msgs, openai.AssistantMessage(t.Text))
		} else {
			msgs = append(msgs, openai.UserMessage(t.Text))
		}
	}
	msgs = append(msgs, openai.UserMessage(userContent))

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(s.model),
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("openai converse: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai converse: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// parseExtraction reads the model's JSON answer, tolerating markdown fences.
func parseExtraction(raw string) (*Extraction, error) {
	cleaned := strings.TrimSpace(raw)
	if i := strings.Index(cleaned, "{"); i >= 0 {
		if j := strings.LastIndex(cleaned, "}"); j > i {
			cleaned = cleaned[i : j+1]
		}
	}
	var ext Extraction
	if err := json.Unmarshal([]byte(cleaned), &ext); err != nil {
		return nil, fmt.Errorf("parse extraction: %w", err)
	}
	return &ext, nil
}
