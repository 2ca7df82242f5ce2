package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"

	"github.com/solutionEPI/epi-admin/pkg/schema"
)

// Provider configures direct provider mode, where generation talks to the AI
// vendor itself instead of the dashboard backend.
type Provider struct {
	Type     string
	APIKey   string
	Endpoint string
	Model    string
}

const maxOutputTokens = 1024

// callProvider runs the generation prompt against the configured provider.
// Anthropic answers in one piece; OpenAI-style providers stream, with each
// delta forwarded to the token callback.
func (s *Service) callProvider(ctx context.Context, sch schema.Schema, prompt string) (string, error) {
	model, streams, err := buildLanguageModel(s.provider)
	if err != nil {
		return "", err
	}

	messages := []jetapi.Message{
		&jetapi.UserMessage{Content: jetapi.ContentFromText(BuildPrompt(sch, prompt))},
	}

	if !streams {
		resp, err := jetai.GenerateText(ctx, messages,
			jetai.WithModel(model),
			jetai.WithMaxOutputTokens(maxOutputTokens),
		)
		if err != nil {
			return "", fmt.Errorf("generate: provider call: %w", err)
		}
		text := responseText(resp)
		if text == "" {
			return "", errors.New("generate: empty response from provider")
		}
		if s.onToken != nil {
			s.onToken(text)
		}
		return text, nil
	}

	streamResp, err := jetai.StreamText(ctx, messages,
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(maxOutputTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generate: provider stream: %w", err)
	}

	var full strings.Builder
	for event := range streamResp.Stream {
		switch evt := event.(type) {
		case *jetapi.TextDeltaEvent:
			if evt.TextDelta == "" {
				continue
			}
			full.WriteString(evt.TextDelta)
			if s.onToken != nil {
				s.onToken(evt.TextDelta)
			}
		case *jetapi.ErrorEvent:
			if evt.Err == nil {
				return "", errors.New("generate: provider stream failed")
			}
			return "", fmt.Errorf("generate: provider stream: %v", evt.Err)
		}
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("generate: empty response from provider")
	}
	return text, nil
}

// buildLanguageModel wires the configured vendor SDK into a jetify language
// model. The boolean reports whether the model should be streamed.
func buildLanguageModel(p *Provider) (jetapi.LanguageModel, bool, error) {
	if p == nil {
		return nil, false, errors.New("generate: provider is not configured")
	}
	apiKey := strings.TrimSpace(p.APIKey)
	if apiKey == "" {
		return nil, false, errors.New("generate: provider api key is empty")
	}

	modelID := strings.TrimSpace(p.Model)
	endpoint := strings.TrimSpace(p.Endpoint)

	if strings.EqualFold(strings.TrimSpace(p.Type), "anthropic") {
		if modelID == "" {
			modelID = "claude-haiku-4-5-20251001"
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}
		c := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(c)), false, nil
	}

	if modelID == "" {
		modelID = "gpt-4o-mini"
	}
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if endpoint != "" {
		opts = append(opts, openaioption.WithBaseURL(strings.TrimRight(endpoint, "/")))
	}
	c := openaiclient.NewClient(opts...)
	return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(c)), true, nil
}

func responseText(resp *jetapi.Response) string {
	if resp == nil {
		return ""
	}
	var full strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.(*jetapi.TextBlock); ok {
			full.WriteString(text.Text)
		}
	}
	return full.String()
}
