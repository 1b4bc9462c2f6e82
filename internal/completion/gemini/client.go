// Package gemini implements the completion service contract on top of the
// Google GenAI API, for running without the hosted completion backend.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"github.com/prepwise/intervu/internal/completion"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

//go:embed feedback.md
var feedbackTemplate string

// Client wraps the Google GenAI client behind the completion.Service contract.
type Client struct {
	client    *genai.Client
	modelName string
}

// NewClient creates a new Client configured for the Gemini API backend.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	return &Client{client: client, modelName: model}, nil
}

// Complete sends the prompt and conversation history to Gemini and returns
// the first textual response. System messages in the history become the
// system instruction; assistant messages map to the model role.
func (c *Client) Complete(ctx context.Context, prompt string, history []completion.Message) (string, error) {
	contents, config := foldHistory(history)
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	})

	return c.generate(ctx, contents, config)
}

// Feedback renders the evaluation prompt locally and sends it to Gemini. The
// hosted completion backend does the same server side.
func (c *Client) Feedback(ctx context.Context, summary, mode string) (string, error) {
	prompt := strings.ReplaceAll(feedbackTemplate, "{{INTERVIEW_SUMMARY}}", summary)
	prompt = strings.ReplaceAll(prompt, "{{MODE}}", mode)

	return c.generate(ctx, genai.Text(prompt), nil)
}

func (c *Client) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("gemini client is not initialized")
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", completion.ErrEmptyResponse
	}

	return output, nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.modelName
}

// foldHistory converts caller-supplied history into genai contents plus an
// optional generation config carrying the system instruction.
func foldHistory(history []completion.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(history)+1)
	var config *genai.GenerateContentConfig

	for _, msg := range history {
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			continue
		}

		switch msg.Role {
		case completion.RoleSystem:
			config = &genai.GenerateContentConfig{
				SystemInstruction: &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				},
			}
		case completion.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: text}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: text}},
			})
		}
	}

	return contents, config
}
