package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/vango-go/voicebridge/pkg/pipeline"
)

// GeminiOptions configures the Gemini completion client.
type GeminiOptions struct {
	Model        string  // defaults to gemini-2.0-flash
	SystemPrompt string  // defaults to DefaultSystemPrompt
	MaxTokens    int     // defaults to 150
	Temperature  float64 // defaults to 0.7
}

// GeminiProvider generates replies with the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
	system string
	tokens int32
	temp   float32
}

// NewGemini creates a Gemini completion client.
func NewGemini(ctx context.Context, apiKey string, opts GeminiOptions) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	p := &GeminiProvider{
		client: client,
		model:  opts.Model,
		system: opts.SystemPrompt,
		tokens: int32(opts.MaxTokens),
		temp:   float32(opts.Temperature),
	}
	if p.model == "" {
		p.model = "gemini-2.0-flash"
	}
	if p.system == "" {
		p.system = DefaultSystemPrompt
	}
	if p.tokens == 0 {
		p.tokens = 150
	}
	if p.temp == 0 {
		p.temp = 0.7
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Complete generates the assistant reply for userText, with history supplied
// in chronological order. Assistant turns map to the Gemini "model" role.
func (p *GeminiProvider) Complete(ctx context.Context, history []pipeline.Turn, userText string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == pipeline.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(userText, genai.RoleUser))

	temp := p.temp
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.system, genai.RoleUser),
		MaxOutputTokens:   p.tokens,
		Temperature:       &temp,
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	return resp.Text(), nil
}
