// Package llm provides completion clients for the pipeline. Both providers
// take the same bounded history window and return plain reply text.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vango-go/voicebridge/pkg/pipeline"
)

const defaultBaseURL = "https://api.openai.com/v1"

// DefaultSystemPrompt keeps replies short enough to speak over the phone.
const DefaultSystemPrompt = "You are a helpful AI assistant on a phone call. " +
	"Keep your responses concise and conversational, as they will be spoken aloud. " +
	"Avoid lists, markdown, and long explanations."

// Options configures the OpenAI-compatible chat client.
type Options struct {
	BaseURL      string  // defaults to the OpenAI API
	Model        string  // defaults to gpt-4o-mini
	SystemPrompt string  // defaults to DefaultSystemPrompt
	MaxTokens    int     // defaults to 150
	Temperature  float64 // defaults to 0.7
}

// OpenAIProvider generates replies against an OpenAI-compatible
// /chat/completions endpoint.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	system     string
	maxTokens  int
	temp       float64
	httpClient *http.Client
}

// NewOpenAI creates a chat completion client.
func NewOpenAI(apiKey string, opts Options) *OpenAIProvider {
	return NewOpenAIWithClient(apiKey, opts, &http.Client{})
}

// NewOpenAIWithClient creates a chat completion client with a custom HTTP
// client.
func NewOpenAIWithClient(apiKey string, opts Options, client *http.Client) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    opts.BaseURL,
		model:      opts.Model,
		system:     opts.SystemPrompt,
		maxTokens:  opts.MaxTokens,
		temp:       opts.Temperature,
		httpClient: client,
	}
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
	}
	if p.model == "" {
		p.model = "gpt-4o-mini"
	}
	if p.system == "" {
		p.system = DefaultSystemPrompt
	}
	if p.maxTokens == 0 {
		p.maxTokens = 150
	}
	if p.temp == 0 {
		p.temp = 0.7
	}
	return p
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai-chat"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete generates the assistant reply for userText, with history supplied
// in chronological order.
func (p *OpenAIProvider) Complete(ctx context.Context, history []pipeline.Turn, userText string) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: p.system})
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userText})

	body, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: p.temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("completion error %d: %s", resp.StatusCode, string(b))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
