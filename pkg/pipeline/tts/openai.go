// Package tts provides text-to-speech clients for the pipeline.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Options configures the OpenAI-compatible speech client.
type Options struct {
	BaseURL string  // defaults to the OpenAI API
	Model   string  // defaults to tts-1
	Voice   string  // defaults to alloy
	Speed   float64 // defaults to 1.0
}

// OpenAIProvider synthesizes speech against an OpenAI-compatible
// /audio/speech endpoint, requesting raw PCM output.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	voice      string
	speed      float64
	httpClient *http.Client
}

// NewOpenAI creates a speech synthesis client.
func NewOpenAI(apiKey string, opts Options) *OpenAIProvider {
	return NewOpenAIWithClient(apiKey, opts, &http.Client{})
}

// NewOpenAIWithClient creates a speech synthesis client with a custom HTTP
// client.
func NewOpenAIWithClient(apiKey string, opts Options, client *http.Client) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    opts.BaseURL,
		model:      opts.Model,
		voice:      opts.Voice,
		speed:      opts.Speed,
		httpClient: client,
	}
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
	}
	if p.model == "" {
		p.model = "tts-1"
	}
	if p.voice == "" {
		p.voice = "alloy"
	}
	if p.speed == 0 {
		p.speed = 1.0
	}
	return p
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai-tts"
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

// Synthesize converts text to 16-bit mono PCM at the synthesis sample rate.
func (p *OpenAIProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Model:          p.model,
		Input:          text,
		Voice:          p.voice,
		ResponseFormat: "pcm",
		Speed:          p.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("synthesis error %d: %s", resp.StatusCode, string(b))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(pcm)%2 != 0 {
		// Truncated trailing byte from an interrupted response.
		pcm = pcm[:len(pcm)-1]
	}
	return pcm, nil
}
