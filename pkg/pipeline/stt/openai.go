// Package stt provides speech-to-text clients for the pipeline.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/vango-go/voicebridge/pkg/audio"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Options configures the OpenAI-compatible transcription client.
type Options struct {
	BaseURL  string // defaults to the OpenAI API
	Model    string // defaults to whisper-1
	Language string // optional ISO 639-1 hint
}

// OpenAIProvider transcribes audio against an OpenAI-compatible
// /audio/transcriptions endpoint.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// NewOpenAI creates a transcription client.
func NewOpenAI(apiKey string, opts Options) *OpenAIProvider {
	return NewOpenAIWithClient(apiKey, opts, &http.Client{})
}

// NewOpenAIWithClient creates a transcription client with a custom HTTP
// client.
func NewOpenAIWithClient(apiKey string, opts Options, client *http.Client) *OpenAIProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		language:   opts.Language,
		httpClient: client,
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai-stt"
}

// Transcribe converts 16-bit mono PCM at the transcription sample rate to
// text. The endpoint is file-based, so the PCM is wrapped in a WAV header.
func (p *OpenAIProvider) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio.WAV(pcm, audio.TranscribeSampleRate)); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.WriteField("model", p.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if p.language != "" {
		if err := mw.WriteField("language", p.language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcription error %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return out.Text, nil
}
