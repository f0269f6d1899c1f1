package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	ollama "github.com/ollama/ollama/api"
	"google.golang.org/genai"

	"github/itish2003/manual-assistant/config"
)

// Generator produces answer text for a fully built prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewGenerator returns the backend named in the config.
func NewGenerator(ctx context.Context, cfg config.GeneratorConfig) (Generator, error) {
	switch cfg.Type {
	case "ollama", "":
		return NewOllamaGenerator(cfg)
	case "gemini":
		return NewGeminiGenerator(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

// OllamaGenerator runs a non-streaming /api/generate call on a local model.
type OllamaGenerator struct {
	client *ollama.Client
	model  string
}

func NewOllamaGenerator(cfg config.GeneratorConfig) (*OllamaGenerator, error) {
	parsedURL, err := url.Parse(cfg.OllamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url: %w", err)
	}
	hc := &http.Client{Timeout: cfg.Timeout()}
	return &OllamaGenerator{client: ollama.NewClient(parsedURL, hc), model: cfg.Model}, nil
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	var sb strings.Builder
	err := g.client.Generate(ctx, &ollama.GenerateRequest{
		Model:  g.model,
		System: SystemPrompt,
		Prompt: prompt,
		Stream: &stream,
	}, func(resp ollama.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama generate: %w", ErrBackendUnavailable, err)
	}
	return sb.String(), nil
}

// GeminiGenerator sends the prompt as a single user turn to the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, cfg config.GeneratorConfig) (*GeminiGenerator, error) {
	apiKey := os.Getenv(cfg.GeminiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not set in %s", cfg.GeminiKeyEnv)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: cfg.Model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.Text(SystemPrompt)[0],
	})
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %w", ErrBackendUnavailable, err)
	}
	return resp.Text(), nil
}
