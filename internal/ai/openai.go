package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// openAIProvider talks to any OpenAI compatible endpoint. langchaingo binds
// the embedding model at client construction, so one client is kept per model.
type openAIProvider struct {
	apiKey  string
	baseURL string

	mu      sync.Mutex
	clients map[string]*openai.LLM
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) client(model string) (*openai.LLM, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[model]; ok {
		return c, nil
	}
	c, err := openai.New(
		openai.WithToken(p.apiKey),
		openai.WithBaseURL(p.baseURL),
		openai.WithModel(model),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, err
	}
	p.clients[model] = c
	return c, nil
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	c, err := p.client(model)
	if err != nil {
		return "", err
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c, prompt, llms.WithModel(model))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error) {
	_ = taskType
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	c, err := p.client(model)
	if err != nil {
		return nil, err
	}
	return c.CreateEmbedding(ctx, texts)
}

func createOpenAIFactory(args interface{}) (IProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		clients: make(map[string]*openai.LLM),
	}, nil
}

func init() {
	Register("openai", createOpenAIFactory)
}
