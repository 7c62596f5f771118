package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tessellate-ai/loom/config"
	"github.com/tessellate-ai/loom/core"
)

const defaultOllamaModel = "llama3.2"

// ollamaProvider generates against a local Ollama server.
type ollamaProvider struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func newOllama(cfg config.LLMConfig) (*ollamaProvider, error) {
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ollamaProvider{
		baseURL:     cfg.OllamaURL,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (p *ollamaProvider) Name() string {
	return "ollama"
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

func (p *ollamaProvider) Generate(ctx context.Context, messages []core.Message) (string, error) {
	system, rest := splitSystem(messages)

	apiMessages := make([]chatMessage, 0, len(rest)+1)
	if system != "" {
		apiMessages = append(apiMessages, chatMessage{Role: core.RoleSystem, Content: system})
	}
	for _, m := range rest {
		apiMessages = append(apiMessages, chatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(ollamaRequest{
		Model:    p.model,
		Messages: apiMessages,
		Stream:   false,
		Options: map[string]any{
			"temperature": p.temperature,
			"num_predict": p.maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama api: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama api: status %d: %s", resp.StatusCode, truncateBody(data))
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama api: %s", parsed.Error)
	}
	return parsed.Message.Content, nil
}
