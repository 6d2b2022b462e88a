package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ollamaName           = "ollama"
	defaultOllamaBaseURL = "http://127.0.0.1:11434"
)

// OllamaProvider calls a local Ollama server's chat API.
type OllamaProvider struct {
	client  *http.Client
	baseURL string
}

var _ Provider = (*OllamaProvider)(nil)

// NewOllamaProvider creates an Ollama provider.
func NewOllamaProvider(baseURL string, timeout time.Duration) *OllamaProvider {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name returns "ollama".
func (p *OllamaProvider) Name() string {
	return ollamaName
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error"`

	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

// Generate completes a chat request.
func (p *OllamaProvider) Generate(ctx context.Context, req Request) (Result, error) {
	messages := make([]ollamaMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, ollamaMessage{Role: string(RoleSystem), Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	body, err := json.Marshal(ollamaRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   false,
		Options:  options,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Result{}, &ProviderError{Provider: ollamaName, Kind: KindTransient, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return Result{}, &ProviderError{Provider: ollamaName, Kind: KindTransient, Err: err}
	}
	var parsed ollamaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode < 300 {
		return Result{}, &ProviderError{Provider: ollamaName, Kind: KindTransient, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &ProviderError{
			Provider:   ollamaName,
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    parsed.Error,
		}
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return Result{}, &ProviderError{Provider: ollamaName, Kind: KindTransient, Message: "response has no content"}
	}
	return Result{
		Text:  parsed.Message.Content,
		Model: parsed.Model,
		Usage: Usage{
			InputTokens:  parsed.PromptEvalCount,
			OutputTokens: parsed.EvalCount,
		},
	}, nil
}
