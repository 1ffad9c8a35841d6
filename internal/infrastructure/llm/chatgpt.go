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

	"BoardWriter/internal/config"
	"BoardWriter/internal/domain"
	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/ports"
)

const responseFormatHint = `Respond with a JSON object {"title": string, "body": string}. The body is markdown.`

// ChatGPTClient implements ports.Writer backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint    string
	model       string
	apiKey      string
	temperature float64
	httpClient  *http.Client
}

var _ ports.Writer = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig) *ChatGPTClient {
	return &ChatGPTClient{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Write drafts an article for the findings. req.Model overrides the configured model.
func (c *ChatGPTClient) Write(ctx context.Context, req ports.WriteRequest) (domain.Article, error) {
	if c == nil {
		return domain.Article{}, xerrors.New(xerrors.CodeGeneration, "chatgpt client is nil")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	if c.apiKey == "" || c.endpoint == "" || model == "" {
		return domain.Article{}, xerrors.New(xerrors.CodeConfig, "chatgpt client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(req.SystemPrompt) + "\n\n" + responseFormatHint},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature:    c.temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return domain.Article{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Article{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Article{}, xerrors.Wrap(xerrors.CodeGeneration, err, "chatgpt request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		remote := &xerrors.RemoteError{Method: http.MethodPost, URL: c.endpoint, StatusCode: resp.StatusCode, Body: string(payload)}
		return domain.Article{}, xerrors.Wrap(xerrors.CodeGeneration, remote, "chatgpt error "+resp.Status)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Article{}, xerrors.Wrap(xerrors.CodeGeneration, err, "decode chatgpt response")
	}
	if len(decoded.Choices) == 0 {
		return domain.Article{}, xerrors.New(xerrors.CodeGeneration, "chatgpt returned no choices")
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return domain.Article{}, xerrors.New(xerrors.CodeGeneration, "chatgpt returned empty content")
	}

	return parseArticle(content, req.Findings.Item.Title), nil
}

func userPrompt(req ports.WriteRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Instruction))
	b.WriteString("\n\nResearch findings:\n")
	b.WriteString(req.Findings.Text())
	return b.String()
}

// parseArticle accepts the JSON shape requested in the prompt and falls back
// to treating the whole reply as the body.
func parseArticle(content, fallbackTitle string) domain.Article {
	raw := strings.TrimSpace(content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err == nil && strings.TrimSpace(parsed.Body) != "" {
		title := strings.TrimSpace(parsed.Title)
		if title == "" {
			title = fallbackTitle
		}
		return domain.Article{Title: title, Body: strings.TrimSpace(parsed.Body)}
	}
	return domain.Article{Title: fallbackTitle, Body: content}
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a technical writer who turns research notes into short practical articles."
	}
	return prompt
}
