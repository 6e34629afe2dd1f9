package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Vovarama1992/medassist-core/internal/apperr"
)

const providerOpenAI = "openai"

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d: %s", e.StatusCode, e.Body)
}

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
// The request body is the standard go-openai shape; the response is
// decoded by hand because content may arrive as a plain string or as an
// array of content parts.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OpenAIClient) Name() string { return providerOpenAI }

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Result, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return Result{}, apperr.New(apperr.KindInternal, "openai_marshal_request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, apperr.New(apperr.KindInternal, "openai_build_request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, apperr.New(apperr.KindUpstream, "openai_request_failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, apperr.New(apperr.KindUpstream, "openai_read_response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, apperr.New(apperr.KindUpstream, "openai_bad_status",
			&StatusError{StatusCode: resp.StatusCode, Body: short(string(raw))})
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Result{}, apperr.New(apperr.KindUpstream, "openai_decode_response", err)
	}
	if len(payload.Choices) == 0 {
		return Result{}, apperr.New(apperr.KindUpstream, "openai_empty_choices", nil)
	}

	content, err := decodeContent(payload.Choices[0].Message.Content)
	if err != nil {
		return Result{}, apperr.New(apperr.KindUpstream, "openai_malformed_content", err)
	}

	return Result{
		Provider:          providerOpenAI,
		Model:             payload.Model,
		Content:           content,
		FinishReason:      payload.Choices[0].FinishReason,
		PromptTokens:      payload.Usage.PromptTokens,
		CompletionTokens:  payload.Usage.CompletionTokens,
		ProviderRequestID: payload.ID,
	}, nil
}

// decodeContent accepts both content shapes: "text" and
// [{"type":"text","text":"..."}, ...]. Non-text parts are skipped.
func decodeContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("content missing")
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("unsupported content shape: %w", err)
	}

	var b strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}

func short(s string) string {
	if len(s) > 180 {
		return s[:180] + "..."
	}
	return s
}
