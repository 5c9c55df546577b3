package llamacpp

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

const metadataTimeout = 10 * time.Second

// Client клиент llama-server (OpenAI-совместимый API).
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		// Генерация ограничивается контекстом запроса, а не клиентом.
		HTTP: &http.Client{},
	}
}

type ModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (c *Client) GetModels(ctx context.Context) (*ModelsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	var out ModelsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/models", nil, &out); err != nil {
		return nil, fmt.Errorf("models: %w", err)
	}
	return &out, nil
}

type LoraAdapter struct {
	ID    int     `json:"id"`
	Path  string  `json:"path,omitempty"`
	Scale float64 `json:"scale"`
}

func (c *Client) GetLoraAdapters(ctx context.Context) ([]LoraAdapter, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	var out []LoraAdapter
	if err := c.do(ctx, http.MethodGet, "/lora-adapters", nil, &out); err != nil {
		return nil, fmt.Errorf("lora adapters: %w", err)
	}
	return out, nil
}

func (c *Client) SetLoraAdapters(ctx context.Context, adapters []LoraAdapter) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if err := c.do(ctx, http.MethodPost, "/lora-adapters", adapters, nil); err != nil {
		return fmt.Errorf("set lora adapters: %w", err)
	}
	return nil
}

type ImageURL struct {
	URL string `json:"url"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chat/completions", req, &out); err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	return &out, nil
}

type unloadReq struct {
	Model string `json:"model"`
}

func (c *Client) UnloadModel(ctx context.Context, modelID string) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if err := c.do(ctx, http.MethodPost, "/models/unload", unloadReq{Model: modelID}, nil); err != nil {
		return fmt.Errorf("unload: %w", err)
	}
	return nil
}

// StatusError ответ сервера с кодом не 2xx.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d body=%s", e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
