package llamacpp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
	"mammo-report/internal/infrastructure/engine"
	"mammo-report/internal/infrastructure/vision"
)

const jpegQuality = 92

// Provider обслуживает модели через llama-server.
type Provider struct {
	client *Client

	// UnloadOnRelease выгружает модель на сервере при освобождении (router mode).
	UnloadOnRelease bool
}

func New(baseURL string) *Provider {
	return &Provider{client: NewClient(baseURL)}
}

// LoadBase проверяет, что сервер отдаёт модель modelID.
func (p *Provider) LoadBase(ctx context.Context, modelID string, opts entity.LoadOptions) (port.GenerativeModel, error) {
	models, err := p.client.GetModels(ctx)
	if err != nil {
		return nil, err
	}

	var served []string
	for _, m := range models.Data {
		if m.ID == modelID {
			return &Model{client: p.client, id: modelID}, nil
		}
		served = append(served, m.ID)
	}
	return nil, fmt.Errorf("model %q is not served by %s (available: %s)", modelID, p.client.BaseURL, strings.Join(served, ", "))
}

// LoadAdapter включает LoRA-адаптер, найденный по пути или имени файла.
func (p *Provider) LoadAdapter(ctx context.Context, base port.GenerativeModel, adapterID string) (port.GenerativeModel, error) {
	m, ok := base.(*Model)
	if !ok {
		return nil, fmt.Errorf("llamacpp: unexpected base model %T", base)
	}
	if adapterID == "" || adapterID == m.id {
		return m, nil
	}

	adapters, err := p.client.GetLoraAdapters(ctx)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range adapters {
		if matchAdapter(adapters[i].Path, adapterID) {
			adapters[i].Scale = 1
			found = true
		} else {
			adapters[i].Scale = 0
		}
		adapters[i].Path = ""
	}
	if !found {
		return nil, fmt.Errorf("lora adapter %q is not loaded on the server", adapterID)
	}

	if err := p.client.SetLoraAdapters(ctx, adapters); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *Provider) LoadProcessor(ctx context.Context, modelID string) (port.Processor, error) {
	return engine.NewChatProcessor(), nil
}

func (p *Provider) AcceleratorAvailable() bool {
	return p.UnloadOnRelease
}

// EmptyCache выгружает модели с сервера. Сервер без router mode отвечает 404, это не ошибка.
func (p *Provider) EmptyCache(ctx context.Context) error {
	models, err := p.client.GetModels(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, m := range models.Data {
		err := p.client.UnloadModel(ctx, m.ID)
		var status *StatusError
		if errors.As(err, &status) && status.Code == http.StatusNotFound {
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func matchAdapter(path, adapterID string) bool {
	if path == adapterID {
		return true
	}
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name)) == filepath.Base(adapterID)
}

// Model модель на llama-server.
type Model struct {
	client *Client
	id     string
}

func (m *Model) Device() string {
	return "remote:" + m.client.BaseURL
}

func (m *Model) Generate(ctx context.Context, in *entity.ModelInputs, cfg entity.GenerationConfig) ([]entity.Token, error) {
	req, err := buildChatRequest(m.id, in.Messages, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: no choices")
	}
	return engine.Completion(in, resp.Choices[0].Message.Content), nil
}

func buildChatRequest(modelID string, messages []entity.ChatMessage, cfg entity.GenerationConfig) (ChatRequest, error) {
	req := ChatRequest{Model: modelID, MaxTokens: cfg.MaxNewTokens}
	if !cfg.DoSample {
		zero := 0.0
		req.Temperature = &zero
	}

	if system := engine.SystemText(messages); system != "" {
		req.Messages = append(req.Messages, Message{Role: string(entity.RoleSystem), Content: system})
	}

	var parts []ContentPart
	for _, part := range engine.UserParts(messages) {
		switch part.Type {
		case entity.PartText:
			parts = append(parts, ContentPart{Type: "text", Text: part.Text})
		case entity.PartImage:
			data, err := vision.EncodeJPEG(part.Image, jpegQuality)
			if err != nil {
				return ChatRequest{}, fmt.Errorf("encode image: %w", err)
			}
			parts = append(parts, ContentPart{
				Type:     "image_url",
				ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)},
			})
		}
	}
	if len(parts) == 0 {
		return ChatRequest{}, errors.New("empty user message")
	}
	req.Messages = append(req.Messages, Message{Role: string(entity.RoleUser), Content: parts})
	return req, nil
}

var (
	_ port.ModelProvider   = (*Provider)(nil)
	_ port.GenerativeModel = (*Model)(nil)
)
