package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
	"mammo-report/internal/infrastructure/engine"
	"mammo-report/internal/infrastructure/vision"
)

const (
	device      = "remote:gemini"
	jpegQuality = 92
)

// Provider загружает модели Gemini через Generative Language API.
type Provider struct {
	APIKey string
}

func New(apiKey string) *Provider {
	return &Provider{APIKey: strings.TrimSpace(apiKey)}
}

// LoadBase открывает клиента и проверяет, что модель существует.
func (p *Provider) LoadBase(ctx context.Context, modelID string, opts entity.LoadOptions) (port.GenerativeModel, error) {
	if p.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(p.APIKey))
	if err != nil {
		return nil, err
	}

	s := &session{client: cl}
	m, err := s.open(ctx, modelID)
	if err != nil {
		_ = s.close()
		return nil, err
	}
	return m, nil
}

// LoadAdapter переключается на дообученную модель (tunedModels/...).
// Совпадение с базовой моделью означает отсутствие адаптера.
func (p *Provider) LoadAdapter(ctx context.Context, base port.GenerativeModel, adapterID string) (port.GenerativeModel, error) {
	m, ok := base.(*Model)
	if !ok {
		return nil, fmt.Errorf("gemini: unexpected base model %T", base)
	}
	if sameModel(m.name, adapterID) {
		return m, nil
	}
	return m.session.open(ctx, adapterID)
}

func (p *Provider) LoadProcessor(ctx context.Context, modelID string) (port.Processor, error) {
	return engine.NewChatProcessor(), nil
}

// AcceleratorAvailable: памятью управляет сервис, локального кэша нет.
func (p *Provider) AcceleratorAvailable() bool { return false }

func (p *Provider) EmptyCache(ctx context.Context) error { return nil }

type session struct {
	client *genai.Client
	once   sync.Once
	err    error
}

func (s *session) open(ctx context.Context, name string) (*Model, error) {
	info, err := s.client.GenerativeModel(name).Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini: model %s: %w", name, err)
	}
	return &Model{session: s, name: name, outputLimit: int(info.OutputTokenLimit)}, nil
}

func (s *session) close() error {
	s.once.Do(func() { s.err = s.client.Close() })
	return s.err
}

// Model модель Gemini. Безопасна для параллельных вызовов Generate.
type Model struct {
	session     *session
	name        string
	outputLimit int
}

func (m *Model) Device() string { return device }

func (m *Model) Close() error { return m.session.close() }

func (m *Model) Generate(ctx context.Context, in *entity.ModelInputs, cfg entity.GenerationConfig) ([]entity.Token, error) {
	system, parts, err := buildRequest(in.Messages)
	if err != nil {
		return nil, err
	}

	// GenerativeModel хранит настройки в полях, поэтому свой экземпляр на каждый вызов.
	gm := m.session.client.GenerativeModel(m.name)
	gm.SetMaxOutputTokens(int32(m.maxTokens(cfg.MaxNewTokens)))
	if !cfg.DoSample {
		gm.SetTemperature(0)
		gm.SetCandidateCount(1)
	}
	if system != nil {
		gm.SystemInstruction = system
	}

	resp, err := gm.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return engine.Completion(in, firstText(resp)), nil
}

func (m *Model) maxTokens(requested int) int {
	if m.outputLimit > 0 && requested > m.outputLimit {
		return m.outputLimit
	}
	return requested
}

func buildRequest(messages []entity.ChatMessage) (*genai.Content, []genai.Part, error) {
	var system *genai.Content
	if text := engine.SystemText(messages); text != "" {
		system = &genai.Content{Parts: []genai.Part{genai.Text(text)}}
	}

	var parts []genai.Part
	for _, part := range engine.UserParts(messages) {
		switch part.Type {
		case entity.PartText:
			parts = append(parts, genai.Text(part.Text))
		case entity.PartImage:
			data, err := vision.EncodeJPEG(part.Image, jpegQuality)
			if err != nil {
				return nil, nil, fmt.Errorf("gemini: encode image: %w", err)
			}
			parts = append(parts, genai.ImageData("jpeg", data))
		}
	}
	if len(parts) == 0 {
		return nil, nil, errors.New("gemini: empty user message")
	}
	return system, parts, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func sameModel(a, b string) bool {
	return strings.TrimPrefix(a, "models/") == strings.TrimPrefix(b, "models/")
}

var (
	_ port.ModelProvider   = (*Provider)(nil)
	_ port.GenerativeModel = (*Model)(nil)
)
