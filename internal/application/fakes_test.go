package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

const (
	fakePadID = 0
	fakeEOSID = 1
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeModel struct {
	device     string
	completion string
	err        error
	closed     atomic.Bool

	mu      sync.Mutex
	lastCfg entity.GenerationConfig
	lastIn  *entity.ModelInputs
}

func (m *fakeModel) Device() string { return m.device }

func (m *fakeModel) Generate(ctx context.Context, in *entity.ModelInputs, cfg entity.GenerationConfig) ([]entity.Token, error) {
	m.mu.Lock()
	m.lastCfg = cfg
	m.lastIn = in
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	out := append([]entity.Token{}, in.Tokens...)
	out = append(out,
		entity.Token{ID: 10, Piece: m.completion},
		entity.Token{ID: fakeEOSID, Piece: "<eos>", Special: true},
	)
	return out, nil
}

func (m *fakeModel) Close() error {
	m.closed.Store(true)
	return nil
}

type fakeProcessor struct {
	pad    int
	hasPad bool

	mu       sync.Mutex
	messages []entity.ChatMessage
	calls    int
}

func (p *fakeProcessor) ApplyChatTemplate(ctx context.Context, messages []entity.ChatMessage) (*entity.ModelInputs, error) {
	p.mu.Lock()
	p.messages = messages
	p.calls++
	p.mu.Unlock()

	var tokens []entity.Token
	for _, msg := range messages {
		tokens = append(tokens, entity.Token{ID: 2, Piece: "<" + string(msg.Role) + ">", Special: true})
		for _, part := range msg.Content {
			tokens = append(tokens, entity.Token{ID: 3, Piece: part.Text})
		}
	}
	return &entity.ModelInputs{Messages: messages, Tokens: tokens}, nil
}

func (p *fakeProcessor) Decode(tokens []entity.Token, skipSpecial bool) string {
	var b strings.Builder
	for _, t := range tokens {
		if t.Special && skipSpecial {
			continue
		}
		b.WriteString(t.Piece)
	}
	return b.String()
}

func (p *fakeProcessor) PadTokenID() (int, bool) { return p.pad, p.hasPad }

func (p *fakeProcessor) EOSTokenID() int { return fakeEOSID }

// fakeProvider падает failures раз, затем отдаёт model.
type fakeProvider struct {
	model       *fakeModel
	processor   *fakeProcessor
	failures    int
	adapterErr  error
	accelerator bool

	baseCalls  atomic.Int32
	cacheCalls atomic.Int32
}

func (p *fakeProvider) LoadBase(ctx context.Context, modelID string, opts entity.LoadOptions) (port.GenerativeModel, error) {
	n := int(p.baseCalls.Add(1))
	if n <= p.failures {
		return nil, errors.New("weights not reachable")
	}
	return p.model, nil
}

func (p *fakeProvider) LoadAdapter(ctx context.Context, base port.GenerativeModel, adapterID string) (port.GenerativeModel, error) {
	if p.adapterErr != nil {
		return nil, p.adapterErr
	}
	return base, nil
}

func (p *fakeProvider) LoadProcessor(ctx context.Context, modelID string) (port.Processor, error) {
	return p.processor, nil
}

func (p *fakeProvider) AcceleratorAvailable() bool { return p.accelerator }

func (p *fakeProvider) EmptyCache(ctx context.Context) error {
	p.cacheCalls.Add(1)
	return nil
}

type fakeDecoder struct {
	err   error
	calls atomic.Int32
}

func (d *fakeDecoder) DecodeRGB(data []byte) (*entity.Raster, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return &entity.Raster{Width: 1, Height: 1, Pix: []byte{1, 2, 3}}, nil
}

type fakePrompts struct{}

func (fakePrompts) Template(name string) (entity.PromptTemplate, error) {
	if name != DefaultPromptName {
		return entity.PromptTemplate{}, errors.New("unknown prompt")
	}
	return entity.PromptTemplate{
		System:          "You are an expert radiologist.\n",
		UserInstruction: "Describe the mammogram.",
	}, nil
}

func newFakeProvider(completion string) *fakeProvider {
	return &fakeProvider{
		model:     &fakeModel{device: "cuda:0", completion: completion},
		processor: &fakeProcessor{pad: fakePadID, hasPad: true},
	}
}

func loadedManager(provider *fakeProvider) *ModelManager {
	m := NewModelManager(provider, ModelConfig{ModelID: "medgemma", DefaultRetries: 3}, discardLogger())
	if err := m.Load(context.Background(), 0); err != nil {
		panic(err)
	}
	return m
}

var errTestDecode = errors.New("cannot decode image")
