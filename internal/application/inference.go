package app

import (
	"context"
	"fmt"
	"strings"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

const (
	// MaxNewTokens предел длины сгенерированного отчёта.
	MaxNewTokens = 1024

	// DefaultPromptName ключ шаблона в файле промптов.
	DefaultPromptName = "mammography_analysis"

	notesSeparator = "\n\nAdditional clinical notes: "
)

// InferenceService превращает снимок и заметки в сырой текст отчёта.
// Вызов блокирующий и должен выполняться в пуле воркеров.
type InferenceService struct {
	models     *ModelManager
	decoder    port.ImageDecoder
	prompts    port.PromptSource
	promptName string
}

// NewInferenceService создаёт сервис инференса.
func NewInferenceService(models *ModelManager, decoder port.ImageDecoder, prompts port.PromptSource, promptName string) *InferenceService {
	if promptName == "" {
		promptName = DefaultPromptName
	}
	return &InferenceService{
		models:     models,
		decoder:    decoder,
		prompts:    prompts,
		promptName: promptName,
	}
}

// RunInference генерирует отчёт по снимку.
func (s *InferenceService) RunInference(ctx context.Context, req entity.ReportRequest) (string, error) {
	handle := s.models.Handle()
	if handle == nil || handle.Model == nil || handle.Processor == nil {
		return "", ErrModelNotLoaded
	}

	raster, err := s.decoder.DecodeRGB(req.Image)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	tmpl, err := s.prompts.Template(s.promptName)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", s.promptName, err)
	}

	inputs, err := handle.Processor.ApplyChatTemplate(ctx, BuildConversation(tmpl, raster, req.Notes))
	if err != nil {
		return "", fmt.Errorf("apply chat template: %w", err)
	}
	inputs = inputs.To(handle.Device)
	inputLen := inputs.Len()

	padID, ok := handle.Processor.PadTokenID()
	if !ok {
		padID = handle.Processor.EOSTokenID()
	}

	output, err := handle.Model.Generate(ctx, inputs, entity.GenerationConfig{
		MaxNewTokens: MaxNewTokens,
		DoSample:     false,
		PadTokenID:   padID,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(output) < inputLen {
		return "", fmt.Errorf("generate: output shorter than prompt (%d < %d)", len(output), inputLen)
	}

	text := handle.Processor.Decode(output[inputLen:], true)
	return strings.TrimSpace(text), nil
}

// BuildConversation собирает двухходовой промпт: system и user со снимком.
func BuildConversation(tmpl entity.PromptTemplate, img *entity.Raster, notes string) []entity.ChatMessage {
	userText := strings.TrimSpace(tmpl.UserInstruction)
	if notes != "" {
		userText += notesSeparator + notes
	}

	return []entity.ChatMessage{
		{
			Role:    entity.RoleSystem,
			Content: []entity.ContentPart{entity.TextPart(strings.TrimSpace(tmpl.System))},
		},
		{
			Role: entity.RoleUser,
			Content: []entity.ContentPart{
				entity.ImagePart(img),
				entity.TextPart(userText),
			},
		},
	}
}
