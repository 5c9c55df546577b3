// Package engine содержит общий процессор для удалённых моделей.
// Удалённый сервер сам токенизирует промпт, поэтому токены здесь крупные:
// маркеры ролей и целые текстовые фрагменты.
package engine

import (
	"context"
	"errors"
	"strings"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

const (
	PadTokenID = 0
	EOSTokenID = 1

	turnTokenID  = 2
	textTokenID  = 3
	imageTokenID = 4
)

// ChatProcessor реализует port.Processor поверх структурированных сообщений.
type ChatProcessor struct{}

func NewChatProcessor() *ChatProcessor {
	return &ChatProcessor{}
}

func (p *ChatProcessor) ApplyChatTemplate(ctx context.Context, messages []entity.ChatMessage) (*entity.ModelInputs, error) {
	if len(messages) == 0 {
		return nil, errors.New("empty conversation")
	}

	var tokens []entity.Token
	for _, msg := range messages {
		tokens = append(tokens, entity.Token{ID: turnTokenID, Piece: "<start_of_turn>" + string(msg.Role), Special: true})
		for _, part := range msg.Content {
			switch part.Type {
			case entity.PartText:
				tokens = append(tokens, entity.Token{ID: textTokenID, Piece: part.Text})
			case entity.PartImage:
				if part.Image == nil {
					return nil, errors.New("image part without image")
				}
				tokens = append(tokens, entity.Token{ID: imageTokenID, Piece: "<image>", Special: true})
			}
		}
		tokens = append(tokens, entity.Token{ID: turnTokenID, Piece: "<end_of_turn>", Special: true})
	}

	return &entity.ModelInputs{Messages: messages, Tokens: tokens}, nil
}

func (p *ChatProcessor) Decode(tokens []entity.Token, skipSpecial bool) string {
	var b strings.Builder
	for _, t := range tokens {
		if t.Special && skipSpecial {
			continue
		}
		b.WriteString(t.Piece)
	}
	return b.String()
}

func (p *ChatProcessor) PadTokenID() (int, bool) {
	return PadTokenID, true
}

func (p *ChatProcessor) EOSTokenID() int {
	return EOSTokenID
}

// Completion склеивает токены промпта с ответом модели и EOS.
func Completion(inputs *entity.ModelInputs, text string) []entity.Token {
	out := make([]entity.Token, 0, inputs.Len()+2)
	out = append(out, inputs.Tokens...)
	out = append(out,
		entity.Token{ID: textTokenID, Piece: text},
		entity.Token{ID: EOSTokenID, Piece: "<eos>", Special: true},
	)
	return out
}

// SystemText возвращает текст системных сообщений.
func SystemText(messages []entity.ChatMessage) string {
	var parts []string
	for _, msg := range messages {
		if msg.Role != entity.RoleSystem {
			continue
		}
		for _, part := range msg.Content {
			if part.Type == entity.PartText && part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// UserParts возвращает фрагменты пользовательских сообщений по порядку.
func UserParts(messages []entity.ChatMessage) []entity.ContentPart {
	var out []entity.ContentPart
	for _, msg := range messages {
		if msg.Role == entity.RoleUser {
			out = append(out, msg.Content...)
		}
	}
	return out
}

var _ port.Processor = (*ChatProcessor)(nil)
