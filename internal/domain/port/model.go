package port

import (
	"context"

	"mammo-report/internal/domain/entity"
)

// ModelProvider загружает генеративную модель, адаптер и процессор.
type ModelProvider interface {
	// LoadBase загружает базовую модель с указанной точностью и размещением.
	LoadBase(ctx context.Context, modelID string, opts entity.LoadOptions) (GenerativeModel, error)

	// LoadAdapter накладывает дообученный адаптер поверх базовой модели.
	LoadAdapter(ctx context.Context, base GenerativeModel, adapterID string) (GenerativeModel, error)

	// LoadProcessor создаёт процессор (токенизатор и чат-шаблон) для модели.
	LoadProcessor(ctx context.Context, modelID string) (Processor, error)

	// AcceleratorAvailable сообщает, есть ли ускоритель с кэшем памяти.
	AcceleratorAvailable() bool

	// EmptyCache освобождает кэшированную память ускорителя.
	EmptyCache(ctx context.Context) error
}

// GenerativeModel загруженная модель.
type GenerativeModel interface {
	// Device возвращает устройство, на котором находится модель.
	Device() string

	// Generate возвращает полную последовательность: токены промпта и продолжение.
	Generate(ctx context.Context, inputs *entity.ModelInputs, cfg entity.GenerationConfig) ([]entity.Token, error)
}

// Processor готовит входы для модели и декодирует её выход.
type Processor interface {
	ApplyChatTemplate(ctx context.Context, messages []entity.ChatMessage) (*entity.ModelInputs, error)
	Decode(tokens []entity.Token, skipSpecial bool) string

	// PadTokenID возвращает id паддинга, если он определён.
	PadTokenID() (int, bool)
	EOSTokenID() int
}
