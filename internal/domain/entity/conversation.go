package entity

// Role роль участника диалога с моделью
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// PartType тип фрагмента сообщения
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// ContentPart текст или изображение внутри сообщения.
type ContentPart struct {
	Type  PartType
	Text  string
	Image *Raster
}

// TextPart создаёт текстовый фрагмент.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart создаёт фрагмент с изображением.
func ImagePart(img *Raster) ContentPart {
	return ContentPart{Type: PartImage, Image: img}
}

// ChatMessage — один ход структурированного промпта.
type ChatMessage struct {
	Role    Role
	Content []ContentPart
}

// Token элемент последовательности, которой обмениваются процессор и модель.
type Token struct {
	ID      int
	Piece   string
	Special bool
}

// ModelInputs результат применения чат-шаблона, готовый к генерации.
type ModelInputs struct {
	Messages []ChatMessage
	Tokens   []Token
	Device   string
}

// Len возвращает длину промпта в токенах.
func (in *ModelInputs) Len() int {
	return len(in.Tokens)
}

// To размещает входы на указанном устройстве.
func (in *ModelInputs) To(device string) *ModelInputs {
	in.Device = device
	return in
}

// GenerationConfig параметры декодирования.
type GenerationConfig struct {
	MaxNewTokens int
	DoSample     bool
	PadTokenID   int
}

// Precision точность весов при загрузке модели.
type Precision string

const (
	PrecisionFloat16 Precision = "float16"
	PrecisionFloat32 Precision = "float32"
)

// LoadOptions параметры загрузки базовой модели.
type LoadOptions struct {
	Precision Precision
	DeviceMap string
}

// PromptTemplate содержит системную и пользовательскую инструкции.
type PromptTemplate struct {
	System          string `yaml:"system"`
	UserInstruction string `yaml:"user_instruction"`
}
