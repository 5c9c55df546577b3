package port

import "mammo-report/internal/domain/entity"

// PromptSource отдаёт шаблоны промптов по имени.
type PromptSource interface {
	Template(name string) (entity.PromptTemplate, error)
}
