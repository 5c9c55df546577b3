package port

import (
	"context"
	"errors"

	"mammo-report/internal/domain/entity"
)

// ErrNotFound элемент очереди не найден
var ErrNotFound = errors.New("queue item not found")

// TriageRepository интерфейс хранилища очереди на просмотр
type TriageRepository interface {
	// Save сохраняет новый элемент очереди
	Save(ctx context.Context, item *entity.QueueItem) error

	// Get возвращает элемент по ID или ErrNotFound
	Get(ctx context.Context, id string) (*entity.QueueItem, error)

	// List возвращает элементы: сначала самые срочные, затем самые старые
	List(ctx context.Context, limit int) ([]*entity.QueueItem, error)

	// UpdateStatus меняет статус элемента
	UpdateStatus(ctx context.Context, id string, status entity.QueueStatus) error
}
