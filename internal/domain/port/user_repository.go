package port

import (
	"context"

	"mammo-report/internal/domain/entity"
)

// UserRepository хранит состояние диалога пользователей бота.
// Возвращаемые значения являются копиями, изменения видны только после Save.
type UserRepository interface {
	// Get возвращает пользователя, при первом обращении создаёт его в главном меню
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	Save(ctx context.Context, user *entity.User) error

	// UpdateState меняет состояние известного пользователя, неизвестные игнорируются
	UpdateState(ctx context.Context, userID int64, state entity.UserState) error
}
