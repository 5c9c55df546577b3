package app

import (
	"context"
	"sync"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

// UserService ведёт пользователей бота по шагам диалога.
type UserService struct {
	repo port.UserRepository

	// Проверка состояния и запись выполняются атомарно.
	mu sync.Mutex
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

// BeginCheck ждёт снимок от пользователя. Во время генерации возвращает entity.ErrBusy.
func (s *UserService) BeginCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.transition(ctx, userID, chatID, entity.StateAwaitingScan)
}

// StartProcessing занимает пользователя на время генерации. Повторный вызов возвращает entity.ErrBusy.
func (s *UserService) StartProcessing(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.transition(ctx, userID, chatID, entity.StateProcessing)
}

// Cancel возвращает пользователя в главное меню.
func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.transition(ctx, userID, chatID, entity.StateMainMenu)
}

// Finish освобождает пользователя после генерации.
func (s *UserService) Finish(ctx context.Context, userID int64) error {
	return s.repo.UpdateState(ctx, userID, entity.StateMainMenu)
}

func (s *UserService) transition(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if err := user.Transition(state); err != nil {
		return user, err
	}
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
