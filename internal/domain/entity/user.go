package entity

import (
	"errors"
	"fmt"
)

// ErrBusy для пользователя уже идёт генерация отчёта
var ErrBusy = errors.New("report generation already in progress")

// UserState шаг диалога с ботом
type UserState string

const (
	StateMainMenu     UserState = "main_menu"     // В главном меню
	StateAwaitingScan UserState = "awaiting_scan" // Ожидание снимка
	StateProcessing   UserState = "processing"    // Генерация отчёта
)

// Возврат в главное меню разрешён из любого состояния.
var transitions = map[UserState][]UserState{
	StateMainMenu:     {StateAwaitingScan, StateProcessing},
	StateAwaitingScan: {StateAwaitingScan, StateProcessing},
	StateProcessing:   {},
}

// User пользователь бота и его шаг в диалоге
type User struct {
	ID     int64 // Telegram User ID
	ChatID int64 // Telegram Chat ID
	State  UserState
}

// NewUser создаёт пользователя в главном меню
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState меняет состояние без проверок
func (u *User) SetState(state UserState) {
	u.State = state
}

// Transition переводит пользователя в state, если переход допустим.
// Пока идёт генерация, возвращается ErrBusy.
func (u *User) Transition(state UserState) error {
	if state == StateMainMenu {
		u.State = state
		return nil
	}
	if u.Busy() {
		return ErrBusy
	}
	for _, next := range transitions[u.State] {
		if next == state {
			u.State = state
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", u.State, state)
}

// Busy сообщает, что для пользователя уже идёт генерация отчёта
func (u *User) Busy() bool {
	return u.State == StateProcessing
}
