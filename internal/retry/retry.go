// Package retry содержит ограниченный повтор операции без задержки.
package retry

import (
	"context"
	"fmt"
)

// Error возвращается, когда все попытки исчерпаны.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Do вызывает op до attempts раз подряд, пока она не вернёт nil.
// Номер попытки начинается с 1. Отмена ctx прерывает цикл между попытками.
func Do(ctx context.Context, attempts int, op func(ctx context.Context, attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last == nil {
				last = err
			}
			return &Error{Attempts: attempt - 1, Err: last}
		}

		if last = op(ctx, attempt); last == nil {
			return nil
		}
	}

	return &Error{Attempts: attempts, Err: last}
}
