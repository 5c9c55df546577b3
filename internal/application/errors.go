package app

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotLoaded инференс вызван до успешной загрузки модели.
	ErrModelNotLoaded = errors.New("model is not loaded. Ensure the application startup completed successfully")

	// ErrModelInit модель не удалось загрузить за все попытки.
	ErrModelInit = errors.New("model initialization failed")
)

// LoadError фатальная ошибка загрузки модели.
type LoadError struct {
	ModelID  string
	Attempts int
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model %q after %d attempts: %v", e.ModelID, e.Attempts, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrModelInit, e.Err}
}

// FailureKind класс ошибки генерации, видимый снаружи.
type FailureKind string

const (
	FailureTimeout     FailureKind = "TIMEOUT"
	FailureUnavailable FailureKind = "UNAVAILABLE"
	FailureInternal    FailureKind = "INTERNAL"
)

const (
	msgTimeout  = "Report generation timed out. The model took too long to respond. Please try again later."
	msgInternal = "An unexpected error occurred while generating the report."
)

// Failure классифицированная ошибка генерации отчёта.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// PublicMessage текст, который можно показать клиенту.
// Для внутренних ошибок детали не раскрываются.
func (f *Failure) PublicMessage() string {
	switch f.Kind {
	case FailureTimeout:
		return msgTimeout
	case FailureUnavailable:
		return ErrModelNotLoaded.Error() + "."
	default:
		return msgInternal
	}
}

// FailureKindOf возвращает класс ошибки или FailureInternal для неклассифицированных.
func FailureKindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureInternal
}
