package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
	"mammo-report/internal/retry"
)

// ModelHandle связка загруженной модели, процессора и устройства.
type ModelHandle struct {
	Model     port.GenerativeModel
	Processor port.Processor
	Device    string
}

// ModelConfig параметры загрузки модели.
type ModelConfig struct {
	ModelID        string
	AdapterID      string
	DefaultRetries int
}

// ModelManager владеет единственным живым ModelHandle.
type ModelManager struct {
	provider port.ModelProvider
	cfg      ModelConfig
	logger   *slog.Logger

	mu     sync.RWMutex
	handle *ModelHandle
}

// NewModelManager создаёт менеджер без загруженной модели.
func NewModelManager(provider port.ModelProvider, cfg ModelConfig, logger *slog.Logger) *ModelManager {
	if cfg.AdapterID == "" {
		cfg.AdapterID = cfg.ModelID
	}
	if cfg.DefaultRetries < 1 {
		cfg.DefaultRetries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelManager{provider: provider, cfg: cfg, logger: logger}
}

// Load загружает модель, повторяя попытку до retries раз.
// retries <= 0 означает значение из конфигурации.
func (m *ModelManager) Load(ctx context.Context, retries int) error {
	if retries <= 0 {
		retries = m.cfg.DefaultRetries
	}

	err := retry.Do(ctx, retries, func(ctx context.Context, attempt int) error {
		m.logger.Info("loading model", "model", m.cfg.ModelID, "attempt", attempt, "retries", retries)

		handle, err := m.loadOnce(ctx)
		if err != nil {
			m.logger.Warn("model load attempt failed", "attempt", attempt, "retries", retries, "error", err)
			return err
		}

		m.swap(handle)
		return nil
	})
	if err != nil {
		m.drop()
		loadErr := &LoadError{ModelID: m.cfg.ModelID, Attempts: retries, Err: err}
		var exhausted *retry.Error
		if errors.As(err, &exhausted) {
			loadErr.Attempts = exhausted.Attempts
			loadErr.Err = exhausted.Err
		}
		return loadErr
	}

	m.logger.Info("model loaded successfully", "model", m.cfg.ModelID)
	return nil
}

func (m *ModelManager) loadOnce(ctx context.Context) (*ModelHandle, error) {
	base, err := m.provider.LoadBase(ctx, m.cfg.ModelID, entity.LoadOptions{
		Precision: entity.PrecisionFloat16,
		DeviceMap: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("load base model: %w", err)
	}

	model, err := m.provider.LoadAdapter(ctx, base, m.cfg.AdapterID)
	if err != nil {
		closeModel(base)
		return nil, fmt.Errorf("load adapter: %w", err)
	}

	device := model.Device()
	m.logger.Info("model device resolved", "device", device)

	processor, err := m.provider.LoadProcessor(ctx, m.cfg.ModelID)
	if err != nil {
		closeModel(model)
		return nil, fmt.Errorf("load processor: %w", err)
	}

	return &ModelHandle{Model: model, Processor: processor, Device: device}, nil
}

func (m *ModelManager) swap(handle *ModelHandle) {
	m.mu.Lock()
	prev := m.handle
	m.handle = handle
	m.mu.Unlock()

	if prev != nil && prev.Model != handle.Model {
		closeModel(prev.Model)
	}
}

// drop забывает текущую модель без очистки кэша ускорителя.
func (m *ModelManager) drop() {
	m.mu.Lock()
	prev := m.handle
	m.handle = nil
	m.mu.Unlock()

	if prev != nil {
		closeModel(prev.Model)
	}
}

// Unload сбрасывает модель и освобождает кэш ускорителя. Повторный вызов безопасен.
func (m *ModelManager) Unload(ctx context.Context) {
	m.drop()

	if m.provider.AcceleratorAvailable() {
		if err := m.provider.EmptyCache(ctx); err != nil {
			m.logger.Warn("failed to empty accelerator cache", "error", err)
		}
	}

	m.logger.Info("model unloaded")
}

// Handle возвращает живой хэндл или nil.
func (m *ModelManager) Handle() *ModelHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle
}

// Loaded сообщает, загружена ли модель.
func (m *ModelManager) Loaded() bool {
	return m.Handle() != nil
}

// ModelID возвращает идентификатор обслуживаемой модели.
func (m *ModelManager) ModelID() string {
	return m.cfg.ModelID
}

func closeModel(model port.GenerativeModel) {
	if c, ok := model.(io.Closer); ok {
		_ = c.Close()
	}
}
