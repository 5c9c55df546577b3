package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"mammo-report/config"
	app "mammo-report/internal/application"
	"mammo-report/internal/domain/port"
	"mammo-report/internal/infrastructure/engine/gemini"
	"mammo-report/internal/infrastructure/engine/llamacpp"
	"mammo-report/internal/infrastructure/prompt"
	"mammo-report/internal/infrastructure/storage"
	"mammo-report/internal/infrastructure/vision"
)

type Container struct {
	Models        *app.ModelManager
	Dispatcher    *app.Dispatcher
	ReportService *app.ReportService
	TriageService *app.TriageService
	UserService   *app.UserService

	closers []io.Closer
}

// New собирает сервисы приложения. Модель не загружается, это делает владелец процесса.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	provider, err := newProvider(cfg.Model)
	if err != nil {
		return nil, err
	}

	c := &Container{}

	triageRepo, err := newTriageRepository(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if closer, ok := triageRepo.(io.Closer); ok {
		c.closers = append(c.closers, closer)
	}

	c.Models = app.NewModelManager(provider, app.ModelConfig{
		ModelID:        cfg.Model.ID,
		AdapterID:      cfg.Model.Adapter,
		DefaultRetries: cfg.Model.LoadRetries,
	}, logger.With("component", "model"))

	c.Dispatcher = app.NewDispatcher(
		cfg.Model.Workers,
		time.Duration(cfg.Model.TimeoutSeconds)*time.Second,
		logger.With("component", "dispatcher"),
	)

	inference := app.NewInferenceService(
		c.Models,
		vision.NewDecoder(cfg.Model.ImageMaxSide),
		prompt.NewYAMLSource(cfg.Model.PromptsPath),
		cfg.Model.PromptName,
	)

	c.ReportService = app.NewReportService(c.Models, c.Dispatcher, inference, logger.With("component", "report"))
	c.TriageService = app.NewTriageService(c.ReportService, triageRepo)
	c.UserService = app.NewUserService(storage.NewMemoryUserRepository())

	return c, nil
}

// Close останавливает пул и закрывает хранилища.
func (c *Container) Close() error {
	c.Dispatcher.Close()

	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newProvider(cfg config.ModelConfig) (port.ModelProvider, error) {
	switch cfg.Backend {
	case config.BackendGemini:
		return gemini.New(cfg.GeminiAPIKey), nil
	case config.BackendLlamaCpp:
		p := llamacpp.New(cfg.LlamaCppURL)
		p.UnloadOnRelease = cfg.UnloadOnRelease
		return p, nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
}

func newTriageRepository(ctx context.Context, cfg config.DatabaseConfig) (port.TriageRepository, error) {
	if cfg.Driver == config.DriverMemory {
		return storage.NewMemoryTriageRepository(), nil
	}
	return storage.OpenSQLTriageRepository(ctx, cfg.Driver, cfg.URL)
}
