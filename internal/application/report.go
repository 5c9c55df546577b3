package app

import (
	"context"
	"log/slog"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/extraction"
)

// ReportService собирает конвейер: диспетчер, инференс и разбор текста.
type ReportService struct {
	models     *ModelManager
	dispatcher *Dispatcher
	inference  *InferenceService
	logger     *slog.Logger
}

// NewReportService создаёт конвейер генерации отчётов.
func NewReportService(models *ModelManager, dispatcher *Dispatcher, inference *InferenceService, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		models:     models,
		dispatcher: dispatcher,
		inference:  inference,
		logger:     logger,
	}
}

// GenerateReport генерирует отчёт и извлекает из него находки и срочность.
// Ошибки возвращаются как *Failure.
func (s *ReportService) GenerateReport(ctx context.Context, req entity.ReportRequest) (*entity.StructuredFinding, error) {
	if !s.models.Loaded() {
		s.logger.Error("report requested while model is not loaded")
		return nil, &Failure{Kind: FailureUnavailable, Err: ErrModelNotLoaded}
	}

	text, err := s.dispatcher.Dispatch(ctx, func(ctx context.Context) (string, error) {
		return s.inference.RunInference(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	finding := extraction.Extract(text)
	s.logger.Debug("report generated", "chars", len(text), "has_findings", finding.Report != nil, "has_score", finding.HasScore())
	return &finding, nil
}
