package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

// ErrInvalidStatus неизвестный статус элемента очереди.
var ErrInvalidStatus = errors.New("invalid queue status")

const defaultListLimit = 50

// TriageService генерирует отчёт по снимку и ставит его в очередь на просмотр.
type TriageService struct {
	reports *ReportService
	repo    port.TriageRepository
	now     func() time.Time
}

// NewTriageService создаёт сервис очереди.
func NewTriageService(reports *ReportService, repo port.TriageRepository) *TriageService {
	return &TriageService{
		reports: reports,
		repo:    repo,
		now:     time.Now,
	}
}

// Submit генерирует отчёт и сохраняет элемент очереди.
// Ошибки генерации возвращаются без изменений.
func (s *TriageService) Submit(ctx context.Context, scan entity.ScanUpload) (*entity.QueueItem, error) {
	finding, err := s.reports.GenerateReport(ctx, entity.ReportRequest{Image: scan.Image, Notes: scan.Notes})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	item := &entity.QueueItem{
		ID:           uuid.NewString(),
		FileName:     scan.FileName,
		FileSize:     int64(len(scan.Image)),
		FileType:     scan.FileType,
		Notes:        scan.Notes,
		Report:       finding.Report,
		UrgencyScore: finding.UrgencyScore,
		UrgencyLevel: entity.LevelForScore(finding.UrgencyScore),
		Status:       entity.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("save queue item: %w", err)
	}
	return item, nil
}

// List возвращает очередь в порядке срочности.
func (s *TriageService) List(ctx context.Context, limit int) ([]*entity.QueueItem, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.List(ctx, limit)
}

// SetStatus меняет статус элемента и возвращает его.
func (s *TriageService) SetStatus(ctx context.Context, id string, status entity.QueueStatus) (*entity.QueueItem, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}
