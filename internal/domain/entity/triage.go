package entity

import "time"

// UrgencyLevel уровень срочности элемента очереди
type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "critical"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyLow      UrgencyLevel = "low"
)

// QueueStatus статус просмотра снимка врачом
type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusInProgress QueueStatus = "in-progress"
	StatusComplete   QueueStatus = "complete"
)

// Valid проверяет, что статус из известного набора.
func (s QueueStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusComplete:
		return true
	}
	return false
}

// LevelForScore переводит числовую срочность в уровень очереди.
func LevelForScore(score *int) UrgencyLevel {
	if score == nil {
		return UrgencyLow
	}
	switch s := *score; {
	case s >= 25:
		return UrgencyCritical
	case s >= 16:
		return UrgencyHigh
	case s >= 9:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// ScanUpload загруженный снимок с метаданными файла.
type ScanUpload struct {
	FileName string
	FileType string
	Notes    string
	Image    []byte
}

// QueueItem — снимок с отчётом в очереди на просмотр.
type QueueItem struct {
	ID           string       `json:"id"`
	FileName     string       `json:"file_name"`
	FileSize     int64        `json:"file_size_bytes"`
	FileType     string       `json:"file_type"`
	Notes        string       `json:"clinical_notes"`
	Report       *string      `json:"report"`
	UrgencyScore *int         `json:"urgency_score"`
	UrgencyLevel UrgencyLevel `json:"urgency_level"`
	Status       QueueStatus  `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
