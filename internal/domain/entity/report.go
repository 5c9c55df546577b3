package entity

// ReportRequest содержит снимок и необязательные заметки врача для одной генерации отчёта.
type ReportRequest struct {
	Image []byte
	Notes string
}

// StructuredFinding итог разбора текста модели.
// Nil-поля означают, что соответствующий сигнал в тексте не найден.
type StructuredFinding struct {
	Report       *string `json:"report"`
	UrgencyScore *int    `json:"urgency_score"`
}

// HasScore сообщает, удалось ли вычислить срочность.
func (f StructuredFinding) HasScore() bool {
	return f.UrgencyScore != nil
}
