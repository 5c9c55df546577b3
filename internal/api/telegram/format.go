package telegram

import (
	"fmt"
	"strings"

	"mammo-report/internal/domain/entity"
)

var levelLabels = map[entity.UrgencyLevel]string{
	entity.UrgencyCritical: "🔴 критическая",
	entity.UrgencyHigh:     "🟠 высокая",
	entity.UrgencyMedium:   "🟡 средняя",
	entity.UrgencyLow:      "🟢 низкая",
}

// FormatQueueItem текст ответа пользователю по готовому отчёту.
func FormatQueueItem(item *entity.QueueItem) string {
	var b strings.Builder
	b.WriteString("📋 Отчёт готов\n\n")

	label, ok := levelLabels[item.UrgencyLevel]
	if !ok {
		label = string(item.UrgencyLevel)
	}
	if item.UrgencyScore != nil {
		fmt.Fprintf(&b, "Срочность: %s (%d)\n", label, *item.UrgencyScore)
	} else {
		fmt.Fprintf(&b, "Срочность: %s (BI-RADS не найден)\n", label)
	}

	if item.Report != nil {
		fmt.Fprintf(&b, "Находки: %s\n", *item.Report)
	} else {
		b.WriteString("Находки: раздел не найден в отчёте модели\n")
	}

	fmt.Fprintf(&b, "\nID в очереди: %s", item.ID)
	return b.String()
}
