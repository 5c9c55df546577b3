// Package extraction разбирает свободный текст отчёта модели в структурированные сигналы.
// Все функции чистые: без состояния и без ошибок на любом входе.
package extraction

import (
	"regexp"
	"strings"

	"mammo-report/internal/domain/entity"
)

// BiradsExponent степень, в которую возводится каждая категория BI-RADS.
const BiradsExponent = 2

// densityPenalty штраф за плотность ткани по категории ACR.
var densityPenalty = map[string]int{"A": 1, "B": 2, "C": 3, "D": 4}

var (
	acrPattern     = regexp.MustCompile(`(?i)\bACR\s+([A-D])\b`)
	biradsPattern  = regexp.MustCompile(`(?i)\bBI-?RADS[:\s]+([\d\s,and]+)`)
	biradsCategory = regexp.MustCompile(`[0-6]`)
	findingsHeader = regexp.MustCompile(`(?im)^[ \t]*findings[ \t]*:`)
	sectionHeader  = regexp.MustCompile(`\n[A-Z][^\n]*:`)
)

// Result всё, что удалось извлечь из одного отчёта.
type Result struct {
	ACR      string
	Birads   []int
	Findings *string
}

// Extract разбирает текст и считает срочность.
func Extract(text string) entity.StructuredFinding {
	r := Parse(text)
	return entity.StructuredFinding{
		Report:       r.Findings,
		UrgencyScore: UrgencyScore(r.Birads, r.ACR),
	}
}

// Parse выполняет все три независимых разбора.
func Parse(text string) Result {
	return Result{
		ACR:      ACR(text),
		Birads:   Birads(text),
		Findings: Findings(text),
	}
}

// ACR возвращает категорию плотности A-D в верхнем регистре или "".
func ACR(text string) string {
	m := acrPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// Birads возвращает категории 0-6 в порядке появления, с повторами.
func Birads(text string) []int {
	m := biradsPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	digits := biradsCategory.FindAllString(m[1], -1)
	out := make([]int, 0, len(digits))
	for _, d := range digits {
		out = append(out, int(d[0]-'0'))
	}
	return out
}

// Findings возвращает раздел "Findings:" одним абзацем или nil.
func Findings(text string) *string {
	loc := findingsHeader.FindStringIndex(text)
	if loc == nil {
		return nil
	}

	section := text[loc[1]:]
	if end := sectionHeader.FindStringIndex(section); end != nil {
		section = section[:end[0]]
	}

	var lines []string
	for _, line := range strings.Split(section, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	paragraph := strings.Join(lines, " ")
	return &paragraph
}

// UrgencyScore считает сумму квадратов BI-RADS минус штраф плотности.
// Без категорий BI-RADS срочность не определена.
func UrgencyScore(birads []int, acr string) *int {
	if len(birads) == 0 {
		return nil
	}

	score := 0
	for _, b := range birads {
		score += pow(b, BiradsExponent)
	}
	score -= densityPenalty[acr]
	return &score
}

func pow(base, exp int) int {
	out := 1
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
