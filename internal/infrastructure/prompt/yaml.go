package prompt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mammo-report/internal/domain/entity"
	"mammo-report/internal/domain/port"
)

// YAMLSource читает шаблоны промптов из YAML-файла.
// Файл перечитывается при каждом запросе, правки подхватываются без рестарта.
type YAMLSource struct {
	path string
}

func NewYAMLSource(path string) *YAMLSource {
	return &YAMLSource{path: path}
}

// Template возвращает шаблон по ключу верхнего уровня.
func (s *YAMLSource) Template(name string) (entity.PromptTemplate, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return entity.PromptTemplate{}, fmt.Errorf("read prompts: %w", err)
	}

	var templates map[string]entity.PromptTemplate
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return entity.PromptTemplate{}, fmt.Errorf("parse prompts %s: %w", s.path, err)
	}

	tmpl, ok := templates[name]
	if !ok {
		return entity.PromptTemplate{}, fmt.Errorf("prompt %q not found in %s", name, s.path)
	}
	if tmpl.System == "" || tmpl.UserInstruction == "" {
		return entity.PromptTemplate{}, fmt.Errorf("prompt %q must define system and user_instruction", name)
	}
	return tmpl, nil
}

var _ port.PromptSource = (*YAMLSource)(nil)
