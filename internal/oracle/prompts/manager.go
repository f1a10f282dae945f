package prompts

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// Manager loads the embedded YAML prompt templates and renders them with
// simple placeholder substitution.
type Manager struct {
	prompts map[string]string
}

type promptTemplate struct {
	Prompt string `yaml:"prompt"`
}

func NewManager() (*Manager, error) {
	m := &Manager{prompts: make(map[string]string)}

	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read template file %s: %w", entry.Name(), err)
		}

		var tmpl promptTemplate
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return nil, fmt.Errorf("failed to parse template file %s: %w", entry.Name(), err)
		}

		m.prompts[strings.TrimSuffix(entry.Name(), ".yaml")] = tmpl.Prompt
	}

	return m, nil
}

// Build renders the named template. Placeholders use the {{.Key}} form;
// substitution is plain string replacement, no template compilation.
func (m *Manager) Build(mode string, data map[string]string) (string, error) {
	tmpl, ok := m.prompts[mode]
	if !ok {
		return "", fmt.Errorf("template not found for mode: %s", mode)
	}

	result := tmpl
	for key, value := range data {
		result = strings.ReplaceAll(result, "{{."+key+"}}", value)
	}
	return result, nil
}
