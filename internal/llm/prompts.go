package llm

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"leanpass/internal/extract"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Catalogue holds the generation settings and prompt templates per shape.
type Catalogue struct {
	Temperature   float32                 `yaml:"temperature"`
	TopP          float32                 `yaml:"top_p"`
	MaxInputChars int                     `yaml:"max_input_chars"`
	Prompts       map[string]PromptConfig `yaml:"prompts"`

	templates map[extract.Shape]*template.Template
}

type PromptConfig struct {
	MaxTokens int    `yaml:"max_tokens"`
	Template  string `yaml:"template"`
}

// ParseCatalogue decodes a prompt catalogue and compiles its templates.
// Both shapes must be present.
func ParseCatalogue(raw []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	c.templates = make(map[extract.Shape]*template.Template, 2)
	for _, shape := range []extract.Shape{extract.ShapeBasic, extract.ShapeExtended} {
		cfg, ok := c.Prompts[shape.String()]
		if !ok || strings.TrimSpace(cfg.Template) == "" {
			return nil, fmt.Errorf("prompt %q missing", shape)
		}
		if cfg.MaxTokens <= 0 {
			return nil, fmt.Errorf("prompt %q: max_tokens must be positive", shape)
		}
		tmpl, err := template.New(shape.String()).Option("missingkey=error").Parse(cfg.Template)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %q: %w", shape, err)
		}
		c.templates[shape] = tmpl
	}
	return &c, nil
}

// DefaultCatalogue returns the embedded catalogue.
func DefaultCatalogue() *Catalogue {
	c, err := ParseCatalogue(promptsYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Render fills the shape's template with the document text, collapsed and
// capped at MaxInputChars.
func (c *Catalogue) Render(shape extract.Shape, text string) (string, error) {
	tmpl, ok := c.templates[shape]
	if !ok {
		return "", fmt.Errorf("no prompt for shape %s", shape)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, struct{ Text string }{sanitizeForPrompt(text, c.MaxInputChars)}); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", shape, err)
	}
	return out.String(), nil
}

// MaxTokens is the completion budget for the shape.
func (c *Catalogue) MaxTokens(shape extract.Shape) int {
	return c.Prompts[shape.String()].MaxTokens
}

func sanitizeForPrompt(input string, limit int) string {
	lines := strings.Split(strings.TrimSpace(input), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	collapsed := strings.Join(kept, "\n")
	if limit <= 0 {
		return collapsed
	}
	runes := []rune(collapsed)
	if len(runes) <= limit {
		return collapsed
	}
	return string(runes[:limit])
}
