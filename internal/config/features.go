package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed features.yaml
var defaultFeatures []byte

// Command is one user-facing command and its switch.
type Command struct {
	Key         string `yaml:"key"`
	Command     string `yaml:"command"`
	Description string `yaml:"description"`
	Enabled     bool   `yaml:"enabled"`
}

// Category groups commands in the help text.
type Category struct {
	Name     string    `yaml:"name"`
	Commands []Command `yaml:"commands"`
}

// Help holds the fixed parts of the help text.
type Help struct {
	Header         string `yaml:"header"`
	ExpenseExample string `yaml:"expense_example"`
	Footer         string `yaml:"footer"`
}

// Features is the set of command switches plus the help text built from them.
type Features struct {
	Help       Help       `yaml:"help"`
	Categories []Category `yaml:"categories"`

	enabled map[string]bool
}

// LoadFeatures reads the feature file at path, or the built-in one when path
// is empty.
func LoadFeatures(path string) (*Features, error) {
	raw := defaultFeatures
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read features: %w", err)
		}
		raw = b
	}
	return ParseFeatures(raw)
}

// ParseFeatures decodes a YAML feature document.
func ParseFeatures(raw []byte) (*Features, error) {
	var f Features
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: decode features: %w", err)
	}
	f.enabled = make(map[string]bool)
	for _, cat := range f.Categories {
		for _, cmd := range cat.Commands {
			if cmd.Key == "" {
				return nil, fmt.Errorf("config: command %q in %q has no key", cmd.Command, cat.Name)
			}
			if _, dup := f.enabled[cmd.Key]; dup {
				return nil, fmt.Errorf("config: duplicate feature key %q", cmd.Key)
			}
			f.enabled[cmd.Key] = cmd.Enabled
		}
	}
	if len(f.enabled) == 0 {
		return nil, errors.New("config: features define no commands")
	}
	return &f, nil
}

// IsEnabled reports whether the command with the given key is switched on.
// Unknown keys are off.
func (f *Features) IsEnabled(key string) bool {
	if f == nil {
		return false
	}
	return f.enabled[key]
}

// HelpMessage lists the enabled commands grouped by category.
func (f *Features) HelpMessage() string {
	var b strings.Builder
	b.WriteString(f.Help.Header)
	b.WriteString(f.Help.ExpenseExample)
	for _, cat := range f.Categories {
		var lines []string
		for _, cmd := range cat.Commands {
			if cmd.Enabled {
				lines = append(lines, fmt.Sprintf("• %s - %s", cmd.Command, cmd.Description))
			}
		}
		if len(lines) == 0 {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(cat.Name)
		b.WriteString("\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	b.WriteString(f.Help.Footer)
	return strings.TrimSpace(b.String())
}
