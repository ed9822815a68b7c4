package feed

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fieldMapFile struct {
	Fields map[string][]string `yaml:"fields"`
}

// LoadFieldMap reads a YAML alias override and merges it over the default
// table. An empty path returns the defaults.
func LoadFieldMap(path string) (FieldMap, error) {
	defaults := DefaultFieldMap()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field map: %w", err)
	}

	override, err := ParseFieldMap(data)
	if err != nil {
		return nil, fmt.Errorf("invalid field map %s: %w", path, err)
	}

	slog.Debug("Field map loaded", "path", path, "overrides", len(override))

	return defaults.Merge(override), nil
}

// ParseFieldMap decodes and validates a YAML alias override.
func ParseFieldMap(data []byte) (FieldMap, error) {
	var file fieldMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	override := make(FieldMap, len(file.Fields))
	for name, keys := range file.Fields {
		attr := Attribute(strings.TrimSpace(name))
		if !knownAttribute(attr) {
			return nil, fmt.Errorf("unknown attribute: %s", name)
		}

		cleaned := make([]string, 0, len(keys))
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				cleaned = append(cleaned, k)
			}
		}
		if len(cleaned) == 0 {
			return nil, fmt.Errorf("attribute %s must list at least one source key", name)
		}
		override[attr] = cleaned
	}

	return override, nil
}
