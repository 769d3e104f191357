package adapters

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a catalog file.
type Format int

const (
	FormatJSON Format = iota
	FormatTOML
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatOf picks the format from the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

type catalogFile struct {
	Dap []Tool `json:"dap"`
}

// LoadFile reads the tools listed in the catalog file at path.
func LoadFile(path string) ([]Tool, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	tools, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tools, nil
}

// Parse decodes a catalog. TOML and YAML documents are normalized to JSON
// first so configuration arguments stay raw JSON in every format.
func Parse(data []byte, format Format) ([]Tool, error) {
	switch format {
	case FormatJSON:
	case FormatTOML:
		var doc map[string]any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		normalized, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("normalize toml: %w", err)
		}
		data = normalized
	case FormatYAML:
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		normalized, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("normalize yaml: %w", err)
		}
		data = normalized
	default:
		return nil, ErrUnsupportedFormat
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	tools := make([]Tool, 0, len(file.Dap))
	for _, t := range file.Dap {
		if t.Name == "" {
			continue
		}
		configs := t.Configurations[:0]
		for _, c := range t.Configurations {
			if c.Name == "" {
				continue
			}
			if c.Command == "" {
				c.Command = "launch"
			}
			configs = append(configs, c)
		}
		t.Configurations = configs

		if len(t.Find) > 0 {
			find := make(map[string]string, len(t.Find))
			for platform, cmd := range t.Find {
				find[strings.ToLower(platform)] = cmd
			}
			t.Find = find
		}
		tools = append(tools, t)
	}
	return tools, nil
}
