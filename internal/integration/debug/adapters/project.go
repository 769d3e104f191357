package adapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// ProjectConfigFiles are the launch files looked up in a workspace, in the
// order they are read.
var ProjectConfigFiles = []string{
	filepath.Join(".vscode", "launch.json"),
	filepath.Join(".ecode", "launch.json"),
}

// ProjectConfiguration is a launch or attach configuration defined by a
// workspace instead of a tool. It applies to the tools of the same Type.
type ProjectConfiguration struct {
	Configuration

	// Type is the adapter type, e.g. "go" or "debugpy".
	Type string

	// Source is the file the configuration was read from.
	Source string
}

// LoadProjectConfigurations reads the launch files of workspace. Missing
// files are skipped. A file that cannot be parsed is reported in the error
// while the configurations of the other files are still returned.
func LoadProjectConfigurations(workspace string) ([]ProjectConfiguration, error) {
	var (
		out  []ProjectConfiguration
		errs []error
	)
	for _, name := range ProjectConfigFiles {
		path := filepath.Join(workspace, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read launch file: %w", err))
			continue
		}
		confs, err := ParseProjectConfigurations(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		for i := range confs {
			confs[i].Source = path
		}
		out = append(out, confs...)
	}
	return out, errors.Join(errs...)
}

// ParseProjectConfigurations decodes a launch file. Comments and trailing
// commas are accepted. Entries without a type or name, and requests other
// than launch or attach, are skipped. The whole entry becomes the request
// arguments.
func ParseProjectConfigurations(data []byte) ([]ProjectConfiguration, error) {
	data = pretty.Spec(data)
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidLaunchFile
	}
	list := gjson.GetBytes(data, "configurations")
	if !list.IsArray() {
		return nil, fmt.Errorf("configurations is not a list: %w", ErrInvalidLaunchFile)
	}

	var out []ProjectConfiguration
	list.ForEach(func(_, entry gjson.Result) bool {
		if !entry.IsObject() {
			return true
		}
		typ := entry.Get("type").String()
		name := entry.Get("name").String()
		request := entry.Get("request").String()
		if typ == "" || name == "" || (request != "launch" && request != "attach") {
			return true
		}
		out = append(out, ProjectConfiguration{
			Configuration: Configuration{
				Name:      name,
				Command:   request,
				Arguments: json.RawMessage(pretty.Ugly([]byte(entry.Raw))),
			},
			Type: typ,
		})
		return true
	})
	return out, nil
}

// MergeProjectConfigurations returns tools with each project configuration
// appended to the tools whose Type matches it. A tool keeps its own
// configuration when a project one has the same name. Configurations for
// types no tool has are dropped.
func MergeProjectConfigurations(tools []Tool, confs []ProjectConfiguration) []Tool {
	out := make([]Tool, len(tools))
	for i, t := range tools {
		t.Configurations = slices.Clone(t.Configurations)
		for _, pc := range confs {
			if t.Type == "" || pc.Type != t.Type {
				continue
			}
			if _, exists := t.Configuration(pc.Name); exists {
				continue
			}
			t.Configurations = append(t.Configurations, pc.Configuration)
		}
		out[i] = t
	}
	return out
}
