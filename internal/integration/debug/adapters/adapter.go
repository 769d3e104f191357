// Package adapters describes debug adapter tools and starts them.
//
// A tool is an external program speaking the Debug Adapter Protocol, such as
// dlv, debugpy or js-debug. Tools are listed in a catalog file under the
// top-level key "dap":
//
//	{
//	  "dap": [{
//	    "name": "debugpy",
//	    "type": "python",
//	    "run": {"command": "python3", "command_arguments": ["-m", "debugpy.adapter"]},
//	    "configurations": [{
//	      "name": "Launch file",
//	      "command": "launch",
//	      "arguments": {"program": "${file}", "args": "${args}", "cwd": "${cwd}"}
//	    }],
//	    "languages": ["python"],
//	    "find": {"linux": "which ${command}"}
//	  }]
//	}
//
// The same layout may be written as TOML or YAML.
package adapters

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Args is a list of command arguments. It also decodes from a single string.
type Args []string

// UnmarshalJSON accepts a string or an array; non-string elements are skipped.
func (a *Args) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Args{s}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Args, 0, len(raw))
	for _, r := range raw {
		var s string
		if json.Unmarshal(r, &s) == nil {
			out = append(out, s)
		}
	}
	*a = out
	return nil
}

// RunSpec says how to start the adapter process.
type RunSpec struct {
	Command   string `json:"command"`
	Arguments Args   `json:"command_arguments,omitempty"`

	// Fallback is tried when Command cannot be found.
	Fallback string `json:"command_fallback,omitempty"`

	// Listen makes the adapter a TCP server at this address, e.g.
	// "127.0.0.1:${port}". Empty means stdio.
	Listen string `json:"listen,omitempty"`
}

// Configuration is one named launch or attach request of a tool.
type Configuration struct {
	Name string `json:"name"`

	// Command is "launch" or "attach".
	Command string `json:"command"`

	// Arguments is the request body, before variable substitution.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Tool describes one debug adapter.
type Tool struct {
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	URL            string          `json:"url,omitempty"`
	Run            RunSpec         `json:"run"`
	Configurations []Configuration `json:"configurations,omitempty"`
	Languages      []string        `json:"languages,omitempty"`

	// Find maps a platform name to a shell command printing the adapter's
	// path. "${command}" is replaced by the command searched for.
	Find map[string]string `json:"find,omitempty"`
}

// Configuration returns the configuration called name. An empty name
// selects the first one.
func (t Tool) Configuration(name string) (Configuration, bool) {
	if name == "" && len(t.Configurations) > 0 {
		return t.Configurations[0], true
	}
	for _, c := range t.Configurations {
		if c.Name == name {
			return c, true
		}
	}
	return Configuration{}, false
}

// ConfigurationNames returns the configuration names, sorted.
func (t Tool) ConfigurationNames() []string {
	names := make([]string, 0, len(t.Configurations))
	for _, c := range t.Configurations {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// SupportsLanguage reports whether the tool debugs lang.
func (t Tool) SupportsLanguage(lang string) bool {
	return slices.Contains(t.Languages, lang)
}

// FindCommand returns the find command for platform, or "".
func (t Tool) FindCommand(platform string) string {
	return t.Find[strings.ToLower(platform)]
}

// AdapterID is the adapter id sent in initialize.
func (t Tool) AdapterID() string {
	if t.Type != "" {
		return t.Type
	}
	return t.Name
}

// Catalog is the set of known tools. It is safe for concurrent use and can
// be replaced wholesale when its file changes.
type Catalog struct {
	mu    sync.RWMutex
	tools []Tool
}

// NewCatalog returns a catalog holding tools.
func NewCatalog(tools ...Tool) *Catalog {
	return &Catalog{tools: slices.Clone(tools)}
}

// Replace swaps the catalog contents.
func (c *Catalog) Replace(tools []Tool) {
	c.mu.Lock()
	c.tools = slices.Clone(tools)
	c.mu.Unlock()
}

// Tools returns every tool in catalog order.
func (c *Catalog) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.tools)
}

// Tool returns the tool called name.
func (c *Catalog) Tool(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// ToolsForLanguage returns the tools that debug lang.
func (c *Catalog) ToolsForLanguage(lang string) []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Tool
	for _, t := range c.tools {
		if t.SupportsLanguage(lang) {
			out = append(out, t)
		}
	}
	return out
}

// SupportsLanguage reports whether any tool debugs lang.
func (c *Catalog) SupportsLanguage(lang string) bool {
	return len(c.ToolsForLanguage(lang)) > 0
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}

// DetectLanguage guesses the language id of filename from its extension.
// It returns "" when unknown.
func DetectLanguage(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".go":
		return "go"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".py":
		return "python"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".cxx", ".hpp":
		return "cpp"
	case ".rs":
		return "rust"
	default:
		return ""
	}
}
