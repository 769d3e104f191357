package adapters

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Variables are the values substituted into configuration arguments.
//
// A string that is exactly "${args}", "${env}", "${stopOnEntry}" or
// "${port}" is replaced by a JSON value of the matching type. Inside other
// strings "${file}", "${cwd}", "${fileDirname}", "${workspaceFolder}" and
// "${port}" are replaced textually.
type Variables struct {
	File            string
	Args            []string
	Cwd             string
	Env             map[string]string
	StopOnEntry     bool
	WorkspaceFolder string
	Port            int
}

// ExpandString performs the textual replacements on s.
func (v Variables) ExpandString(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	dir := ""
	if v.File != "" {
		dir = filepath.Dir(v.File)
	}
	port := ""
	if v.Port > 0 {
		port = strconv.Itoa(v.Port)
	}
	return strings.NewReplacer(
		"${file}", v.File,
		"${cwd}", v.Cwd,
		"${fileDirname}", dir,
		"${workspaceFolder}", v.WorkspaceFolder,
		"${port}", port,
	).Replace(s)
}

// value returns the raw JSON replacing s, or false to keep s.
func (v Variables) value(s string) ([]byte, bool, error) {
	var x any
	switch s {
	case "${args}":
		args := v.Args
		if args == nil {
			args = []string{}
		}
		x = args
	case "${env}":
		env := v.Env
		if env == nil {
			env = map[string]string{}
		}
		x = env
	case "${stopOnEntry}":
		x = v.StopOnEntry
	case "${port}":
		x = v.Port
	default:
		expanded := v.ExpandString(s)
		if expanded == s {
			return nil, false, nil
		}
		x = expanded
	}
	raw, err := json.Marshal(x)
	return raw, err == nil, err
}

type edit struct {
	path string
	raw  []byte
}

// Expand substitutes the variables into every string of args, which must
// be a JSON object. Empty args expand to {}.
func (v Variables) Expand(args json.RawMessage) (json.RawMessage, error) {
	if len(strings.TrimSpace(string(args))) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !gjson.ValidBytes(args) {
		return nil, fmt.Errorf("configuration arguments are not valid JSON")
	}
	root := gjson.ParseBytes(args)
	if !root.IsObject() {
		return nil, fmt.Errorf("configuration arguments must be an object")
	}

	var edits []edit
	if err := v.collect(root, "", &edits); err != nil {
		return nil, err
	}

	out := []byte(args)
	for _, e := range edits {
		var err error
		out, err = sjson.SetRawBytes(out, e.path, e.raw)
		if err != nil {
			return nil, fmt.Errorf("substitute %s: %w", e.path, err)
		}
	}
	return out, nil
}

func (v Variables) collect(r gjson.Result, path string, edits *[]edit) error {
	var err error
	switch {
	case r.IsObject():
		r.ForEach(func(key, val gjson.Result) bool {
			err = v.collect(val, joinPath(path, escapeKey(key.String())), edits)
			return err == nil
		})
	case r.IsArray():
		i := 0
		r.ForEach(func(_, val gjson.Result) bool {
			err = v.collect(val, joinPath(path, strconv.Itoa(i)), edits)
			i++
			return err == nil
		})
	case r.Type == gjson.String:
		raw, ok, verr := v.value(r.String())
		if verr != nil {
			return verr
		}
		if ok {
			*edits = append(*edits, edit{path: path, raw: raw})
		}
	}
	return err
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`:`, `\:`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

// escapeKey makes an object key safe for use in a gjson/sjson path.
func escapeKey(key string) string {
	return pathEscaper.Replace(key)
}
