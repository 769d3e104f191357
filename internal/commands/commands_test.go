package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keystorm-debug/internal/integration/debug/adapters"
)

const testCatalog = `{
  "dap": [
    {
      "name": "debugpy",
      "type": "python",
      "run": {"command": "python3", "command_arguments": ["-m", "debugpy.adapter"]},
      "configurations": [{"name": "Launch file", "arguments": {"program": "${file}"}}],
      "languages": ["python"]
    },
    {
      "name": "lldb-dap",
      "type": "lldb",
      "run": {"command": "lldb-dap"},
      "configurations": [{"name": "Launch"}, {"name": "Attach", "command": "attach"}],
      "languages": ["c", "cpp"]
    }
  ]
}`

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(VersionInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-02"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ksdebug 1.2.3")
	assert.Contains(t, out, "Commit: abc123")
	assert.Contains(t, out, "Built: 2026-01-02")
}

func TestToolsBuiltin(t *testing.T) {
	out, err := executeCommand(t, "tools")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "delve")
	assert.Contains(t, out, "debugpy")
	assert.Contains(t, out, "js-debug")
}

func TestToolsFromCatalog(t *testing.T) {
	path := writeCatalog(t)

	out, err := executeCommand(t, "tools", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "debugpy")
	assert.Contains(t, out, "lldb-dap")
	assert.Contains(t, out, "c,cpp")
	assert.Contains(t, out, "Attach, Launch")
	assert.NotContains(t, out, "delve")

	out, err = executeCommand(t, "tools", "-c", path, "-l", "cpp")
	require.NoError(t, err)
	assert.Contains(t, out, "lldb-dap")
	assert.NotContains(t, out, "debugpy")

	out, err = executeCommand(t, "tools", "-c", path, "-l", "rust")
	require.NoError(t, err)
	assert.Contains(t, out, "no tools")
}

func TestToolsMissingCatalog(t *testing.T) {
	_, err := executeCommand(t, "tools", "--config", filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := executeCommand(t, "tools", "--log-level", "loud")
	assert.Error(t, err)
}

func TestLogLevelFromEnvironment(t *testing.T) {
	t.Setenv("KSDEBUG_LOG_LEVEL", "loud")
	_, err := executeCommand(t, "version")
	assert.Error(t, err)

	t.Setenv("KSDEBUG_LOG_LEVEL", "debug")
	_, err = executeCommand(t, "version")
	assert.NoError(t, err)
}

func TestSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("config: "+writeCatalog(t)+"\n"), 0o644))

	out, err := executeCommand(t, "tools", "--settings", path)
	require.NoError(t, err)
	assert.Contains(t, out, "lldb-dap")
}

func TestRunUnknownTool(t *testing.T) {
	_, err := executeCommand(t, "run", "--tool", "gdb")
	assert.ErrorIs(t, err, adapters.ErrUnknownTool)

	_, err = executeCommand(t, "run", "--file", "notes.txt")
	assert.ErrorIs(t, err, adapters.ErrUnknownTool)
}

func TestRunInvalidBreakpoint(t *testing.T) {
	_, err := executeCommand(t, "run", "--tool", "delve", "--break", "main.go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want path:line")
}

func TestRunIgnoresBrokenLaunchFile(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, ".vscode"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, ".vscode", "launch.json"), []byte(`{"configurations": `), 0o644))

	_, err := executeCommand(t, "run", "--tool", "delve", "--workspace", workspace, "--break", "main.go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want path:line")
}

func TestParseBreakpoint(t *testing.T) {
	path, line, err := parseBreakpoint("src/main.py:12", "/work")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work", "src", "main.py"), path)
	assert.Equal(t, 12, line)

	path, line, err = parseBreakpoint("/abs/a.go:3", "/work")
	require.NoError(t, err)
	assert.Equal(t, "/abs/a.go", path)
	assert.Equal(t, 3, line)

	for _, spec := range []string{"main.go", ":4", "main.go:0", "main.go:x"} {
		_, _, err := parseBreakpoint(spec, "/work")
		assert.Error(t, err, spec)
	}
}

func TestSelectTool(t *testing.T) {
	catalog := adapters.DefaultCatalog()

	tool, err := selectTool(catalog, "", "/src/app.py")
	require.NoError(t, err)
	assert.Equal(t, "debugpy", tool.Name)

	tool, err = selectTool(catalog, "", "/src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "delve", tool.Name)

	tool, err = selectTool(catalog, "js-debug", "/src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "js-debug", tool.Name)

	_, err = selectTool(catalog, "", "")
	assert.ErrorIs(t, err, adapters.ErrUnknownTool)
}
