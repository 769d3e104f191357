package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogJSON = `{
  "dap": [
    {
      "name": "debugpy",
      "type": "python",
      "url": "https://github.com/microsoft/debugpy",
      "run": {
        "command": "python3",
        "command_arguments": ["-m", "debugpy.adapter"],
        "command_fallback": "python"
      },
      "configurations": [
        {"name": "Launch file", "arguments": {"program": "${file}", "args": "${args}"}},
        {"name": "Attach", "command": "attach", "arguments": {"connect": {"port": 5678}}},
        {"command": "launch"}
      ],
      "languages": ["python"],
      "find": {"Linux": "which ${command}"}
    },
    {"type": "nameless"}
  ]
}`

const catalogTOML = `
[[dap]]
name = "debugpy"
type = "python"
languages = ["python"]

[dap.run]
command = "python3"
command_arguments = "-m"
command_fallback = "python"

[[dap.configurations]]
name = "Launch file"

[dap.configurations.arguments]
program = "${file}"
args = "${args}"

[[dap.configurations]]
name = "Attach"
command = "attach"

[dap.configurations.arguments.connect]
port = 5678
`

const catalogYAML = `
dap:
  - name: debugpy
    type: python
    languages: [python]
    run:
      command: python3
      command_arguments: ["-m", "debugpy.adapter"]
      command_fallback: python
    configurations:
      - name: Launch file
        arguments:
          program: ${file}
          args: ${args}
      - name: Attach
        command: attach
        arguments:
          connect:
            port: 5678
`

func checkDebugpy(t *testing.T, tools []Tool) {
	t.Helper()
	require.Len(t, tools, 1)
	tool := tools[0]
	assert.Equal(t, "debugpy", tool.Name)
	assert.Equal(t, "python", tool.Type)
	assert.Equal(t, "python3", tool.Run.Command)
	assert.Equal(t, "python", tool.Run.Fallback)
	assert.Equal(t, []string{"python"}, tool.Languages)

	require.Len(t, tool.Configurations, 2)
	launch := tool.Configurations[0]
	assert.Equal(t, "Launch file", launch.Name)
	assert.Equal(t, "launch", launch.Command, "command defaults to launch")
	assert.JSONEq(t, `{"program": "${file}", "args": "${args}"}`, string(launch.Arguments))

	attach := tool.Configurations[1]
	assert.Equal(t, "attach", attach.Command)
	assert.JSONEq(t, `{"connect": {"port": 5678}}`, string(attach.Arguments))
}

func TestParseJSON(t *testing.T) {
	tools, err := Parse([]byte(catalogJSON), FormatJSON)
	require.NoError(t, err)
	checkDebugpy(t, tools)
	assert.Equal(t, Args{"-m", "debugpy.adapter"}, tools[0].Run.Arguments)
	assert.Equal(t, "which ${command}", tools[0].FindCommand("linux"))
	assert.Equal(t, "which ${command}", tools[0].FindCommand("LINUX"))
}

func TestParseTOML(t *testing.T) {
	tools, err := Parse([]byte(catalogTOML), FormatTOML)
	require.NoError(t, err)
	checkDebugpy(t, tools)
	assert.Equal(t, Args{"-m"}, tools[0].Run.Arguments)
}

func TestParseYAML(t *testing.T) {
	tools, err := Parse([]byte(catalogYAML), FormatYAML)
	require.NoError(t, err)
	checkDebugpy(t, tools)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"dap": [`), FormatJSON)
	assert.Error(t, err)
	_, err = Parse([]byte(`dap = [`), FormatTOML)
	assert.Error(t, err)
	_, err = Parse([]byte("dap: [\n  - : :"), FormatYAML)
	assert.Error(t, err)
	_, err = Parse(nil, Format(42))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	tools, err := Parse([]byte(`{}`), FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"tools.json": catalogJSON,
		"tools.toml": catalogTOML,
		"tools.yml":  catalogYAML,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		tools, err := LoadFile(path)
		require.NoError(t, err, name)
		checkDebugpy(t, tools)
	}

	_, err := LoadFile(filepath.Join(dir, "tools.ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("/etc/ksdebug/Tools.YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	assert.Equal(t, "yaml", f.String())
}
