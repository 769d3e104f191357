package adapters

import "encoding/json"

func arguments(v map[string]any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

// Delve is the Go debugger. dlv only speaks DAP as a TCP server.
func Delve() Tool {
	return Tool{
		Name: "delve",
		Type: "go",
		URL:  "https://github.com/go-delve/delve",
		Run: RunSpec{
			Command:   "dlv",
			Arguments: Args{"dap", "--listen", "127.0.0.1:${port}"},
			Listen:    "127.0.0.1:${port}",
		},
		Configurations: []Configuration{
			{
				Name:    "Launch package",
				Command: "launch",
				Arguments: arguments(map[string]any{
					"mode":            "debug",
					"program":         "${fileDirname}",
					"args":            "${args}",
					"cwd":             "${cwd}",
					"env":             "${env}",
					"stopOnEntry":     "${stopOnEntry}",
					"stackTraceDepth": 50,
				}),
			},
			{
				Name:    "Test package",
				Command: "launch",
				Arguments: arguments(map[string]any{
					"mode":            "test",
					"program":         "${fileDirname}",
					"args":            "${args}",
					"cwd":             "${cwd}",
					"stackTraceDepth": 50,
				}),
			},
			{
				Name:    "Launch binary",
				Command: "launch",
				Arguments: arguments(map[string]any{
					"mode":    "exec",
					"program": "${file}",
					"args":    "${args}",
					"cwd":     "${cwd}",
				}),
			},
		},
		Languages: []string{"go"},
		Find: map[string]string{
			"linux":  `printf '%s/bin/${command}' "$(go env GOPATH)"`,
			"macos":  `printf '%s/bin/${command}' "$(go env GOPATH)"`,
			"darwin": `printf '%s/bin/${command}' "$(go env GOPATH)"`,
		},
	}
}

// Debugpy is the Python debugger, run as a module of the interpreter.
func Debugpy() Tool {
	return Tool{
		Name: "debugpy",
		Type: "python",
		URL:  "https://github.com/microsoft/debugpy",
		Run: RunSpec{
			Command:   "python3",
			Arguments: Args{"-m", "debugpy.adapter"},
			Fallback:  "python",
		},
		Configurations: []Configuration{
			{
				Name:    "Launch file",
				Command: "launch",
				Arguments: arguments(map[string]any{
					"program":     "${file}",
					"args":        "${args}",
					"cwd":         "${cwd}",
					"env":         "${env}",
					"stopOnEntry": "${stopOnEntry}",
					"console":     "internalConsole",
					"justMyCode":  true,
				}),
			},
			{
				Name:    "Attach",
				Command: "attach",
				Arguments: arguments(map[string]any{
					"connect":    map[string]any{"host": "127.0.0.1", "port": 5678},
					"justMyCode": true,
				}),
			},
		},
		Languages: []string{"python"},
	}
}

// NodeJS is vscode-js-debug's standalone DAP server.
func NodeJS() Tool {
	return Tool{
		Name: "js-debug",
		Type: "pwa-node",
		URL:  "https://github.com/microsoft/vscode-js-debug",
		Run: RunSpec{
			Command:   "js-debug-adapter",
			Arguments: Args{"${port}", "127.0.0.1"},
			Listen:    "127.0.0.1:${port}",
		},
		Configurations: []Configuration{
			{
				Name:    "Launch file",
				Command: "launch",
				Arguments: arguments(map[string]any{
					"type":        "pwa-node",
					"program":     "${file}",
					"args":        "${args}",
					"cwd":         "${cwd}",
					"env":         "${env}",
					"stopOnEntry": "${stopOnEntry}",
					"skipFiles":   []string{"<node_internals>/**"},
				}),
			},
		},
		Languages: []string{"javascript", "typescript"},
	}
}

// DefaultCatalog holds the built-in tools, used when no catalog file is given.
func DefaultCatalog() *Catalog {
	return NewCatalog(Delve(), Debugpy(), NodeJS())
}
