package adapters

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// findTimeout bounds one run of a tool's find command.
const findTimeout = 5 * time.Second

// Platform returns the name used as key in a tool's find map.
func Platform() string {
	if runtime.GOOS == "darwin" {
		return "macos"
	}
	return runtime.GOOS
}

// Resolver locates adapter binaries. The zero value searches PATH and runs
// find commands through the system shell.
type Resolver struct {
	// Platform selects the find command. Defaults to Platform().
	Platform string

	LookPath func(file string) (string, error)

	// RunFind runs a find command line and returns its output.
	RunFind func(ctx context.Context, commandLine string) (string, error)

	Log logr.Logger
}

// Resolve returns the executable to start for tool: its command when found
// on PATH or on disk, else what the platform's find command reports for the
// command and then for the fallback, else the fallback itself.
func (r Resolver) Resolve(ctx context.Context, tool Tool) (string, error) {
	log := r.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	command := tool.Run.Command
	fallback := tool.Run.Fallback

	if path, ok := r.available(command); ok {
		return path, nil
	}

	platform := r.Platform
	if platform == "" {
		platform = Platform()
	}
	if find := tool.FindCommand(platform); find != "" {
		for _, name := range []string{command, fallback} {
			if name == "" {
				continue
			}
			line := strings.ReplaceAll(find, "${command}", name)
			path, err := r.runFind(ctx, line)
			if err != nil {
				log.V(1).Info("Find command failed", "tool", tool.Name, "command", line, "error", err.Error())
				continue
			}
			if path != "" {
				log.V(1).Info("Found adapter binary", "tool", tool.Name, "path", path)
				return path, nil
			}
		}
	}

	if fallback != "" {
		if path, ok := r.available(fallback); ok {
			return path, nil
		}
	}

	return "", fmt.Errorf("%s: %w", command, ErrBinaryNotFound)
}

func (r Resolver) available(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return name, true
	}
	lookPath := r.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}

func (r Resolver) runFind(ctx context.Context, line string) (string, error) {
	run := r.RunFind
	if run == nil {
		run = shellOutput
	}
	out, err := run(ctx, line)
	if err != nil {
		return "", err
	}
	return firstLine(out), nil
}

func shellOutput(ctx context.Context, line string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, findTimeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", line)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", line)
	}
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func firstLine(s string) string {
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line
		}
	}
	return ""
}
