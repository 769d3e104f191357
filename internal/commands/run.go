package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/keystorm-debug/internal/integration/debug"
	"github.com/dshills/keystorm-debug/internal/integration/debug/adapters"
	"github.com/dshills/keystorm-debug/internal/integration/debug/dap"
)

// disconnectGrace is how long an interrupted run waits for the adapter to
// confirm the disconnect.
const disconnectGrace = 2 * time.Second

func newRunCommand(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [-- program arguments]",
		Short: "Run a program under a debug adapter",
		Long: `Run starts the selected tool, launches the program and prints the
location, call stack and variables every time it stops. With --auto-continue
(the default) execution resumes after each report until the program exits.`,
		Example: `  ksdebug run -f main.py -b main.py:12
  ksdebug run -t delve -f ./cmd/app/main.go --configuration "Test package"
  ksdebug run -f app.py --local-root . --remote-root /srv/app -- --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			breaks, err := cmd.Flags().GetStringArray("break")
			if err != nil {
				return err
			}
			watches, err := cmd.Flags().GetStringArray("watch")
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), cmd.OutOrStdout(), s, runRequest{
				programArgs: args,
				breaks:      breaks,
				watches:     watches,
			})
		},
	}

	f := cmd.Flags()
	f.StringP("tool", "t", "", "tool name (default: first tool for the file's language)")
	f.String("configuration", "", "tool configuration (default: the tool's first)")
	f.StringP("file", "f", "", "program or source file, substituted for ${file}")
	f.String("cwd", "", "working directory, substituted for ${cwd} (default: current directory)")
	f.String("workspace", "", "project folder holding .vscode/launch.json or .ecode/launch.json (default: --cwd)")
	f.StringArrayP("break", "b", nil, "breakpoint as path:line (repeatable)")
	f.StringArray("watch", nil, "watch expression evaluated at every stop (repeatable)")
	f.String("local-root", "", "local source root for remote debugging")
	f.String("remote-root", "", "source root as seen by the debuggee")
	f.String("breakpoints", "", "file persisting breakpoints between runs")
	f.Bool("auto-continue", true, "resume automatically after each stop")
	f.Bool("stop-on-entry", false, "stop at the program entry point")
	f.Int("stack-levels", 20, "frames fetched per stop (0 fetches all)")
	f.Duration("dial-timeout", 10*time.Second, "how long to wait for a socket adapter")
	return cmd
}

type runRequest struct {
	programArgs []string
	breaks      []string
	watches     []string
}

func runSession(ctx context.Context, out io.Writer, s *settings, req runRequest) error {
	log, err := s.logger()
	if err != nil {
		return err
	}
	defer log.Flush()

	catalog, _, err := s.catalog()
	if err != nil {
		return err
	}

	cwd := s.String("cwd")
	if cwd == "" {
		if cwd, err = os.Getwd(); err != nil {
			return err
		}
	}
	file := s.String("file")
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(cwd, file)
	}
	workspace := s.String("workspace")
	if workspace == "" {
		workspace = cwd
	}

	confs, err := adapters.LoadProjectConfigurations(workspace)
	if err != nil {
		log.Error(err, "Ignoring launch file", "workspace", workspace)
	}
	if len(confs) > 0 {
		catalog.Replace(adapters.MergeProjectConfigurations(catalog.Tools(), confs))
		log.V(1).Info("Loaded project configurations", "count", len(confs))
	}

	tool, err := selectTool(catalog, s.String("tool"), file)
	if err != nil {
		return err
	}

	registry := debug.NewRegistry()
	if path := s.String("breakpoints"); path != "" {
		registry.SetPersistPath(path)
		if err := registry.Load(); err != nil {
			return err
		}
	}
	for _, spec := range req.breaks {
		path, line, err := parseBreakpoint(spec, cwd)
		if err != nil {
			return err
		}
		registry.Add(path, dap.NewSourceBreakpoint(line))
	}

	launched, err := adapters.Start(ctx, tool, adapters.LaunchOptions{
		Configuration: s.String("configuration"),
		Variables: adapters.Variables{
			File:            file,
			Args:            req.programArgs,
			Cwd:             cwd,
			StopOnEntry:     s.Bool("stop-on-entry"),
			WorkspaceFolder: workspace,
		},
		Dial:   dap.DialConfig{Timeout: s.v.GetDuration("dial-timeout")},
		Stderr: os.Stderr,
		Log:    log.WithName("adapter"),
	})
	if err != nil {
		return err
	}

	client := dap.NewClient(launched.Transport, launched.Client)
	defer client.Close()

	rep := &reporter{out: out, autoContinue: s.Bool("auto-continue")}
	session := debug.NewSessionListener(client, debug.SessionConfig{
		Registry:    registry,
		PathMap:     debug.PathMap{LocalRoot: s.String("local-root"), RemoteRoot: s.String("remote-root")},
		Output:      rep,
		StackLevels: s.Int("stack-levels"),
		Log:         log.WithName("session"),
	})
	defer session.Close()
	rep.session = session

	for _, expr := range req.watches {
		session.AddWatch(expr)
	}
	session.OnPositionReady(rep.stopped)

	if !client.Start() {
		return fmt.Errorf("could not start %s session", tool.Name)
	}

	select {
	case <-session.Ended():
	case <-ctx.Done():
		log.Info("Interrupted, disconnecting")
		client.Disconnect(true, false)
		select {
		case <-session.Ended():
		case <-time.After(disconnectGrace):
		}
	}

	if code, ok := session.ExitCode(); ok {
		rep.printf("Program exited with code %d\n", code)
	}
	if s.String("breakpoints") != "" {
		if err := registry.Save(); err != nil {
			return err
		}
	}
	return nil
}

func selectTool(catalog *adapters.Catalog, name, file string) (adapters.Tool, error) {
	if name != "" {
		tool, ok := catalog.Tool(name)
		if !ok {
			return adapters.Tool{}, fmt.Errorf("%s: %w", name, adapters.ErrUnknownTool)
		}
		return tool, nil
	}
	lang := adapters.DetectLanguage(file)
	tools := catalog.ToolsForLanguage(lang)
	if lang == "" || len(tools) == 0 {
		return adapters.Tool{}, fmt.Errorf("no tool for %q, pass --tool: %w", file, adapters.ErrUnknownTool)
	}
	return tools[0], nil
}

// parseBreakpoint splits "path:line". Relative paths are resolved against cwd.
func parseBreakpoint(spec, cwd string) (string, int, error) {
	i := strings.LastIndex(spec, ":")
	if i <= 0 {
		return "", 0, fmt.Errorf("breakpoint %q: want path:line", spec)
	}
	line, err := strconv.Atoi(spec[i+1:])
	if err != nil || line <= 0 {
		return "", 0, fmt.Errorf("breakpoint %q: invalid line", spec)
	}
	path := spec[:i]
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	return filepath.Clean(path), line, nil
}

// reporter prints stops and debuggee output.
type reporter struct {
	mu           sync.Mutex
	out          io.Writer
	autoContinue bool
	session      *debug.SessionListener
}

func (r *reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// Write prints debuggee output.
func (r *reporter) Write(output dap.Output) {
	if output.Category == "telemetry" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	io.WriteString(r.out, output.Output)
}

func (r *reporter) stopped(pos debug.Position) {
	r.mu.Lock()
	reason := pos.Reason
	if reason == "" {
		reason = "stopped"
	}
	fmt.Fprintf(r.out, "\nStopped (%s) in thread %d at %s:%d\n", reason, pos.ThreadID, pos.Path, pos.Line)
	fmt.Fprint(r.out, debug.FormatStack(r.session.StackModel()))
	if vars := debug.FormatVariables(r.session.VariablesHolder()); vars != "" {
		fmt.Fprintf(r.out, "Variables:\n%s", vars)
	}
	if watches := debug.FormatVariables(r.session.WatchList().Holder()); watches != "" {
		fmt.Fprintf(r.out, "Watches:\n%s", watches)
	}
	r.mu.Unlock()

	if r.autoContinue {
		r.session.Resume()
	}
}
