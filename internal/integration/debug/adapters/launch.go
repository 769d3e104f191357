package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/go-logr/logr"

	"github.com/dshills/keystorm-debug/internal/integration/debug/dap"
)

// LaunchOptions configures Start.
type LaunchOptions struct {
	// Configuration names the tool configuration; "" picks the first.
	Configuration string

	Variables Variables
	Resolver  Resolver

	// Dial is used for tools that listen on a socket.
	Dial dap.DialConfig

	// Stderr receives the adapter's standard error. Nil discards it.
	Stderr io.Writer

	// ClientName is reported to the adapter in initialize.
	ClientName string

	Log logr.Logger
}

// Launched is a running adapter and what is needed to drive it.
type Launched struct {
	Tool          Tool
	Configuration Configuration
	Transport     dap.Transport

	// Process is the adapter process for tools that listen on a socket. For
	// stdio tools the transport owns the process and Process is nil.
	Process *Process

	// Client is ready to pass to dap.NewClient.
	Client dap.Config
}

// Start resolves the binary of tool, starts it and connects a transport.
func Start(ctx context.Context, tool Tool, opts LaunchOptions) (*Launched, error) {
	log := opts.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	cfg, ok := tool.Configuration(opts.Configuration)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", tool.Name, opts.Configuration, ErrUnknownConfiguration)
	}

	vars := opts.Variables
	if tool.Run.Listen != "" && vars.Port == 0 {
		port, err := freePort()
		if err != nil {
			return nil, fmt.Errorf("pick adapter port: %w", err)
		}
		vars.Port = port
	}

	args, err := vars.Expand(cfg.Arguments)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", tool.Name, cfg.Name, err)
	}

	resolver := opts.Resolver
	if resolver.Log.GetSink() == nil {
		resolver.Log = log
	}
	bin, err := resolver.Resolve(ctx, tool)
	if err != nil {
		return nil, err
	}

	cmdArgs := make([]string, len(tool.Run.Arguments))
	for i, a := range tool.Run.Arguments {
		cmdArgs[i] = vars.ExpandString(a)
	}
	// Not bound to ctx: the session disconnects before the adapter is stopped.
	cmd := exec.Command(bin, cmdArgs...)
	if vars.Cwd != "" {
		cmd.Dir = vars.Cwd
	}
	cmd.Env = os.Environ()
	for k, v := range vars.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = opts.Stderr

	var (
		transport dap.Transport
		proc      *Process
	)
	if tool.Run.Listen == "" {
		transport, err = dap.NewStdioTransport(cmd)
		if err != nil {
			return nil, fmt.Errorf("start %s: %w", tool.Name, err)
		}
	} else {
		pt, err := dialProcess(ctx, tool.Name, cmd, vars.ExpandString(tool.Run.Listen), opts.Dial, log)
		if err != nil {
			return nil, err
		}
		transport, proc = pt, pt.proc
	}
	log.Info("Started debug adapter", "tool", tool.Name, "binary", bin, "configuration", cfg.Name)

	clientName := opts.ClientName
	if clientName == "" {
		clientName = "ksdebug"
	}
	return &Launched{
		Tool:          tool,
		Configuration: cfg,
		Transport:     transport,
		Process:       proc,
		Client: dap.Config{
			AdapterID:  tool.AdapterID(),
			ClientID:   clientName,
			ClientName: clientName,
			Locale:     "en-US",
			Request:    cfg.Command,
			Arguments:  json.RawMessage(args),
			Log:        log,
		},
	}, nil
}

// stopGrace is how long an adapter gets to exit after SIGTERM.
const stopGrace = 2 * time.Second

// processTransport owns the adapter process behind a socket transport.
type processTransport struct {
	dap.Transport
	proc *Process
}

func (t *processTransport) Close() error {
	err := t.Transport.Close()
	t.proc.Stop(stopGrace)
	return err
}

// dialProcess starts an adapter that listens on address and connects to it.
// Dialing gives up early if the process exits first.
func dialProcess(ctx context.Context, name string, cmd *exec.Cmd, address string, dial dap.DialConfig, log logr.Logger) (*processTransport, error) {
	proc, err := StartProcess(name, cmd)
	if err != nil {
		return nil, err
	}
	if dial.Log.GetSink() == nil {
		dial.Log = log
	}

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-proc.Done():
			cancel()
		case <-dialCtx.Done():
		}
	}()

	conn, err := dap.NewSocketTransport(dialCtx, address, dial)
	if err != nil {
		if proc.Exited() {
			return nil, fmt.Errorf("%s exited with code %d before accepting connections: %w", name, proc.ExitCode(), ErrAdapterExited)
		}
		proc.Stop(stopGrace)
		return nil, err
	}
	return &processTransport{Transport: conn, proc: proc}, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
