// Package debug drives debug sessions through the Debug Adapter Protocol.
//
// The package sits between a dap.Client and whatever renders debugger state:
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                        SessionListener                          │
//	│  - Follows stopped/continued events                             │
//	│  - Fetches stack, scopes and variables for the current frame    │
//	│  - Re-sends breakpoints and records what the adapter verified   │
//	└─────────────────────────────────────────────────────────────────┘
//	            │                                     │
//	            ▼                                     ▼
//	┌───────────────────────────────┐   ┌───────────────────────────────┐
//	│           dap.Client          │   │            models             │
//	│  - Requests and responses     │   │  - Breakpoints, threads       │
//	│  - Event fan-out              │   │  - Stack, variable tree       │
//	└───────────────────────────────┘   └───────────────────────────────┘
//
// # Breakpoints
//
// A Registry holds the breakpoints of every file for the lifetime of the
// process. Each file holds a set: adding an equal breakpoint twice has no
// effect. When a session initializes, the listener sends every file's
// enabled breakpoints and writes the adapter's answer back into the
// registry's BreakpointsModel, where unverified breakpoints stay visible.
//
// Changing a breakpoint while the debuggee runs pauses it, sends the changed
// files and resumes.
//
// # Stale responses
//
// Frame ids and variable references are only valid until the debuggee
// resumes. The client tags each request with a generation that advances on
// every resumption; responses from an older generation are dropped instead
// of being merged into the models.
//
// # Remote debugging
//
// A PathMap rewrites the local root of outgoing paths to the remote root and
// back for paths reported by the adapter.
//
// # Usage
//
//	registry := debug.NewRegistry()
//	registry.Toggle("/src/app/main.py", 10)
//
//	client := dap.NewClient(transport, dap.Config{AdapterID: "python", Arguments: launchArgs})
//	session := debug.NewSessionListener(client, debug.SessionConfig{Registry: registry})
//	session.OnPositionReady(func(pos debug.Position) {
//	    fmt.Printf("stopped at %s:%d\n", pos.Path, pos.Line)
//	    session.Resume()
//	})
//	client.Start()
//	<-session.Ended()
//
// # Subpackages
//
//   - dap: protocol types, transports and the client
//   - models: thread, stack, breakpoint and variable models
//   - adapters: debug adapter descriptors and launching
package debug
