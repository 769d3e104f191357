package debug

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dshills/keystorm-debug/internal/integration/debug/dap"
)

// reply builds the body of a response. A non-empty failure makes the
// response unsuccessful.
type reply func(args json.RawMessage) (body any, failure string)

func body(v any) reply {
	return func(json.RawMessage) (any, string) { return v, "" }
}

func fail(message string) reply {
	return func(json.RawMessage) (any, string) { return nil, message }
}

type adapterEvent struct {
	name string
	body any
}

// fakeAdapter is an in-memory debug adapter implementing dap.Transport.
// Requests are answered synchronously from Send.
type fakeAdapter struct {
	recv chan *dap.Message

	mu      sync.Mutex
	seq     int
	closed  bool
	sent    []dap.Request
	replies map[string]reply
	hold    map[string]bool
	held    []dap.Request
	after   map[string][]adapterEvent
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		recv:    make(chan *dap.Message, 256),
		replies: make(map[string]reply),
		hold:    make(map[string]bool),
		after: map[string][]adapterEvent{
			"launch": {{name: "initialized"}},
		},
	}
}

func (a *fakeAdapter) Send(msg *dap.Message) error {
	var req dap.Request
	if err := json.Unmarshal(msg.Content, &req); err != nil {
		return err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return io.ErrClosedPipe
	}
	if req.Type != dap.TypeRequest {
		a.mu.Unlock()
		return nil
	}
	a.sent = append(a.sent, req)
	if a.hold[req.Command] {
		a.held = append(a.held, req)
		a.mu.Unlock()
		return nil
	}
	r := a.replies[req.Command]
	after := a.after[req.Command]
	a.mu.Unlock()

	a.answer(req, r)
	for _, e := range after {
		a.emit(e.name, e.body)
	}
	return nil
}

func (a *fakeAdapter) Receive() (*dap.Message, error) {
	msg, ok := <-a.recv
	if !ok {
		return nil, io.EOF
	}
	return msg, nil
}

func (a *fakeAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.recv)
	}
	return nil
}

func (a *fakeAdapter) answer(req dap.Request, r reply) {
	var v any
	failure := ""
	if r != nil {
		v, failure = r(req.Arguments)
	}

	resp := dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: a.nextSeq(), Type: dap.TypeResponse},
		RequestSeq:      req.Seq,
		Success:         failure == "",
		Command:         req.Command,
		Message:         failure,
	}
	if v != nil {
		resp.Body, _ = json.Marshal(v)
	}
	a.push(resp)
}

func (a *fakeAdapter) emit(name string, v any) {
	evt := dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: a.nextSeq(), Type: dap.TypeEvent},
		Event:           name,
	}
	if v != nil {
		evt.Body, _ = json.Marshal(v)
	}
	a.push(evt)
}

func (a *fakeAdapter) push(v any) {
	msg, err := dap.NewMessage(v)
	if err != nil {
		panic(err)
	}
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if !closed {
		a.recv <- msg
	}
}

func (a *fakeAdapter) nextSeq() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.seq
}

func (a *fakeAdapter) on(command string, r reply) {
	a.mu.Lock()
	a.replies[command] = r
	a.mu.Unlock()
}

func (a *fakeAdapter) setHold(command string, hold bool) {
	a.mu.Lock()
	a.hold[command] = hold
	a.mu.Unlock()
}

// release answers the held requests for command with the current reply.
func (a *fakeAdapter) release(command string) {
	a.mu.Lock()
	var keep, answer []dap.Request
	for _, req := range a.held {
		if req.Command == command {
			answer = append(answer, req)
		} else {
			keep = append(keep, req)
		}
	}
	a.held = keep
	r := a.replies[command]
	a.mu.Unlock()

	for _, req := range answer {
		a.answer(req, r)
	}
}

// releaseOldest answers the oldest held request for command with r.
func (a *fakeAdapter) releaseOldest(command string, r reply) bool {
	a.mu.Lock()
	for i, req := range a.held {
		if req.Command == command {
			a.held = append(a.held[:i:i], a.held[i+1:]...)
			a.mu.Unlock()
			a.answer(req, r)
			return true
		}
	}
	a.mu.Unlock()
	return false
}

func (a *fakeAdapter) requests(command string) []dap.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []dap.Request
	for _, req := range a.sent {
		if req.Command == command {
			out = append(out, req)
		}
	}
	return out
}

func (a *fakeAdapter) commands() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.sent))
	for _, req := range a.sent {
		out = append(out, req.Command)
	}
	return out
}

func decodeArgs[T any](t *testing.T, req dap.Request) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(req.Arguments, &v))
	return v
}

// variablesByRef answers variables requests from a table keyed by reference.
func variablesByRef(table map[int][]dap.Variable) reply {
	return func(args json.RawMessage) (any, string) {
		var a dap.VariablesArguments
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err.Error()
		}
		vars, ok := table[a.VariablesReference]
		if !ok {
			return nil, "unknown reference"
		}
		return dap.VariablesResponseBody{Variables: vars}, ""
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}
