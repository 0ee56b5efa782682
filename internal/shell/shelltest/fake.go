// Package shelltest provides a scripted shell.Runner for tests.
package shelltest

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/tsingmao/jetbox/internal/shell"
)

// Response is one scripted reply.
type Response struct {
	Output shell.Output
	Err    error
}

// Stdout is a successful response printing s.
func Stdout(s string) Response {
	return Response{Output: shell.Output{Stdout: s}}
}

// Exit is a failed response with the given exit code and stderr.
func Exit(code int, stderr string) Response {
	return Response{
		Output: shell.Output{Stderr: stderr, ExitCode: code},
		Err:    &shell.ExitError{ExitCode: code, Stderr: stderr},
	}
}

// Call is a recorded invocation.
type Call struct {
	Command shell.Command
	Stdin   string
}

type rule struct {
	prefix    string
	responses []Response
}

// Fake records commands and replays scripted responses. Commands are
// matched by the longest registered prefix of their rendered command line.
// Unmatched commands succeed with empty output.
//
// Thread Safety: All methods are safe for concurrent use.
type Fake struct {
	mu    sync.Mutex
	rules []*rule
	calls []Call

	// Paths maps executable names to LookPath results. Names absent from
	// the map are reported as not found.
	Paths map[string]string
}

// New returns a Fake where the given executables resolve under /usr/bin.
func New(executables ...string) *Fake {
	f := &Fake{Paths: map[string]string{}}
	for _, name := range executables {
		f.Paths[name] = "/usr/bin/" + name
	}
	return f
}

// On scripts responses for commands starting with prefix. Responses are
// consumed in order; the last one repeats.
func (f *Fake) On(prefix string, responses ...Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(responses) == 0 {
		responses = []Response{{}}
	}
	f.rules = append(f.rules, &rule{prefix: prefix, responses: responses})
	return f
}

func (f *Fake) respond(c shell.Command) Response {
	line := c.String()

	var best *rule
	for _, r := range f.rules {
		if strings.HasPrefix(line, r.prefix) && (best == nil || len(r.prefix) > len(best.prefix)) {
			best = r
		}
	}
	if best == nil {
		return Response{}
	}
	resp := best.responses[0]
	if len(best.responses) > 1 {
		best.responses = best.responses[1:]
	}
	if exitErr, ok := resp.Err.(*shell.ExitError); ok && exitErr.Command == "" {
		copied := *exitErr
		copied.Command = line
		resp.Err = &copied
	}
	return resp
}

// Run implements shell.Runner.
func (f *Fake) Run(ctx context.Context, c shell.Command) (shell.Output, error) {
	if err := ctx.Err(); err != nil {
		return shell.Output{}, err
	}
	var stdin string
	if c.Stdin != nil {
		b, _ := io.ReadAll(c.Stdin)
		stdin = string(b)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Command: c, Stdin: stdin})
	resp := f.respond(c)
	return resp.Output, resp.Err
}

// Stream implements shell.Runner by emitting the scripted stdout line by line.
func (f *Fake) Stream(ctx context.Context, c shell.Command, onLine func(string)) error {
	out, err := f.Run(ctx, c)
	_ = shell.ScanLines(strings.NewReader(out.Stdout), onLine)
	return err
}

// LookPath implements shell.Runner.
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("exec: %q: %w", name, exec.ErrNotFound)
}

// Calls returns the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Lines returns the rendered command lines in invocation order.
func (f *Fake) Lines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Command.String()
	}
	return lines
}

// Count returns how many invocations start with prefix.
func (f *Fake) Count(prefix string) int {
	n := 0
	for _, line := range f.Lines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}
