// Package executor defines the code-execution contract and the Go
// interpreter that fulfills it for go-tagged blocks.
package executor

import "context"

// Result is the structured outcome of one execution. The orchestrator never
// inspects the fields; it pushes Serialize() verbatim as the executor turn.
type Result struct {
	OK      bool
	Value   string
	Message string
	Trace   string
}

// Success wraps an execution value.
func Success(value string) Result {
	return Result{OK: true, Value: value}
}

// Failure wraps an execution error and its trace.
func Failure(message, trace string) Result {
	return Result{Message: message, Trace: trace}
}

// Serialize renders the result as the text of the next conversation turn.
// Failure is encoded inline so the model can see it and react; it is data,
// not control flow.
func (r Result) Serialize() string {
	if r.OK {
		return r.Value
	}
	out := "error: " + r.Message
	if r.Trace != "" {
		out += "\n" + r.Trace
	}
	return out
}

// Executor evaluates a fenced block's body. Implementations are responsible
// for their own runaway-code protection; the orchestrator imposes no timeout
// but stays cancelable through ctx.
type Executor interface {
	Execute(ctx context.Context, body string) Result
}
