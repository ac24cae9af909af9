package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"evalchat/internal/executor"
	"evalchat/internal/history"
)

// scriptedTurn is one canned model response.
type scriptedTurn struct {
	deltas []string
	err    error
	// waitCancel blocks after delivering deltas until the session is
	// cancelled, simulating a long-lived stream.
	waitCancel bool
}

// scriptedModel replays canned responses and records every rendered history
// it was called with.
type scriptedModel struct {
	mu    sync.Mutex
	turns []scriptedTurn
	calls [][]history.Message

	// delivered receives each delta as it is handed to the orchestrator,
	// letting tests synchronize mid-stream.
	delivered chan string
}

func (m *scriptedModel) Stream(ctx context.Context, msgs []history.Message, deliver func(string)) error {
	m.mu.Lock()
	idx := len(m.calls)
	cp := make([]history.Message, len(msgs))
	copy(cp, msgs)
	m.calls = append(m.calls, cp)
	var turn scriptedTurn
	if idx < len(m.turns) {
		turn = m.turns[idx]
	}
	m.mu.Unlock()

	for _, d := range turn.deltas {
		deliver(d)
		if m.delivered != nil {
			select {
			case m.delivered <- d:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if turn.waitCancel {
		<-ctx.Done()
		return ctx.Err()
	}
	if turn.err != nil {
		return turn.err
	}
	return ctx.Err()
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *scriptedModel) call(i int) []history.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

// recordingSink captures the transcript event stream.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) BeginTurn(index int, actor history.Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("begin %d %s", index, actor))
}

func (s *recordingSink) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, text)
}

func (s *recordingSink) EndTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "end")
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

// fakeExecutor records bodies and returns a canned result.
type fakeExecutor struct {
	mu     sync.Mutex
	bodies []string
	result func(body string) string
	fail   bool
}

func (e *fakeExecutor) Execute(ctx context.Context, body string) executor.Result {
	e.mu.Lock()
	e.bodies = append(e.bodies, body)
	e.mu.Unlock()
	out := body
	if e.result != nil {
		out = e.result(body)
	}
	if e.fail {
		return executor.Failure(out, "")
	}
	return executor.Success(out)
}

func (e *fakeExecutor) executed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.bodies))
	copy(out, e.bodies)
	return out
}

// recordingInputLog captures operator inputs; optionally failing.
type recordingInputLog struct {
	mu     sync.Mutex
	inputs []string
	err    error
}

func (l *recordingInputLog) Record(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inputs = append(l.inputs, text)
	return l.err
}
