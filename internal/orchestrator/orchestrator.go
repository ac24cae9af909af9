// Package orchestrator drives the operator ↔ model ↔ executor loop.
//
// A single logical control thread owns all state transitions and is the only
// writer of the context store and the display sink. Submit, Continue and
// EditAndContinue each run one full operation to completion; Abort, RewindTo
// and Acknowledge may be called from other goroutines and synchronize with
// the running operation by cancelling it first.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evalchat/internal/executor"
	"evalchat/internal/history"
)

// State is the orchestrator's position in the turn-taking machine.
type State int

const (
	StateIdle State = iota
	StateAwaitingModel
	StateAwaitingExecution
	StateHaltedOnError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting-model"
	case StateAwaitingExecution:
		return "awaiting-execution"
	case StateHaltedOnError:
		return "halted-on-error"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyInput rejects operator submissions with no content.
	ErrEmptyInput = errors.New("empty operator input")
	// ErrBusy rejects an operation while another is in flight.
	ErrBusy = errors.New("an operation is already in flight")
	// ErrHalted rejects operations until the diagnostic is acknowledged.
	ErrHalted = errors.New("halted on error; acknowledge first")
	// ErrNotHalted rejects Acknowledge outside the halted state.
	ErrNotHalted = errors.New("not halted")
	// ErrAborted reports that the operator cancelled the in-flight turn.
	ErrAborted = errors.New("aborted")
	// ErrNotStreaming rejects Abort outside the awaiting-model state.
	ErrNotStreaming = errors.New("no model stream to abort")
	// ErrNoContinuation rejects Continue when the history offers nothing to
	// resume: the last turn must be a model turn with an unexecuted
	// actionable block, or an executor turn.
	ErrNoContinuation = errors.New("nothing to continue")
)

// ModelStreamer requests one model turn and delivers its increments in
// arrival order. It returns ctx.Err() when cancelled, nil on completion, and
// any other error on transport failure.
type ModelStreamer interface {
	Stream(ctx context.Context, messages []history.Message, deliver func(delta string)) error
}

// Sink receives the transcript: a turn-boundary header, ordered verbatim
// appends, and a finalize signal per turn.
type Sink interface {
	BeginTurn(index int, actor history.Actor)
	Append(text string)
	EndTurn()
}

// InputLog durably records operator inputs. Failures are logged, never
// fatal: persistence is an optional collaborator.
type InputLog interface {
	Record(text string) error
}

// streamSession is one in-flight, cancelable model request. At most one is
// live per orchestrator; starting a new one supersedes the previous.
type streamSession struct {
	id     uuid.UUID
	cancel context.CancelFunc
}

// Orchestrator composes the store, the model transport, the block extractor
// and the executor registry into the turn-taking state machine.
type Orchestrator struct {
	store    *history.Store
	model    ModelStreamer
	execs    *executor.Registry
	sink     Sink
	inputLog InputLog
	logger   *zap.Logger

	// opMu serializes whole operations: the single logical control thread.
	opMu sync.Mutex

	// mu guards the fields below, which Abort/RewindTo/Status read and
	// write from outside the control thread.
	mu       sync.Mutex
	state    State
	session  *streamSession
	opCancel context.CancelFunc
	diag     error
}

// Options wires an orchestrator.
type Options struct {
	Store     *history.Store
	Model     ModelStreamer
	Executors *executor.Registry
	Sink      Sink
	InputLog  InputLog // optional
	Logger    *zap.Logger
}

// New creates an orchestrator in the idle state.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:    opts.Store,
		model:    opts.Model,
		execs:    opts.Executors,
		sink:     opts.Sink,
		inputLog: opts.InputLog,
		logger:   logger,
	}
}

// State returns the current machine state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Diagnostic returns the error the machine halted on, if any.
func (o *Orchestrator) Diagnostic() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.diag
}

// Submit pushes an operator turn and runs the loop until the model yields a
// turn with no actionable block. Empty input is rejected; the bare-continue
// gesture is Continue.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	o.opMu.Lock()
	defer o.opMu.Unlock()

	opCtx, err := o.beginOp(ctx)
	if err != nil {
		return err
	}
	defer o.endOp()

	turn := o.store.Push(history.ActorOperator, text)
	o.renderTurn(turn)
	if o.inputLog != nil {
		if err := o.inputLog.Record(text); err != nil {
			o.logger.Warn("failed to record operator input", zap.Error(err))
		}
	}

	return o.runLoop(opCtx, "")
}

// Continue resumes the loop without pushing a new turn. Valid only when the
// last turn is a model turn carrying an unexecuted actionable block, or an
// executor turn.
func (o *Orchestrator) Continue(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	last, ok := o.store.LastTurn()
	if !ok {
		return ErrNoContinuation
	}

	switch last.Actor {
	case history.ActorExecutor:
		opCtx, err := o.beginOp(ctx)
		if err != nil {
			return err
		}
		defer o.endOp()
		return o.runLoop(opCtx, "")

	case history.ActorModel:
		block, exec, actionable := o.actionableBlock(last.Content)
		if !actionable {
			return ErrNoContinuation
		}
		opCtx, err := o.beginOp(ctx)
		if err != nil {
			return err
		}
		defer o.endOp()

		o.setState(StateAwaitingExecution)
		if err := o.executeAndPush(opCtx, exec, block.Body); err != nil {
			return err
		}
		o.setState(StateAwaitingModel)
		return o.runLoop(opCtx, "")

	default:
		return ErrNoContinuation
	}
}

// EditAndContinue rewinds to index and requests the next model turn seeded
// with the edited text as an assistant-authored prefix. The pushed model
// turn's content begins with that fragment.
func (o *Orchestrator) EditAndContinue(ctx context.Context, index int, prefix string) error {
	if err := o.RewindTo(index); err != nil {
		return err
	}

	o.opMu.Lock()
	defer o.opMu.Unlock()

	opCtx, err := o.beginOp(ctx)
	if err != nil {
		return err
	}
	defer o.endOp()

	return o.runLoop(opCtx, prefix)
}

// Abort cancels the live model stream, discarding its partial accumulation.
// Valid only while a model turn is being awaited.
func (o *Orchestrator) Abort() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateAwaitingModel {
		return ErrNotStreaming
	}
	// Detach the session first so late deliveries are discarded, then cancel
	// the operation; this also covers the window before the session handle
	// is registered.
	o.cancelSessionLocked()
	if o.opCancel != nil {
		o.opCancel()
	}
	return nil
}

// RewindTo truncates history back to index. A live stream is cancelled
// before truncation so a stale session can never append past the cut.
func (o *Orchestrator) RewindTo(index int) error {
	// Early rejection so an obviously invalid target never cancels a live
	// stream. Store.Len is safe from this goroutine; the length may still
	// move before we hold opMu, so TruncateFrom re-checks authoritatively.
	if index < 0 || index > o.store.Len() {
		return history.ErrInvalidRewindTarget
	}

	o.mu.Lock()
	o.cancelSessionLocked()
	if o.opCancel != nil {
		o.opCancel()
	}
	o.mu.Unlock()

	// Waits for the cancelled operation to unwind; the store is only ever
	// touched from inside opMu.
	o.opMu.Lock()
	defer o.opMu.Unlock()

	if err := o.store.TruncateFrom(index); err != nil {
		return err
	}
	o.logger.Info("history rewound",
		zap.Int("index", index),
		zap.Int("branch", o.store.Branch()))

	o.mu.Lock()
	o.state = StateIdle
	o.diag = nil
	o.mu.Unlock()
	return nil
}

// Acknowledge clears a surfaced diagnostic and returns the machine to idle.
func (o *Orchestrator) Acknowledge() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateHaltedOnError {
		return ErrNotHalted
	}
	o.state = StateIdle
	o.diag = nil
	return nil
}

// History returns a copy of the live history.
func (o *Orchestrator) History() []history.Turn {
	o.opMu.Lock()
	defer o.opMu.Unlock()
	return o.store.Turns()
}

func (o *Orchestrator) beginOp(ctx context.Context) (context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case StateHaltedOnError:
		return nil, ErrHalted
	case StateIdle:
	default:
		return nil, ErrBusy
	}
	opCtx, cancel := context.WithCancel(ctx)
	o.opCancel = cancel
	o.state = StateAwaitingModel
	return opCtx, nil
}

func (o *Orchestrator) endOp() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.opCancel != nil {
		o.opCancel()
		o.opCancel = nil
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) halt(err error) {
	o.mu.Lock()
	o.state = StateHaltedOnError
	o.diag = err
	o.mu.Unlock()
	o.logger.Error("halted on error", zap.Error(err))
}

// cancelSessionLocked cancels and detaches the live streaming session.
// Callers hold mu. Detaching first means any late-arriving deliveries from
// the cancelled session are discarded, not forwarded.
func (o *Orchestrator) cancelSessionLocked() {
	if o.session != nil {
		o.session.cancel()
		o.session = nil
	}
}

// renderTurn forwards a complete turn to the display sink.
func (o *Orchestrator) renderTurn(t history.Turn) {
	o.sink.BeginTurn(t.SequenceIndex, t.Actor)
	o.sink.Append(t.Content)
	o.sink.EndTurn()
}
