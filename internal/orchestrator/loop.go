package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evalchat/internal/executor"
	"evalchat/internal/fence"
	"evalchat/internal/history"
)

// runLoop drives model and executor turns until the model yields a turn with
// no actionable block. An explicit loop, not recursion: arbitrarily long
// executor/model chains must not grow the stack.
//
// prefix seeds only the first model turn (the edit-and-continue path).
func (o *Orchestrator) runLoop(opCtx context.Context, prefix string) error {
	for {
		content, err := o.streamModelTurn(opCtx, prefix)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				o.setState(StateIdle)
				return ErrAborted
			}
			o.halt(err)
			return err
		}
		if opCtx.Err() != nil {
			// Cancelled between completion and push; a superseding rewind
			// may be waiting to truncate. Discard.
			o.setState(StateIdle)
			return ErrAborted
		}

		var turn history.Turn
		if prefix != "" {
			turn = o.store.PushWithPrefix(history.ActorModel, content, prefix)
		} else {
			turn = o.store.Push(history.ActorModel, content)
		}
		prefix = ""

		block, exec, actionable := o.actionableBlock(turn.Content)
		if !actionable {
			o.setState(StateIdle)
			return nil
		}

		o.setState(StateAwaitingExecution)
		if err := o.executeAndPush(opCtx, exec, block.Body); err != nil {
			return err
		}
		o.setState(StateAwaitingModel)
	}
}

// actionableBlock inspects a model turn's text and returns its last fenced
// block with the executor registered for the block's tag. Unterminated
// blocks and unrecognized or empty tags are inert.
func (o *Orchestrator) actionableBlock(content string) (fence.Block, executor.Executor, bool) {
	block, ok := fence.Last(content)
	if !ok || !block.Closed {
		return fence.Block{}, nil, false
	}
	exec, ok := o.execs.Lookup(block.Tag)
	if !ok {
		return fence.Block{}, nil, false
	}
	return block, exec, true
}

// streamModelTurn opens one streaming session, forwards increments to the
// display sink verbatim and in order, and returns the accumulated text.
// Starting a session supersedes any prior live one; deliveries from a
// superseded session are discarded.
func (o *Orchestrator) streamModelTurn(opCtx context.Context, prefix string) (string, error) {
	sctx, cancel := context.WithCancel(opCtx)
	sess := &streamSession{id: uuid.New(), cancel: cancel}

	o.mu.Lock()
	o.cancelSessionLocked()
	o.session = sess
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		if o.session == sess {
			o.session = nil
		}
		o.mu.Unlock()
		cancel()
	}()

	messages := o.store.Render()
	if prefix != "" {
		// The transport treats the prefix as the leading fragment of the
		// assistant's own upcoming turn.
		messages = append(messages, history.Message{Role: history.RoleAssistant, Content: prefix})
	}

	o.logger.Debug("streaming model turn",
		zap.String("session", sess.id.String()),
		zap.Int("messages", len(messages)))

	var acc strings.Builder
	acc.WriteString(prefix)

	o.sink.BeginTurn(o.store.Len(), history.ActorModel)
	if prefix != "" {
		o.sink.Append(prefix)
	}

	err := o.model.Stream(sctx, messages, func(delta string) {
		o.mu.Lock()
		live := o.session == sess
		o.mu.Unlock()
		if !live || sctx.Err() != nil {
			return
		}
		acc.WriteString(delta)
		o.sink.Append(delta)
	})

	// Close the turn's delimiter even on failure; partial text already shown
	// may remain visible, that is the sink's call.
	o.sink.EndTurn()

	if err != nil {
		return "", err
	}
	return acc.String(), nil
}

// executeAndPush runs the block body through the executor and pushes the
// serialized outcome as an executor turn. Execution failure is data for the
// model, never an orchestrator error; only a superseding cancellation stops
// the loop here.
func (o *Orchestrator) executeAndPush(opCtx context.Context, exec executor.Executor, body string) error {
	result := exec.Execute(opCtx, body)
	if opCtx.Err() != nil {
		o.setState(StateIdle)
		return ErrAborted
	}

	turn := o.store.Push(history.ActorExecutor, result.Serialize())
	o.renderTurn(turn)
	o.logger.Debug("executed block",
		zap.Bool("ok", result.OK),
		zap.Int("turn", turn.SequenceIndex))
	return nil
}
