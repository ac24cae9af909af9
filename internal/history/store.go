package history

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrInvalidRewindTarget is returned by TruncateFrom when the index is
// outside [0, Len()].
var ErrInvalidRewindTarget = errors.New("rewind target out of range")

// Store is the append-only, branch-aware ordered log of turns.
//
// The store accepts any actor order; the alternation of operator, model and
// executor turns is the orchestrator's job. The store also knows nothing
// about in-flight streams: callers must cancel a live stream before
// truncating the region it would have appended to.
//
// Store is not safe for concurrent use, with one exception: Len may be
// called from any goroutine (rewind bounds checks read it from outside the
// control thread), so the length is mirrored atomically. The single-writer
// discipline (only the orchestrator mutates the store) makes further locking
// unnecessary.
type Store struct {
	turns        []Turn
	length       atomic.Int64
	branch       int
	nextIdentity int64
	system       string
}

// NewStore creates an empty store whose Render output is prefixed by the
// given system instruction. The instruction is not itself a stored turn.
func NewStore(systemInstruction string) *Store {
	return &Store{system: systemInstruction}
}

// Push appends a new turn and returns it. Content is unconstrained here;
// rejecting empty operator input happens upstream.
func (s *Store) Push(actor Actor, content string) Turn {
	return s.push(actor, content, "")
}

// PushWithPrefix appends a model turn created through the edit-and-continue
// path, recording the operator-supplied seed fragment on the turn.
func (s *Store) PushWithPrefix(actor Actor, content, overridePrefix string) Turn {
	return s.push(actor, content, overridePrefix)
}

func (s *Store) push(actor Actor, content, prefix string) Turn {
	t := Turn{
		SequenceIndex:  len(s.turns),
		Identity:       s.nextIdentity,
		Actor:          actor,
		Content:        content,
		BranchID:       s.branch,
		OverridePrefix: prefix,
	}
	s.nextIdentity++
	s.turns = append(s.turns, t)
	s.length.Store(int64(len(s.turns)))
	return t
}

// TruncateFrom removes every turn with SequenceIndex >= index and bumps the
// branch counter. Calling it again with the same or a smaller index is
// idempotent in resulting history length (though each call still opens a new
// branch). Index must be within [0, Len()].
func (s *Store) TruncateFrom(index int) error {
	if index < 0 || index > len(s.turns) {
		return fmt.Errorf("%w: %d (history length %d)", ErrInvalidRewindTarget, index, len(s.turns))
	}
	s.turns = s.turns[:index]
	s.length.Store(int64(len(s.turns)))
	s.branch++
	return nil
}

// Render projects the live history into the ordered message sequence for the
// model transport, prefixed by the fixed system instruction.
func (s *Store) Render() []Message {
	msgs := make([]Message, 0, len(s.turns)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: s.system})
	for _, t := range s.turns {
		msgs = append(msgs, Message{Role: t.Actor.TransportRole(), Content: t.Content})
	}
	return msgs
}

// LastTurn returns the most recent turn, or false if the history is empty.
func (s *Store) LastTurn() (Turn, bool) {
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// Len returns the live history length. Safe from any goroutine.
func (s *Store) Len() int { return int(s.length.Load()) }

// Branch returns the current branch counter.
func (s *Store) Branch() int { return s.branch }

// Turns returns a copy of the live history, oldest first.
func (s *Store) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}
