// Package history implements the append-only, branch-aware conversation log.
// Only the orchestrator writes to a Store; everything else reads projections.
package history

// Actor identifies who produced a turn's content.
type Actor string

const (
	ActorOperator Actor = "operator"
	ActorModel    Actor = "model"
	ActorExecutor Actor = "executor"
)

// Turn is one immutable unit of conversation history.
//
// SequenceIndex is dense and zero-based within the live history; after a
// rewind the next push resumes from the truncation point. Identity is
// globally unique for the lifetime of a session and survives rewinds, so it
// can be used as a stable reference ("edit turn 17") even after the sequence
// indices have been reused on a new branch.
type Turn struct {
	SequenceIndex int
	Identity      int64
	Actor         Actor
	Content       string
	BranchID      int

	// OverridePrefix is set only on model turns created through the
	// edit-and-continue path; it records the operator-supplied fragment the
	// model's content was seeded with.
	OverridePrefix string
}

// Message is one (role, content) pair of the transport projection.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transport role vocabulary. The executor speaks to the model as the user
// does: its output is input for the model's next turn.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TransportRole maps an actor to the wire role used by Render.
func (a Actor) TransportRole() string {
	if a == ActorModel {
		return RoleAssistant
	}
	return RoleUser
}
