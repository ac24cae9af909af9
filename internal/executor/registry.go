package executor

import "strings"

// Registry maps fence tags to executors. Tags without a registration are
// inert: the orchestrator treats their blocks as display-only text.
//
// Registry is populated during wiring and read afterwards; it is not safe
// for concurrent mutation.
type Registry struct {
	byTag map[string]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTag: make(map[string]Executor)}
}

// Register binds a fence tag to an executor. Tags are matched
// case-insensitively.
func (r *Registry) Register(tag string, e Executor) {
	r.byTag[strings.ToLower(tag)] = e
}

// Lookup returns the executor for a tag, or false if the tag is inert.
// The empty tag is always inert.
func (r *Registry) Lookup(tag string) (Executor, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, false
	}
	e, ok := r.byTag[tag]
	return e, ok
}
