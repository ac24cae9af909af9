// Package display renders the conversation transcript for the operator.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"evalchat/internal/history"
)

// CloseDelimiter is the bare line ending every rendered turn. Together with
// the "<index>: <actor>" header it makes turn boundaries machine-parseable,
// so a turn can be located later for rewind or edit targeting.
const CloseDelimiter = "---"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	actorStyles = map[history.Actor]lipgloss.Style{
		history.ActorOperator: lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")),
		history.ActorModel:    lipgloss.NewStyle().Foreground(lipgloss.Color("#f2f2f2")),
		history.ActorExecutor: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")),
	}
	closeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2a3850"))
)

// Console streams turns to a writer, one header line per turn start, raw
// appends in arrival order, and a bare delimiter line per turn end. Only the
// orchestrator's control thread writes to it.
type Console struct {
	mu sync.Mutex
	w  io.Writer

	// pendingNewline tracks whether the streamed content ended mid-line, so
	// the closing delimiter always starts at column zero.
	pendingNewline bool
}

// NewConsole creates a console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// BeginTurn writes the turn's opening delimiter.
func (c *Console) BeginTurn(index int, actor history.Actor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	style, ok := actorStyles[actor]
	if !ok {
		style = headerStyle
	}
	fmt.Fprintln(c.w, headerStyle.Render(fmt.Sprintf("%d:", index))+" "+style.Render(string(actor)))
	c.pendingNewline = false
}

// Append writes streamed text verbatim, in arrival order.
func (c *Console) Append(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.w, text)
	c.pendingNewline = !strings.HasSuffix(text, "\n")
}

// EndTurn finalizes the turn with the bare closing delimiter line.
func (c *Console) EndTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingNewline {
		fmt.Fprintln(c.w)
		c.pendingNewline = false
	}
	fmt.Fprintln(c.w, closeStyle.Render(CloseDelimiter))
}
