package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalchat/internal/history"
)

func TestConsole_TurnDelimiters(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.BeginTurn(0, history.ActorOperator)
	c.Append("list open files\n")
	c.EndTurn()

	c.BeginTurn(1, history.ActorModel)
	c.Append("Sure.")
	c.Append(" Here you go.")
	c.EndTurn()

	lines := strings.Split(buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Contains(t, lines[0], "0:")
	assert.Contains(t, lines[0], "operator")
	assert.Equal(t, "list open files", stripANSI(lines[1]))
	assert.Equal(t, CloseDelimiter, stripANSI(lines[2]))
	assert.Contains(t, lines[3], "1:")
	assert.Contains(t, lines[3], "model")
	assert.Equal(t, "Sure. Here you go.", stripANSI(lines[4]))
	assert.Equal(t, CloseDelimiter, stripANSI(lines[5]))
}

func TestConsole_ClosesDanglingLine(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.BeginTurn(0, history.ActorModel)
	c.Append("no trailing newline")
	c.EndTurn()

	assert.True(t, strings.HasSuffix(stripANSI(buf.String()), "no trailing newline\n"+CloseDelimiter+"\n"))
}

func TestConsole_EmptyAppendIsNoop(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.BeginTurn(0, history.ActorModel)
	c.Append("")
	c.EndTurn()

	// No dangling-line newline was inserted for the empty append.
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

// stripANSI removes color escape sequences so assertions see plain text.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
