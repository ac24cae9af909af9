package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// dataPrefix marks SSE event lines carrying a JSON frame.
const dataPrefix = "data:"

// doneSentinel terminates the stream from the provider side.
const doneSentinel = "[DONE]"

// Assemble reads an SSE event stream and delivers text increments, in
// arrival order, to the callback. Lines without the data marker are skipped;
// frames whose JSON fails to decode are dropped silently (transport chunking
// may split a frame across deliveries). It returns nil on normal completion
// (the [DONE] sentinel or stream close) and an error on a read failure or an
// in-stream API error frame.
//
// Increments carry no boundary guarantees: only their ordered concatenation
// is meaningful.
func Assemble(r io.Reader, deliver func(delta string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if data == "" {
			continue
		}
		if data == doneSentinel {
			return nil
		}

		var chunk Chunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("api error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				deliver(delta)
			}
		}
	}
	return scanner.Err()
}
