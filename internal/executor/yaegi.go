package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// GoExecutor evaluates Go code with the yaegi interpreter. Interpretation
// avoids the failure modes of shelling out to the toolchain: no compilation
// hangs, no binary version skew, no dependency resolution.
//
// Safety restrictions:
//   - only whitelisted stdlib imports (no filesystem, network, exec)
//   - per-execution timeout raced against the interpreter goroutine
type GoExecutor struct {
	timeout time.Duration

	// Whitelist of allowed stdlib packages.
	allowedPackages map[string]bool
}

// NewGoExecutor creates a sandboxed Go executor. A zero timeout means the
// caller's context is the only bound.
func NewGoExecutor(timeout time.Duration) *GoExecutor {
	return &GoExecutor{
		timeout: timeout,
		allowedPackages: map[string]bool{
			"bytes":           true,
			"encoding/base64": true,
			"encoding/json":   true,
			"errors":          true,
			"fmt":             true,
			"math":            true,
			"math/rand":       true,
			"path":            true,
			"regexp":          true,
			"sort":            true,
			"strconv":         true,
			"strings":         true,
			"time":            true,
			"unicode":         true,
			"unicode/utf8":    true,

			// Explicitly absent (unsafe): os, os/exec, net, net/http,
			// syscall, unsafe, io/ioutil, path/filepath.
		},
	}
}

// Execute evaluates body and returns its outcome. The result value is the
// code's stdout followed by the value of the final expression, if any.
func (e *GoExecutor) Execute(ctx context.Context, body string) Result {
	if err := e.validateImports(body); err != nil {
		return Failure(err.Error(), "")
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	i := interp.New(interp.Options{Stdout: &stdout, Stderr: &stderr})
	if err := i.Use(stdlib.Symbols); err != nil {
		return Failure(fmt.Sprintf("failed to load stdlib: %v", err), "")
	}

	done := make(chan Result, 1)
	go func() {
		v, err := i.EvalWithContext(ctx, body)
		if err != nil {
			trace := stderr.String()
			var p interp.Panic
			if errors.As(err, &p) {
				trace = strings.TrimSpace(trace + "\n" + string(p.Stack))
			}
			done <- Failure(err.Error(), trace)
			return
		}

		out := stdout.String()
		if v.IsValid() {
			if out != "" && !strings.HasSuffix(out, "\n") {
				out += "\n"
			}
			out += fmt.Sprintf("%v", v)
		}
		done <- Success(out)
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		// The interpreter goroutine is abandoned; EvalWithContext unwinds it
		// once it reaches an interruption point.
		return Failure(fmt.Sprintf("execution cancelled: %v", ctx.Err()), "")
	}
}

// validateImports checks that the code only imports allowed packages.
func (e *GoExecutor) validateImports(code string) error {
	var imports []string
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			if pkg := importPath(trimmed); pkg != "" {
				imports = append(imports, pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			if pkg := importPath(strings.TrimPrefix(trimmed, "import ")); pkg != "" {
				imports = append(imports, pkg)
			}
		}
	}

	var forbidden []string
	for _, pkg := range imports {
		if !e.allowedPackages[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %s", strings.Join(forbidden, ", "))
	}
	return nil
}

// importPath extracts the quoted path from an import spec line, dropping any
// local alias.
func importPath(spec string) string {
	start := strings.IndexByte(spec, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(spec[start+1:], '"')
	if end < 0 {
		return ""
	}
	return spec[start+1 : start+1+end]
}
