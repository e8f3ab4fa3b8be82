package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultToolName is the helper binary looked up next to the executable.
const DefaultToolName = "calendar-export"

// Runner runs the calendar-access tool once.
type Runner interface {
	// Run executes the tool with args and returns what it wrote. A non-zero
	// exit is reported as *ExitError.
	Run(ctx context.Context, args ...string) (stdout, stderr []byte, err error)
}

// ExitError reports a tool that ran and exited with a non-zero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExecRunner runs the tool as a subprocess.
type ExecRunner struct {
	Path string
	// Interpreter, if set, runs Path as a script (e.g. osascript).
	Interpreter string
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	name, argv := r.Path, args
	if r.Interpreter != "" {
		name, argv = r.Interpreter, append([]string{r.Path}, args...)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, argv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		err = &ExitError{Code: exitErr.ExitCode()}
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// ResolveToolPath returns the tool location: the explicit path when given,
// otherwise DefaultToolName in the directory of the running executable.
// The file must exist.
func ResolveToolPath(path string) (string, error) {
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("failed to locate own executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		path = filepath.Join(filepath.Dir(exe), DefaultToolName)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve tool path %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", &ToolNotFoundError{Path: abs}
	}
	return abs, nil
}

// isScript reports whether path must be run through osascript.
func isScript(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".applescript" || ext == ".scpt"
}
