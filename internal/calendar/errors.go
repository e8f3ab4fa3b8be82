package calendar

import (
	"fmt"
	"strings"
)

// ToolNotFoundError means the calendar-access tool is not on disk.
type ToolNotFoundError struct {
	Path string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("calendar tool not found at %s: build the calendar-export helper or pass --tool-path", e.Path)
}

// AccessDeniedError means the operating system refused calendar access.
type AccessDeniedError struct {
	Detail string // what the tool wrote to stderr
}

func (e *AccessDeniedError) Error() string {
	msg := "calendar access denied: grant access in System Settings > Privacy & Security > Calendars and run again"
	if e.Detail != "" {
		msg += " (tool said: " + e.Detail + ")"
	}
	return msg
}

// ToolError is any other failure to run the tool or a non-zero exit.
type ToolError struct {
	Path     string
	ExitCode int // -1 when the process did not start or was killed
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "calendar tool %s failed", e.Path)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, "; stderr: %s", e.Stderr)
	}
	return b.String()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ParseError means the tool succeeded but its output could not be decoded.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse calendar tool output: %v; raw output: %q", e.Err, truncate(e.Raw, 2048))
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
