package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"vortex-go/internal/restore"
)

// Shell describes how scripts are handed to an interpreter.
type Shell struct {
	// Path is the interpreter executable, resolved via PATH when not absolute.
	Path string
	// Args precede the script on the command line.
	Args []string
	// Preamble is prepended to every script.
	Preamble string
	// JSONPreamble is additionally prepended to scripts run through RunJSON.
	JSONPreamble string
}

// PowerShell returns the Windows PowerShell shell used in production.
func PowerShell(path string) Shell {
	if path == "" {
		path = "powershell"
	}
	return Shell{
		Path:         path,
		Args:         []string{"-NoProfile", "-NonInteractive", "-Command"},
		Preamble:     "$ErrorActionPreference = 'Stop'; ",
		JSONPreamble: "[Console]::OutputEncoding = [System.Text.Encoding]::UTF8; ",
	}
}

// Gateway runs scripts in a hidden interpreter process and captures output.
type Gateway struct {
	shell   Shell
	timeout time.Duration
	logger  restore.Logger
}

// New creates a Gateway. A zero timeout leaves calls bounded only by ctx.
func New(shell Shell, timeout time.Duration, logger restore.Logger) *Gateway {
	return &Gateway{shell: shell, timeout: timeout, logger: logger}
}

// CommandError reports a script that could not run or exited non-zero.
type CommandError struct {
	ExitCode int
	Stderr   string
	Codes    []string
	cause    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	if e.ExitCode > 0 {
		return fmt.Sprintf("command exited with status %d", e.ExitCode)
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return "unknown command error"
}

// Is lets errors.Is(err, restore.ErrCommandFailure) match.
func (e *CommandError) Is(target error) bool {
	return target == restore.ErrCommandFailure
}

func (e *CommandError) Unwrap() error { return e.cause }

// ErrorCodes returns HRESULTs found in stderr, lower-cased, in order of appearance.
func (e *CommandError) ErrorCodes() []string { return e.Codes }

var hresultPattern = regexp.MustCompile(`(?i)0x[0-9a-f]{8}`)

func extractCodes(stderr string) []string {
	matches := hresultPattern.FindAllString(stderr, -1)
	if len(matches) == 0 {
		return nil
	}
	codes := make([]string, 0, len(matches))
	seen := map[string]bool{}
	for _, m := range matches {
		m = strings.ToLower(m)
		if !seen[m] {
			seen[m] = true
			codes = append(codes, m)
		}
	}
	return codes
}

// Run executes script and returns a *CommandError when it fails.
func (g *Gateway) Run(ctx context.Context, script string) error {
	_, err := g.exec(ctx, g.shell.Preamble+script)
	return err
}

// RunJSON executes script and decodes its stdout as one object or a list.
func (g *Gateway) RunJSON(ctx context.Context, script string) ([]json.RawMessage, error) {
	stdout, err := g.exec(ctx, g.shell.Preamble+g.shell.JSONPreamble+script)
	if err != nil {
		return []json.RawMessage{}, err
	}
	return DecodeList(stdout)
}

// DecodeList turns interpreter output into a list of JSON objects. Empty output
// and a literal null are an empty list.
func DecodeList(stdout []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(stdout, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []json.RawMessage{}, nil
	}

	switch trimmed[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return []json.RawMessage{}, fmt.Errorf("%w: %w", restore.ErrMalformedOutput, err)
		}
		if list == nil {
			list = []json.RawMessage{}
		}
		return list, nil
	case '{':
		var obj json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return []json.RawMessage{}, fmt.Errorf("%w: %w", restore.ErrMalformedOutput, err)
		}
		return []json.RawMessage{obj}, nil
	default:
		return []json.RawMessage{}, fmt.Errorf("%w: unexpected output %q", restore.ErrMalformedOutput, preview(trimmed))
	}
}

func (g *Gateway) exec(ctx context.Context, script string) ([]byte, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	args := append(append([]string{}, g.shell.Args...), script)
	cmd := exec.CommandContext(ctx, g.shell.Path, args...)
	// Grandchildren can hold the output pipes open after a kill.
	cmd.WaitDelay = time.Second
	hideWindow(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	g.logger.Debug("command finished", "shell", g.shell.Path, "duration", time.Since(start).Round(time.Millisecond), "error", err)
	if err == nil {
		return stdout.Bytes(), nil
	}

	cerr := &CommandError{
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr.String()),
		cause:    err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		cerr.cause = fmt.Errorf("%w: %w", err, ctx.Err())
	}
	if cerr.Stderr == "" && cerr.ExitCode > 0 {
		cerr.Stderr = "Unknown PowerShell error"
	}
	cerr.Codes = extractCodes(cerr.Stderr)
	return stdout.Bytes(), cerr
}

func preview(b []byte) string {
	const limit = 64
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

// Compile-time check that Gateway implements restore.CommandGateway
var _ restore.CommandGateway = (*Gateway)(nil)
var _ restore.CodedError = (*CommandError)(nil)
