package timew

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultCommand = "timew"
	defaultTimeout = 30 * time.Second
)

// Client shells out to the timew binary.
type Client struct {
	Command string
	Timeout time.Duration
}

func NewClient(command string, timeout time.Duration) *Client {
	if strings.TrimSpace(command) == "" {
		command = defaultCommand
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{Command: command, Timeout: timeout}
}

// Export returns the raw JSON export for the closed range start - end.
func (c *Client) Export(ctx context.Context, start, end string) (string, error) {
	return c.run(ctx, "export", start, "-", end)
}

// Version reports the installed timew version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "--version")
	return strings.TrimSpace(out), err
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %s", ErrExportTimeout, c.Timeout)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return "", fmt.Errorf("%w: %q is not installed or not in PATH", ErrTimewNotFound, c.Command)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "", fmt.Errorf("timew %s failed: exit code %d, stderr: %s",
			args[0], exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
	}
	return "", fmt.Errorf("timew %s failed: %w", args[0], err)
}
