package latex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultCommand = "pdflatex"
	defaultTimeout = 60 * time.Second
	passes         = 2
	jobName        = "invoice"
)

var (
	ErrLatexNotFound  = errors.New("latex command not found")
	ErrCompileTimeout = errors.New("latex compilation timed out")
)

// CompilationError carries the compiler log of a failed build.
type CompilationError struct {
	Message string
	Output  string
	Err     error
}

func (e *CompilationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CompilationError) Unwrap() error { return e.Err }

// Compiler runs a LaTeX engine to produce a PDF.
type Compiler struct {
	Command string
	// Timeout bounds each pass.
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewCompiler(command string, logger *slog.Logger) *Compiler {
	if strings.TrimSpace(command) == "" {
		command = defaultCommand
	}
	return &Compiler{Command: command, Timeout: defaultTimeout, Logger: logger}
}

func (c *Compiler) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Compile builds source in a scratch directory and copies the PDF to
// outputPath. The engine runs twice so references resolve; a second pass is
// also the retry when the first produced no PDF.
func (c *Compiler) Compile(ctx context.Context, source, outputPath string) error {
	dir, err := os.MkdirTemp("", "timebill-latex-*")
	if err != nil {
		return fmt.Errorf("latex scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	texPath := filepath.Join(dir, jobName+".tex")
	if err := os.WriteFile(texPath, []byte(source), 0o644); err != nil {
		return fmt.Errorf("write latex source: %w", err)
	}
	pdfPath := filepath.Join(dir, jobName+".pdf")

	var lastOut string
	var lastErr error
	for pass := 1; pass <= passes; pass++ {
		lastOut, lastErr = c.run(ctx, dir, texPath)
		if errors.Is(lastErr, ErrLatexNotFound) || errors.Is(lastErr, ErrCompileTimeout) {
			return &CompilationError{Message: "latex compilation failed", Output: lastOut, Err: lastErr}
		}
		if lastErr != nil {
			c.logger().Warn("latex pass failed", "pass", pass, "err", lastErr)
		}
	}
	if _, err := os.Stat(pdfPath); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return &CompilationError{Message: "latex compilation produced no PDF", Output: lastOut, Err: lastErr}
	}

	if err := copyFile(pdfPath, outputPath); err != nil {
		return fmt.Errorf("copy pdf to %s: %w", outputPath, err)
	}
	c.logger().Debug("pdf written", "path", outputPath)
	return nil
}

func (c *Compiler) run(ctx context.Context, dir, texPath string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Command,
		"-interaction=nonstopmode",
		"-output-directory="+dir,
		texPath,
	)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	switch {
	case err == nil:
		return out.String(), nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return out.String(), fmt.Errorf("%w after %s", ErrCompileTimeout, timeout)
	case errors.Is(err, exec.ErrNotFound):
		return "", fmt.Errorf("%w: %q; install a LaTeX distribution", ErrLatexNotFound, c.Command)
	default:
		return out.String(), fmt.Errorf("%s: %w", c.Command, err)
	}
}

// Available reports whether the engine runs at all.
func (c *Compiler) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, c.Command, "--version").Run() == nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
