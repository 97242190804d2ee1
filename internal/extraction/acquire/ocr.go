package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// Runner performs OCR on a file. The production implementation shells out to
// an external OCR tool; tests substitute their own.
type Runner interface {
	Run(ctx context.Context, path string) (*OCRResult, error)
}

// OCRResult is the JSON contract the OCR subprocess writes to stdout.
type OCRResult struct {
	Text   string     `json:"text"`
	Tables []OCRTable `json:"tables"`
}

type OCRTable struct {
	Rows [][]string `json:"rows"`
}

// CommandRunner invokes an OCR command as a subprocess. The command receives
// the file path as its last argument and must print an OCRResult JSON object
// to stdout. Every invocation is bounded by Timeout; a hung OCR process is
// killed rather than stalling the pipeline.
type CommandRunner struct {
	Command string
	Args    []string
	Timeout time.Duration
}

const defaultOCRTimeout = 2 * time.Minute

func NewCommandRunner(command string, args []string, timeout time.Duration) *CommandRunner {
	if timeout <= 0 {
		timeout = defaultOCRTimeout
	}
	return &CommandRunner{Command: command, Args: args, Timeout: timeout}
}

func (r *CommandRunner) Run(ctx context.Context, path string) (*OCRResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := append(append([]string{}, r.Args...), path)
	cmd := exec.CommandContext(ctx, r.Command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Killing the direct child is not enough: an OCR wrapper script can leave
	// a grandchild holding the stdout pipe, and Wait would block on it past
	// the deadline. WaitDelay forces the pipes closed shortly after cancel.
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("ocr command timed out after %s", r.Timeout)
		}
		return nil, fmt.Errorf("ocr command failed: %w (stderr: %s)", err, stderr.String())
	}

	var result OCRResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode ocr output: %w", err)
	}
	return &result, nil
}
