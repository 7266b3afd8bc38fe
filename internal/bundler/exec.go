package bundler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// ExecBundler invokes an external bundler process. The compilation config
// is written to the process's stdin as JSON and the {errors, warnings}
// result is read from its stdout, also as JSON. A non-zero exit with a
// parseable result is treated as a completed compilation that reported
// errors, not as a process failure.
type ExecBundler struct {
	command string
	args    []string
	logger  *zap.Logger
}

// NewExecBundler creates an ExecBundler running the given command.
func NewExecBundler(logger *zap.Logger, command string, args ...string) *ExecBundler {
	return &ExecBundler{command: command, args: args, logger: logger}
}

// Compile runs the bundler process to completion.
func (b *ExecBundler) Compile(ctx context.Context, cfg Config) (*Result, error) {
	input, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundler config: %w", err)
	}

	cmd := exec.CommandContext(ctx, b.command, b.args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	b.logger.Debug("invoking bundler",
		zap.String("command", b.command),
		zap.String("entry", cfg.EntryPath),
		zap.String("mode", cfg.Mode))

	runErr := cmd.Run()

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("bundler process failed: %w: %s", runErr, stderr.String())
		}
		return nil, fmt.Errorf("failed to decode bundler result: %w", err)
	}

	return &result, nil
}
