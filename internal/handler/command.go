package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/toolpane/toolpane/internal/invoke"
	"github.com/toolpane/toolpane/pkg/types"
	"go.uber.org/zap"
)

func (b *Binder) commandFunc(c call, h *types.CommandHandler) invoke.Func {
	program := h.Run
	if strings.ContainsRune(program, '/') && !filepath.IsAbs(program) {
		// ./bin/tool is relative to the tool file, a bare name is looked up in PATH
		program = filepath.Join(c.dir, program)
	}
	workDir := c.dir
	if h.Dir != "" {
		workDir = h.Dir
		if !filepath.IsAbs(workDir) {
			workDir = filepath.Join(c.dir, workDir)
		}
	}
	extraEnv := envSlice(h.Env)

	return func(ctx context.Context, params map[string]any) (any, error) {
		input, err := encodeParams(params)
		if err != nil {
			return nil, err
		}

		ctx, cancel := b.withTimeout(ctx)
		defer cancel()

		cmd := exec.CommandContext(ctx, program, h.Args...)
		cmd.Dir = workDir
		cmd.Env = append(append(os.Environ(), callEnv(c, input)...), extraEnv...)
		cmd.Stdin = bytes.NewReader(input)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			b.logger.Debug("command failed", zap.Stringer("function", c), zap.String("stderr", stderr.String()), zap.Error(err))
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("command %s was stopped: %w", h.Run, ctxErr)
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && stderr.Len() > 0 {
				return nil, fmt.Errorf("command %s failed with exit code %d: %s", h.Run, exitErr.ExitCode(), lastLines(stderr.String(), 5))
			}
			return nil, fmt.Errorf("command %s failed: %w", h.Run, err)
		}
		return decodeOutput(stdout.Bytes()), nil
	}
}
