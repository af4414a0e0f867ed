package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/toolpane/toolpane/internal/invoke"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// scriptFunc runs a POSIX shell script with the embedded interpreter, so scripts work the same
// on every platform without a system shell.
func (b *Binder) scriptFunc(c call, script string) (invoke.Func, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), c.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	return func(ctx context.Context, params map[string]any) (any, error) {
		input, err := encodeParams(params)
		if err != nil {
			return nil, err
		}

		ctx, cancel := b.withTimeout(ctx)
		defer cancel()

		var stdout, stderr bytes.Buffer
		runner, err := interp.New(
			interp.Dir(c.dir),
			interp.Env(expand.ListEnviron(append(os.Environ(), callEnv(c, input)...)...)),
			interp.StdIO(bytes.NewReader(input), &stdout, &stderr),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create interpreter: %w", err)
		}

		if err := runner.Run(ctx, prog); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("script was stopped: %w", ctxErr)
			}
			var exitStatus interp.ExitStatus
			if errors.As(err, &exitStatus) {
				msg := fmt.Sprintf("script exited with status %d", exitStatus)
				if stderr.Len() > 0 {
					msg += ": " + lastLines(stderr.String(), 5)
				}
				return nil, errors.New(msg)
			}
			return nil, fmt.Errorf("script execution failed: %w", err)
		}
		return decodeOutput(stdout.Bytes()), nil
	}, nil
}
