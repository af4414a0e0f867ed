package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// interpreters maps entry point extensions to the command that runs them.
var interpreters = map[string][]string{
	".go":  {"go", "run"},
	".py":  {"python3"},
	".js":  {"node"},
	".mjs": {"node"},
	".ts":  {"npx", "tsx"},
}

// command returns the argv that runs path, or ErrNotRunnable.
// Shell scripts are not listed here: they run in the embedded interpreter.
func command(path string) ([]string, error) {
	if argv, ok := interpreters[strings.ToLower(filepath.Ext(path))]; ok {
		return append(append([]string(nil), argv...), path), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
		return []string{path}, nil
	}
	return nil, fmt.Errorf("%w: %s has no known interpreter and is not executable", ErrNotRunnable, path)
}

func runEntryPoint(ctx context.Context, path string, env []string) error {
	if strings.EqualFold(filepath.Ext(path), ".sh") {
		return runShell(ctx, path, env)
	}

	argv, err := command(path)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = filepath.Dir(path)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("entry point %s failed: %w", path, err)
	}
	return nil
}

func runShell(ctx context.Context, path string, env []string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	prog, err := syntax.NewParser().Parse(f, path)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	runner, err := interp.New(
		interp.Dir(filepath.Dir(path)),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
	)
	if err != nil {
		return err
	}

	err = runner.Run(ctx, prog)
	var status interp.ExitStatus
	switch {
	case err == nil, ctx.Err() != nil:
		return nil
	case errors.As(err, &status):
		return fmt.Errorf("entry point %s exited with status %d", path, uint8(status))
	default:
		return fmt.Errorf("entry point %s failed: %w", path, err)
	}
}
