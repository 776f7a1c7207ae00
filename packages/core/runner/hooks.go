package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"
)

// executePreHooks runs the before commands, stopping at the first failure
func (r *Runner) executePreHooks(ctx context.Context) error {
	for _, hook := range r.config.Before {
		if err := r.executeHook(ctx, hook); err != nil {
			return fmt.Errorf("before hook failed: %w", err)
		}
	}
	return nil
}

// executePostHooks runs every after command even when one fails
func (r *Runner) executePostHooks(ctx context.Context) error {
	var errs []error
	for _, hook := range r.config.After {
		if err := r.executeHook(ctx, hook); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("after hook failed: %w", errors.Join(errs...))
}

func (r *Runner) hookDir() string {
	if r.config.HookDir == "" {
		return "."
	}
	return r.config.HookDir
}

// resolveHookScript rewrites the program of a hook command line so scripts
// named relative to the config file are found from any working directory.
func (r *Runner) resolveHookScript(line string) string {
	words, err := shellquote.Split(line)
	if err != nil || len(words) == 0 {
		return line
	}
	prog := words[0]
	if filepath.IsAbs(prog) {
		return line
	}

	explicit := strings.HasPrefix(prog, "./") || strings.HasPrefix(prog, "../")
	if !explicit {
		if _, err := exec.LookPath(prog); err == nil {
			return line
		}
	}
	candidate := filepath.Join(r.hookDir(), prog)
	if !explicit {
		if _, err := os.Stat(candidate); err != nil {
			return line
		}
	}
	rest, ok := strings.CutPrefix(strings.TrimLeft(line, " \t"), prog)
	if !ok {
		// quoted program names are left for sh to resolve
		return line
	}
	return shellquote.Join(candidate) + rest
}

// executeHook runs one hook through sh with the runner environment
func (r *Runner) executeHook(ctx context.Context, command string) error {
	line := strings.TrimSpace(os.ExpandEnv(command))
	if line == "" {
		return nil
	}
	line = r.resolveHookScript(line)

	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.Dir = r.hookDir()
	cmd.Env = append(os.Environ(), r.config.Env...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command %q: %w\n%s", command, err, out)
	}
	if len(out) > 0 {
		r.logger.Debug("hook output", "command", command, "output", string(out))
	}
	return nil
}
