package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/abdul-hamid-achik/collectspec/packages/core/env"
	"github.com/abdul-hamid-achik/collectspec/packages/core/runner"
	"github.com/abdul-hamid-achik/collectspec/packages/history"
	"github.com/abdul-hamid-achik/collectspec/packages/testenv"
)

// Environ assembles the extra runner environment from the env file and the
// env map, both resolved relative to the config file.
func (c *Config) Environ(logger *slog.Logger) ([]string, error) {
	b := env.NewBuilder()
	if logger != nil {
		b.SetWarnFunc(func(format string, args ...any) {
			logger.Warn("config env", "detail", fmt.Sprintf(format, args...))
		})
	}
	if c.EnvFile != "" {
		if err := b.AddFile(c.Resolve(c.EnvFile)); err != nil {
			return nil, err
		}
	}
	b.Add(c.Env)
	return b.Environ(), nil
}

// RunnerConfig converts the configuration into runner settings
func (c *Config) RunnerConfig(logger *slog.Logger) (*runner.Config, error) {
	command, err := c.Command()
	if err != nil {
		return nil, err
	}
	environ, err := c.Environ(logger)
	if err != nil {
		return nil, err
	}

	return &runner.Config{
		Command: command,
		Env:     environ,
		Timeout: c.TimeoutDuration(),
		Environment: testenv.Environment{
			TestAssetsPath:     c.Resolve(c.TestAssetsPath),
			BuildConfiguration: c.BuildConfiguration,
		},
		TempDir:      c.Resolve(c.TempDir),
		Parallel:     c.GetParallel(),
		Concurrency:  c.Concurrency,
		Rate:         c.Rate,
		Bail:         c.GetBail(),
		RunnerFilter: c.Runners,
		TargetFilter: c.Targets,
		Retries:      c.Retries,
		RetryDelay:   c.RetryDelayDuration(),
		KeepResults:  c.GetKeepResults(),
		Before:       c.Before,
		After:        c.After,
		HookDir:      c.Dir(),
		Logger:       logger,
	}, nil
}

// HistoryPath returns the history database file with a relative path
// resolved against the config directory. The sqlite:// and sqlite: forms
// are accepted; the scheme is dropped before resolving.
func (c *Config) HistoryPath() (string, error) {
	p, err := history.Path(c.History)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(p, "file:") {
		return p, nil
	}
	return c.Resolve(p), nil
}
