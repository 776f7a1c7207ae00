package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/collectspec/packages/capture"
	"github.com/abdul-hamid-achik/collectspec/packages/fixture"
	"github.com/abdul-hamid-achik/collectspec/packages/scenarios"
	"github.com/abdul-hamid-achik/collectspec/packages/testenv"
)

const (
	// DefaultConcurrency is the default number of concurrent cases in parallel mode
	DefaultConcurrency = 2
	// DefaultRetryDelay is the default delay between attempts of a failing case
	DefaultRetryDelay = time.Second
)

// Skip reasons
const (
	SkipFiltered  = "filtered out"
	SkipBail      = "bail after failure"
	SkipCancelled = "cancelled"
)

type Runner struct {
	config  *Config
	invoker fixture.Invoker
	paths   fixture.PathProvider
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Config struct {
	// Command launches the runner; the first element is the executable
	Command []string
	Env     []string
	Timeout time.Duration // per invocation

	Environment testenv.Environment
	TempDir     string // root for results directories, os.TempDir when empty

	Parallel    bool
	Concurrency int
	Rate        float64 // case launches per second in parallel mode, 0 means unlimited
	Bail        bool

	NameFilter    string
	RunnerFilter  []string
	TargetFilter  []string
	Retries       int
	RetryDelay    time.Duration
	KeepResults   bool
	Before, After []string // shell commands run around the whole matrix
	HookDir       string

	// Invoker replaces the invoker built from Command
	Invoker fixture.Invoker
	Logger  *slog.Logger
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	inv := cfg.Invoker
	if inv == nil {
		inv = capture.NewInvoker(cfg.Command,
			capture.WithEnv(cfg.Env),
			capture.WithTimeout(cfg.Timeout),
			capture.WithLogger(logger))
	}

	paths := fixture.OSTempDir
	if cfg.TempDir != "" {
		dir := cfg.TempDir
		paths = fixture.PathProviderFunc(func() string { return dir })
	}

	r := &Runner{
		config:  cfg,
		invoker: inv,
		paths:   paths,
		logger:  logger,
	}
	if cfg.Parallel && cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return r
}

type RunResult struct {
	Results  []*CaseResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
	Timings  TimingSummary
}

// CaseResult is one scenario run under one runner combination
type CaseResult struct {
	*scenarios.Outcome
	Skipped    bool
	SkipReason string
	Attempts   int
	ResultsDir string // set when results are kept
}

func skipped(c Case, reason string) *CaseResult {
	return &CaseResult{
		Outcome:    &scenarios.Outcome{Scenario: c.Scenario.Name, Runner: c.Runner},
		Skipped:    true,
		SkipReason: reason,
	}
}

// Run expands list into cases and runs every case that passes the filters.
// Before hooks run first and abort the run on failure; after hooks always
// run once the cases are done.
func (r *Runner) Run(ctx context.Context, list []scenarios.Scenario) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{}

	if err := r.executePreHooks(ctx); err != nil {
		return nil, err
	}

	// results keep expansion order, filtered cases included
	all := Expand(list)
	result.Results = make([]*CaseResult, len(all))
	var (
		toRun []Case
		slots []int
	)
	for i, c := range all {
		if !r.shouldRun(c) {
			result.Results[i] = skipped(c, SkipFiltered)
			continue
		}
		toRun = append(toRun, c)
		slots = append(slots, i)
	}

	var results []*CaseResult
	if r.config.Parallel {
		results = r.runParallel(ctx, toRun)
	} else {
		results = r.runSequential(ctx, toRun)
	}
	for i, cr := range results {
		result.Results[slots[i]] = cr
	}

	timings := NewTimings()
	for _, cr := range result.Results {
		switch {
		case cr.Skipped:
			result.Skipped++
		case cr.Passed():
			result.Passed++
			timings.Record(cr.Duration)
		default:
			result.Failed++
			timings.Record(cr.Duration)
		}
	}
	result.Timings = timings.Summary()
	result.Duration = time.Since(start)

	r.logger.Info("run finished",
		"passed", result.Passed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", result.Duration)

	if err := r.executePostHooks(ctx); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Runner) runSequential(ctx context.Context, cases []Case) []*CaseResult {
	results := make([]*CaseResult, 0, len(cases))
	for i, c := range cases {
		if ctx.Err() != nil {
			for _, rest := range cases[i:] {
				results = append(results, skipped(rest, SkipCancelled))
			}
			break
		}

		cr := r.runCase(ctx, c)
		results = append(results, cr)

		if r.config.Bail && !cr.Passed() {
			for _, rest := range cases[i+1:] {
				results = append(results, skipped(rest, SkipBail))
			}
			break
		}
	}
	return results
}

func (r *Runner) runParallel(ctx context.Context, cases []Case) []*CaseResult {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*CaseResult, len(cases))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, c := range cases {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				results[i] = skipped(c, SkipCancelled)
				continue
			}
		}
		if ctx.Err() != nil {
			results[i] = skipped(c, SkipCancelled)
			continue
		}

		i, c := i, c
		// blocks while concurrency cases are in flight
		g.Go(func() error {
			results[i] = r.runCase(ctx, c)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// runCase runs c with a fresh fixture per attempt, retrying failures up to
// the configured count.
func (r *Runner) runCase(ctx context.Context, c Case) *CaseResult {
	retryDelay := r.config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	env := r.config.Environment.For(c.Runner)
	cr := &CaseResult{}

	for attempt := 0; attempt <= r.config.Retries; attempt++ {
		f := fixture.New(
			fixture.WithPathProvider(r.paths),
			fixture.WithInvoker(r.invoker),
			fixture.WithLogger(r.logger))

		cr.Outcome = c.Scenario.Run(ctx, env, f)
		cr.Attempts = attempt + 1
		r.finish(f, cr)

		if cr.Passed() || ctx.Err() != nil {
			break
		}

		r.logger.Warn("case failed", "case", cr.Name(), "attempt", cr.Attempts, "error", cr.Err)
		if attempt < r.config.Retries {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return cr
			}
		}
	}
	return cr
}

func (r *Runner) finish(f *fixture.Fixture, cr *CaseResult) {
	if r.config.KeepResults {
		cr.ResultsDir = f.ResultsDir()
		return
	}
	if err := f.Cleanup(); err != nil {
		r.logger.Warn("cleaning up results", "case", cr.Name(), "error", fmt.Sprint(err))
	}
}
