package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/collectspec/packages/assertions"
	"github.com/abdul-hamid-achik/collectspec/packages/capture"
	"github.com/abdul-hamid-achik/collectspec/packages/core/arguments"
	"github.com/abdul-hamid-achik/collectspec/packages/runsettings"
)

// DiagFileName is the /Diag file name inside the results directory
const DiagFileName = "diaglog.txt"

// PathProvider returns the root under which per-case paths are allocated
type PathProvider interface {
	TempDir() string
}

// IDGenerator returns identifiers unique across concurrent fixtures
type IDGenerator interface {
	NewID() string
}

// PathProviderFunc adapts a function to PathProvider
type PathProviderFunc func() string

func (f PathProviderFunc) TempDir() string { return f() }

// IDGeneratorFunc adapts a function to IDGenerator
type IDGeneratorFunc func() string

func (f IDGeneratorFunc) NewID() string { return f() }

// OSTempDir allocates paths under os.TempDir
var OSTempDir PathProvider = PathProviderFunc(os.TempDir)

// UUIDs generates random UUIDs
var UUIDs IDGenerator = IDGeneratorFunc(uuid.NewString)

// Invoker runs the runner with the given arguments
type Invoker interface {
	Invoke(ctx context.Context, args []string) (*capture.Output, error)
}

// Fixture drives a single runner invocation and checks what it left behind.
// Each fixture owns a unique results directory and any run-settings files it
// writes; Cleanup removes them.
type Fixture struct {
	paths   PathProvider
	ids     IDGenerator
	invoker Invoker
	logger  *slog.Logger

	resultsDir string

	mu          sync.Mutex
	runSettings []string
	output      *capture.Output
}

type Option func(*Fixture)

// WithPathProvider overrides the temp root
func WithPathProvider(p PathProvider) Option {
	return func(f *Fixture) {
		f.paths = p
	}
}

// WithIDGenerator overrides identifier generation
func WithIDGenerator(g IDGenerator) Option {
	return func(f *Fixture) {
		f.ids = g
	}
}

// WithInvoker sets the runner used by Invoke
func WithInvoker(inv Invoker) Option {
	return func(f *Fixture) {
		f.invoker = inv
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(f *Fixture) {
		f.logger = l
	}
}

// New allocates a fresh results directory path. Nothing is created on disk.
func New(opts ...Option) *Fixture {
	f := &Fixture{
		paths:  OSTempDir,
		ids:    UUIDs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.resultsDir = filepath.Join(f.paths.TempDir(), f.ids.NewID())
	return f
}

// NewForTest is New with Cleanup registered on t, so the results directory
// is removed however the test ends.
func NewForTest(t testing.TB, opts ...Option) *Fixture {
	t.Helper()
	f := New(opts...)
	t.Cleanup(func() {
		if err := f.Cleanup(); err != nil {
			t.Errorf("fixture cleanup: %v", err)
		}
	})
	return f
}

// ResultsDir returns the per-fixture results directory
func (f *Fixture) ResultsDir() string {
	return f.resultsDir
}

// DiagPath returns the /Diag log path inside the results directory
func (f *Fixture) DiagPath() string {
	return filepath.Join(f.resultsDir, DiagFileName)
}

// Request describes one runner invocation
type Request struct {
	Assemblies  []string
	AdapterPath string // passed to Prepare ahead of the other switches
	RunSettings string
	Framework   string
	InIsolation string

	// Appended after the results and diag switches
	Collect         string
	TestAdapterPath string
}

// Arguments builds the command line for req. /ResultsDirectory and /Diag
// always point into this fixture's results directory.
func (f *Fixture) Arguments(req Request) arguments.CommandLine {
	cl := arguments.Prepare(req.Assemblies, req.AdapterPath, req.RunSettings, req.Framework, req.InIsolation).
		With(arguments.ResultsDirectory(f.resultsDir), arguments.Diag(f.DiagPath()))

	if req.Collect != "" {
		cl = cl.With(arguments.Collect(req.Collect))
	}
	if req.TestAdapterPath != "" {
		cl = cl.With(arguments.TestAdapterPath(req.TestAdapterPath))
	}
	return cl
}

// WriteRunSettings writes a run-settings file carrying attrs on its
// DataCollector element and returns its path. The file is removed by Cleanup.
func (f *Fixture) WriteRunSettings(attrs runsettings.Attributes) (string, error) {
	path := filepath.Join(f.paths.TempDir(), "test_"+f.ids.NewID()+".runsettings")
	if err := runsettings.New(attrs).WriteFile(path); err != nil {
		return "", err
	}

	f.mu.Lock()
	f.runSettings = append(f.runSettings, path)
	f.mu.Unlock()

	f.logger.Debug("wrote run settings", "path", path)
	return path, nil
}

// Invoke runs the runner and keeps its output for the Validate methods
func (f *Fixture) Invoke(ctx context.Context, cl arguments.CommandLine) (*capture.Output, error) {
	if f.invoker == nil {
		return nil, errors.New("fixture has no invoker")
	}

	f.logger.Info("invoking runner", "resultsDir", f.resultsDir, "args", cl.String())
	out, err := f.invoker.Invoke(ctx, cl.Args())

	f.mu.Lock()
	f.output = out
	f.mu.Unlock()

	if err != nil {
		return out, fmt.Errorf("invoking runner: %w", err)
	}
	return out, nil
}

// Output returns the output of the last invocation, or nil
func (f *Fixture) Output() *capture.Output {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.output
}

func (f *Fixture) evaluator() *assertions.Evaluator {
	return assertions.NewEvaluator(f.Output())
}

// ValidateSummaryStatus checks the runner's summary line
func (f *Fixture) ValidateSummaryStatus(passed, failed, skipped int) ([]*assertions.Result, error) {
	results := f.evaluator().SummaryStatus(passed, failed, skipped)
	return results, assertions.Failed(results)
}

// StdOutputContains checks standard output for substr
func (f *Fixture) StdOutputContains(substr string) *assertions.Result {
	return f.evaluator().StdoutContains(substr)
}

// StdErrorContains checks standard error for substr
func (f *Fixture) StdErrorContains(substr string) *assertions.Result {
	return f.evaluator().StderrContains(substr)
}

// Cleanup removes the results directory and any run-settings files. It can
// be called more than once, and succeeds when nothing was ever created.
func (f *Fixture) Cleanup() error {
	f.mu.Lock()
	files := f.runSettings
	f.runSettings = nil
	f.mu.Unlock()

	var errs []error
	if err := os.RemoveAll(f.resultsDir); err != nil {
		errs = append(errs, err)
	}
	for _, p := range files {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
