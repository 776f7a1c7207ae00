package config

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/abdul-hamid-achik/collectspec/packages/testenv"
)

// DefaultConfig is used for every field a config file leaves out
func DefaultConfig() *Config {
	return &Config{
		RunnerCommand:      "vstest.console",
		TestAssetsPath:     "TestAssets",
		BuildConfiguration: testenv.DefaultBuildConfiguration,
		Timeout:            300000, // 5 minutes
		RetryDelay:         1000, // 1 second
		Reporters:          []string{"console"},
		Concurrency:        2,
		Parallel:           BoolPtr(false),
		Bail:               BoolPtr(false),
		KeepResults:        BoolPtr(false),
		Verbose:            BoolPtr(false),
		NoColor:            BoolPtr(false),
	}
}

// IsDefault reports whether c carries nothing beyond the built-in
// defaults. Where the config was loaded from does not count; nil and empty
// lists compare equal.
func (c *Config) IsDefault() bool {
	return cmp.Equal(c, DefaultConfig(),
		cmpopts.IgnoreUnexported(Config{}),
		cmpopts.EquateEmpty(),
	)
}
