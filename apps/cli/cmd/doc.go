// Package cmd implements the collectspec CLI commands using Cobra.
//
// Available commands:
//   - run: Run the data collection scenarios against the runner
//   - list: Show the scenarios and the runner combinations they run under
//   - validate: Check config and run settings files
//   - runsettings: Generate a run settings file for a data collector
//   - history: Show runs recorded in the history database
//   - init: Create a default configuration
//   - version: Show collectspec version information
//
// The run command supports filtering by name and framework, several
// report formats, parallel execution, retries and watch mode.
package cmd
