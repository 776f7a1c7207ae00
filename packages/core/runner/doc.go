// Package runner executes the scenario matrix.
//
// It provides functionality for:
//   - Expanding scenarios into one case per runner combination
//   - Filtering cases by scenario name, runner framework and target framework
//   - Sequential execution with bail, or parallel execution with bounded
//     concurrency and paced launches
//   - Retrying failing cases with a fresh fixture per attempt
//   - Before and after shell hooks around the whole run
//   - Case duration percentiles
//
// Every case gets its own fixture, so results directories never collide;
// they are removed after each attempt unless KeepResults is set.
package runner
