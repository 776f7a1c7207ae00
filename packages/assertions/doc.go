// Package assertions checks runner output.
//
// Supported assertions:
//   - Substring checks on standard output and standard error
//   - Runner summary line checks (passed, failed and skipped counts)
//   - Exit code and generic equality checks
//
// Output is treated as opaque text: every check is a literal substring or a
// simple pattern, never a structured parse.
package assertions
