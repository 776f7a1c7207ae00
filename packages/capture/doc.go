// Package capture launches the runner as a subprocess and captures its
// exit code, standard output and standard error.
//
// Captured text is normalized (ANSI escapes removed, CRLF folded to LF) but
// otherwise kept opaque; callers assert on literal substrings.
package capture
