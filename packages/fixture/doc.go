// Package fixture drives one runner invocation per test case and verifies
// its externally observable effects.
//
// A case is a straight line: write configuration, build arguments, invoke
// the runner, assert. Every fixture allocates its own results directory and
// run-settings paths from an injected PathProvider and IDGenerator, so
// fixtures running concurrently never share files. Cleanup removes
// everything the fixture allocated and is safe to call when nothing exists.
package fixture
