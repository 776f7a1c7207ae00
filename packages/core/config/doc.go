// Package config reads collectspec.yaml (or its JSON twin) and turns it
// into a runner configuration.
//
// Files are checked against an embedded JSON schema before decoding, so a
// misspelled key is an error rather than a silently ignored setting. Fields
// a file leaves out keep the values from DefaultConfig, and command-line
// overrides are layered on with Merge.
package config
