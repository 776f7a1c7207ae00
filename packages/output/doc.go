// Package output renders run results for people and for CI systems.
//
// The console reporter prints a line per case and a go-pretty summary
// table. The json, junit and tap reporters buffer every case and write a
// single document when Flush is called; they implement Flushable.
package output
