// Package env builds the environment handed to the test runner process.
//
// Variables come from .env files and the config's env map, in that order.
// Values may reference earlier variables or the OS environment with
// $VAR or ${VAR}.
package env
