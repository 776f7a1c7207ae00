package env

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Pair is one KEY=value line of a .env file
type Pair struct {
	Key   string
	Value string
}

// ReadDotEnv reads KEY=value lines from a .env file in file order. Values
// may be single or double quoted; unquoted values end at a " #" comment. An
// optional leading "export " is ignored. Nothing is exported to the process
// environment.
func ReadDotEnv(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer f.Close()

	var pairs []Pair
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if key, value, ok := parseDotEnvLine(sc.Text()); ok {
			pairs = append(pairs, Pair{Key: key, Value: value})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return pairs, nil
}

// LoadDotEnv is ReadDotEnv collapsed into a map; a repeated key keeps its
// last value.
func LoadDotEnv(path string) (map[string]string, error) {
	pairs, err := ReadDotEnv(path)
	if err != nil {
		return nil, err
	}
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		vars[p.Key] = p.Value
	}
	return vars, nil
}

// parseDotEnvLine returns ok=false for blanks, comments and malformed lines
func parseDotEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return "", "", false
	}
	line, _ = strings.CutPrefix(line, "export ")

	key, value, ok = strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	return key, unquote(strings.TrimSpace(value)), true
}

func unquote(v string) string {
	if n := len(v); n >= 2 && (v[0] == '"' || v[0] == '\'') && v[n-1] == v[0] {
		return v[1 : n-1]
	}
	if before, _, found := strings.Cut(v, " #"); found {
		return strings.TrimSpace(before)
	}
	return v
}
