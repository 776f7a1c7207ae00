package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{
			name:     "single variable",
			content:  "VSTEST_HOST_DEBUG=0",
			expected: map[string]string{"VSTEST_HOST_DEBUG": "0"},
		},
		{
			name:    "several variables",
			content: "KEY1=value1\nKEY2=value2\nKEY3=value3",
			expected: map[string]string{
				"KEY1": "value1",
				"KEY2": "value2",
				"KEY3": "value3",
			},
		},
		{
			name:     "double quoted value",
			content:  `DOTNET_ROOT="/opt/dotnet sdk"`,
			expected: map[string]string{"DOTNET_ROOT": "/opt/dotnet sdk"},
		},
		{
			name:     "single quoted value keeps hash",
			content:  `NOTE='a # b'`,
			expected: map[string]string{"NOTE": "a # b"},
		},
		{
			name:     "comment lines",
			content:  "# This is a comment\nKEY=value",
			expected: map[string]string{"KEY": "value"},
		},
		{
			name:     "export prefix",
			content:  "export DOTNET_CLI_TELEMETRY_OPTOUT=1",
			expected: map[string]string{"DOTNET_CLI_TELEMETRY_OPTOUT": "1"},
		},
		{
			name:     "surrounding blanks",
			content:  "  KEY  =  value  ",
			expected: map[string]string{"KEY": "value"},
		},
		{
			name:     "equals inside value",
			content:  "LOGGER=console;verbosity=normal",
			expected: map[string]string{"LOGGER": "console;verbosity=normal"},
		},
		{
			name:     "inline comment stripped",
			content:  "KEY=value # trailing",
			expected: map[string]string{"KEY": "value"},
		},
		{
			name:     "lines without key skipped",
			content:  "=value\nnot a pair\nBAD KEY=x",
			expected: map[string]string{},
		},
		{
			name:     "nothing to read",
			content:  "",
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := LoadDotEnv(writeEnvFile(t, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadDotEnvFileNotFound(t *testing.T) {
	_, err := LoadDotEnv("/nonexistent/path/.env")
	assert.ErrorContains(t, err, "cannot open env file")
}
