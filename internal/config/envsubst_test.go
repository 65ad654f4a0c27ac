package config

import (
	"os"
	"strings"
	"testing"
)

func TestExpandEnvWithDefaults(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		envVars     map[string]string
		expected    string
		expectError bool
		errorMsg    string
	}{
		{
			name:     "standard ${VAR} expansion",
			input:    "table: ${TEST_TABLE}",
			envVars:  map[string]string{"TEST_TABLE": "large_table"},
			expected: "table: large_table",
		},
		{
			name:     "shorthand $VAR expansion",
			input:    "table: $TEST_TABLE",
			envVars:  map[string]string{"TEST_TABLE": "large_table"},
			expected: "table: large_table",
		},
		{
			name:     "unset variable expands to empty string",
			input:    "dsn: ${UNSET_VAR}",
			envVars:  map[string]string{},
			expected: "dsn: ",
		},
		{
			name:     "default value when var is unset",
			input:    "dsn: ${TEST_DSN:-./test.db}",
			envVars:  map[string]string{},
			expected: "dsn: ./test.db",
		},
		{
			name:     "default value when var is empty",
			input:    "dsn: ${TEST_DSN:-./test.db}",
			envVars:  map[string]string{"TEST_DSN": ""},
			expected: "dsn: ./test.db",
		},
		{
			name:     "default value not used when var is set",
			input:    "dsn: ${TEST_DSN:-./test.db}",
			envVars:  map[string]string{"TEST_DSN": "/data/prod.db"},
			expected: "dsn: /data/prod.db",
		},
		{
			name:     "required variable when set",
			input:    "license: ${NR_LICENSE:?APM license key is required}",
			envVars:  map[string]string{"NR_LICENSE": "abc123"},
			expected: "license: abc123",
		},
		{
			name:        "required variable when unset with message",
			input:       "license: ${NR_LICENSE:?APM license key is required}",
			envVars:     map[string]string{},
			expectError: true,
			errorMsg:    "APM license key is required",
		},
		{
			name:        "required variable when unset without message",
			input:       "license: ${NR_LICENSE:?}",
			envVars:     map[string]string{},
			expectError: true,
			errorMsg:    "required but not set",
		},
		{
			name:  "multiple variables in one string",
			input: "${DB_USER}:${DB_PASS}@tcp(${DB_HOST})/bulk",
			envVars: map[string]string{
				"DB_USER": "admin",
				"DB_PASS": "secret",
				"DB_HOST": "localhost:3306",
			},
			expected: "admin:secret@tcp(localhost:3306)/bulk",
		},
		{
			name:     "no variables passthrough",
			input:    "table: large_table\nport: 8000",
			envVars:  map[string]string{},
			expected: "table: large_table\nport: 8000",
		},
		{
			name:     "default value with special characters",
			input:    "dsn: ${CH_DSN:-clickhouse://localhost:9000/default?dial_timeout=1s}",
			envVars:  map[string]string{},
			expected: "dsn: clickhouse://localhost:9000/default?dial_timeout=1s",
		},
		{
			name:     "adjacent variables",
			input:    "${PREFIX}${SUFFIX}",
			envVars:  map[string]string{"PREFIX": "bulk", "SUFFIX": "stream"},
			expected: "bulkstream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"TEST_TABLE", "TEST_DSN", "UNSET_VAR", "NR_LICENSE", "DB_USER", "DB_PASS", "DB_HOST", "CH_DSN", "PREFIX", "SUFFIX"} {
				os.Unsetenv(key)
			}
			for key, value := range tt.envVars {
				os.Setenv(key, value)
				defer os.Unsetenv(key)
			}

			result, err := expandEnvWithDefaults(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
					return
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("got %q, want %q", result, tt.expected)
			}
		})
	}
}
