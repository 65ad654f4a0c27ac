package config

import (
	"fmt"
	"os"
	"regexp"
)

// envRefPattern matches ${VAR}, $VAR, ${VAR:-default} and ${VAR:?message}
// references inside the raw config document.
var envRefPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)(?:(:[-?])([^}]*))?\}|\$([a-zA-Z_][a-zA-Z0-9_]*)`)

// expandEnvWithDefaults substitutes environment variable references in input.
// Supported forms:
//   - ${VAR} / $VAR: value of VAR, empty string if unset
//   - ${VAR:-default}: "default" when VAR is unset or empty
//   - ${VAR:?message}: expansion fails with message when VAR is unset or empty
func expandEnvWithDefaults(input string) (string, error) {
	var firstErr error

	expanded := envRefPattern.ReplaceAllStringFunc(input, func(ref string) string {
		if firstErr != nil {
			return ref
		}
		value, err := resolveEnvRef(ref)
		if err != nil {
			firstErr = err
			return ref
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return expanded, nil
}

// resolveEnvRef resolves a single matched reference to its substitution value.
func resolveEnvRef(ref string) (string, error) {
	groups := envRefPattern.FindStringSubmatch(ref)
	if groups == nil {
		return ref, nil
	}

	name, op, operand := groups[1], groups[2], groups[3]
	if groups[4] != "" {
		// shorthand $VAR form
		name = groups[4]
	}

	value := os.Getenv(name)

	switch op {
	case ":-":
		if value == "" {
			return operand, nil
		}
		return value, nil
	case ":?":
		if value == "" {
			if operand != "" {
				return "", fmt.Errorf("environment variable %s is required: %s", name, operand)
			}
			return "", fmt.Errorf("environment variable %s is required but not set", name)
		}
		return value, nil
	default:
		return value, nil
	}
}
