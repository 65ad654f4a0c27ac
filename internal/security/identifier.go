package security

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRegex matches safe SQL identifiers: alphanumeric and underscore,
// starting with a letter or underscore.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateIdentifier checks that an identifier (table or column name) is safe
// to interpolate into a SQL statement. Identifiers cannot be bound as query
// parameters, so anything interpolated must be validated first.
// identifierType is used in error messages ("table name", "column name").
func ValidateIdentifier(identifier string, identifierType string) error {
	if len(identifier) == 0 {
		return fmt.Errorf("%s cannot be empty", identifierType)
	}
	if len(identifier) > 255 {
		return fmt.Errorf("%s too long (%d characters, max 255): %s", identifierType, len(identifier), identifier)
	}
	if !identifierRegex.MatchString(identifier) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric and underscore allowed, must start with letter or underscore): %s", identifierType, identifier)
	}
	// Reserved words are fine: identifiers are always backtick-quoted.
	return nil
}

// EscapeIdentifier quotes an identifier with backticks, doubling any embedded
// backticks. Backtick quoting is accepted by SQLite, MySQL and ClickHouse.
func EscapeIdentifier(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "`", "``")
	return fmt.Sprintf("`%s`", escaped)
}

// ValidateAndEscapeIdentifier validates an identifier and returns its quoted
// form ready for SQL interpolation.
func ValidateAndEscapeIdentifier(identifier string, identifierType string) (string, error) {
	if err := ValidateIdentifier(identifier, identifierType); err != nil {
		return "", err
	}
	return EscapeIdentifier(identifier), nil
}
