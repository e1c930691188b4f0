// Package validation provides centralized input validation for names that
// end up in SQL text.
package validation

import (
	"fmt"
	"strings"
)

// =============================================================================
// Name Validation
// =============================================================================

// MaxIdentifierLength bounds table names. Longer names are legal in DuckDB
// but not in most other engines the tables may be copied to.
const MaxIdentifierLength = 63

// partitionSuffixLength is the width of the "YYYYMMDDHH" table suffix.
const partitionSuffixLength = 10

// NameRules defines the validation rules for a name.
type NameRules struct {
	MinLength int
	MaxLength int

	// AllowDigitFirst permits a leading digit.
	AllowDigitFirst bool
}

// IdentifierRules returns the rules for a complete table name.
func IdentifierRules() NameRules {
	return NameRules{
		MinLength: 1,
		MaxLength: MaxIdentifierLength,
	}
}

// PrefixRules returns the rules for a partition table prefix. The prefix
// leaves room for the hour suffix.
func PrefixRules() NameRules {
	return NameRules{
		MinLength: 1,
		MaxLength: MaxIdentifierLength - partitionSuffixLength,
	}
}

// ValidateName validates a name according to the given rules.
// Only ASCII letters, digits and underscores are accepted.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required", rules.MinLength)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed", rules.MaxLength)
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d", i)
		}
		if i == 0 && isDigit(r) && !rules.AllowDigitFirst {
			return fmt.Errorf("name cannot start with a digit")
		}
		if !isAllowedNameChar(r) {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}

	return nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isAllowedNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || isDigit(r) || r == '_'
}

// ValidateIdentifier validates a table name.
func ValidateIdentifier(name string) error {
	return ValidateName(name, IdentifierRules())
}

// ValidatePartitionPrefix validates a partition table prefix.
func ValidatePartitionPrefix(prefix string) error {
	return ValidateName(prefix, PrefixRules())
}

// =============================================================================
// SQL LIKE Helpers
// =============================================================================

// EscapeLikePattern escapes the LIKE metacharacters %, _ and \ so that
// pattern matches literally. Use with ESCAPE '\'.
func EscapeLikePattern(pattern string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(pattern)
}

// SafeLikePrefix returns a LIKE pattern matching strings that start with prefix.
func SafeLikePrefix(prefix string) string {
	return EscapeLikePattern(prefix) + "%"
}
