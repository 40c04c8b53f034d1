// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/username/hermes/backend/src/logger"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxItemIDLength        = 32
	MaxTitleLength         = 255
	MaxSourceIDLength      = 100
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateStringRegex checks if a string matches a given regex pattern.
func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s ('%s') is not in the expected format (%s)", ErrValidationFailed, fieldName, s, formatDescription)
	}
	return nil
}

// ValidateFloat checks a parsed number against a range.
func ValidateFloat(val float64, fieldName string, allowNegative bool, minVal, maxVal float64) error {
	if !allowNegative && val < 0 {
		logger.L.Warn("Negative value not allowed for field", "field", fieldName, "value", val)
		return fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	if val < minVal || val > maxVal {
		logger.L.Warn("Float value out of range", "field", fieldName, "value", val, "min", minVal, "max", maxVal)
		return fmt.Errorf("%w: %s must be between %.2f and %.2f, got %.2f", ErrValidationFailed, fieldName, minVal, maxVal, val)
	}
	return nil
}

// ValidateFloatString parses a string to float and checks if it's within a range.
// An empty string is 0.
func ValidateFloatString(s, fieldName string, allowNegative bool, minVal, maxVal float64) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, nil
	}
	val, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s ('%s') is not a valid number: %v", ErrValidationFailed, fieldName, s, err)
	}
	if err := ValidateFloat(val, fieldName, allowNegative, minVal, maxVal); err != nil {
		return 0, err
	}
	return val, nil
}

// ValidateInt checks an integer against a range. Zero is rejected when allowZero is false.
func ValidateInt(val int, fieldName string, allowNegative, allowZero bool, minVal, maxVal int) error {
	if !allowNegative && val < 0 {
		logger.L.Warn("Negative value not allowed for field", "field", fieldName, "value", val)
		return fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	if !allowZero && val == 0 {
		return fmt.Errorf("%w: %s cannot be zero", ErrValidationFailed, fieldName)
	}
	if val < minVal || val > maxVal {
		logger.L.Warn("Integer value out of range", "field", fieldName, "value", val, "min", minVal, "max", maxVal)
		return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrValidationFailed, fieldName, minVal, maxVal, val)
	}
	return nil
}

// ValidateDateString checks if a string is a valid date in "YYYY-MM-DD" format, parsed in loc.
func ValidateDateString(s, fieldName string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", trimmed, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is not a valid date (expected YYYY-MM-DD): %v", ErrValidationFailed, fieldName, s, err)
	}
	return t, nil
}

var (
	itemIDRegex   = regexp.MustCompile(`^[A-Z]{3}[0-9]{1,20}$`)
	sourceIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateItemID checks a marketplace listing id such as MLB1234567890.
func ValidateItemID(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "Item ID"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(trimmed, MaxItemIDLength, "Item ID"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, itemIDRegex, "Item ID", "site prefix followed by digits, e.g. MLB123")
}

// ValidateSourceID checks the optional external reference of a purchase.
func ValidateSourceID(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if err := ValidateStringMaxLength(trimmed, MaxSourceIDLength, "Source ID"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, sourceIDRegex, "Source ID", "alphanumeric with hyphens/underscores")
}

// ValidateTitle rejects titles that are too long or carry markup or formulas.
func ValidateTitle(s, contextID string) error {
	if err := ValidateStringMaxLength(s, MaxTitleLength, "Title"); err != nil {
		return err
	}
	if err := CheckXSSPatterns(s, "Title", contextID); err != nil {
		return err
	}
	return CheckFormulaInjection(s, "Title", contextID)
}
