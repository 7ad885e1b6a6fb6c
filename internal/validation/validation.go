// Package validation provides the pure field validators for the intake
// dialogue. Each validator takes raw text and returns the value to store
// plus an error describing the rejection; validators keep no state and have
// no side effects.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/IntakeRelay/internal/models"
)

// Bounds for the coarse birth-date range check.
const (
	MinBirthYear = 1900
)

var (
	nameRegex  = regexp.MustCompile(`^[А-Яа-яЁё]+$`)
	dateRegex  = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})$`)
	digitRegex = regexp.MustCompile(`\D`)
)

// PhoneRule configures the strict phone validator: a fixed country-code
// prefix followed by a fixed count of digits.
type PhoneRule struct {
	Prefix string // e.g. "+7"
	Digits int    // digit count after the prefix
	// Lenient switches to the lenient variant: strip non-digits and accept
	// any input with at least MinLenientDigits digits, storing the raw text.
	Lenient bool
}

// MinLenientDigits is the minimum digit count for the lenient phone variant.
const MinLenientDigits = 10

// DefaultPhoneRule matches the production form: +7 followed by 10 digits.
var DefaultPhoneRule = PhoneRule{Prefix: "+7", Digits: 10}

// NameToken validates a single name part (last name, first name,
// patronymic): trimmed input of Cyrillic letters only, no internal
// whitespace, length at least one. Returns the trimmed value.
func NameToken(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", models.ErrEmptyName
	}
	if !nameRegex.MatchString(trimmed) {
		return "", models.ErrNameNotAlphabetic
	}
	return trimmed, nil
}

// BirthDate validates a DD.MM.YYYY date with coarse range checks: day in
// 1..31, month in 1..12, year in MinBirthYear..current year. Day-in-month
// and leap-year refinement are deliberately not performed; the plain range
// check matches the form's accepted behavior.
func BirthDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	m := dateRegex.FindStringSubmatch(trimmed)
	if m == nil {
		return "", models.ErrBadDateShape
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return "", models.ErrDateOutOfRange
	}
	if year < MinBirthYear || year > time.Now().Year() {
		return "", models.ErrDateOutOfRange
	}
	return trimmed, nil
}

// Phone validates a contact phone according to the rule. The strict variant
// requires the exact prefix followed by exactly rule.Digits digits and
// stores the trimmed input. The lenient variant strips all non-digit
// characters, requires at least MinLenientDigits digits, and stores the
// original raw text.
func Phone(raw string, rule PhoneRule) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if rule.Lenient {
		digits := digitRegex.ReplaceAllString(trimmed, "")
		if len(digits) < MinLenientDigits {
			return "", models.ErrBadPhone
		}
		return raw, nil
	}
	rest, ok := strings.CutPrefix(trimmed, rule.Prefix)
	if !ok {
		return "", fmt.Errorf("missing %s prefix: %w", rule.Prefix, models.ErrBadPhone)
	}
	if len(rest) != rule.Digits {
		return "", models.ErrBadPhone
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return "", models.ErrBadPhone
		}
	}
	return trimmed, nil
}

// FreeText accepts any input. The skip trigger maps to an empty value.
func FreeText(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == models.TriggerSkip {
		return "", nil
	}
	return trimmed, nil
}
