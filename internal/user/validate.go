package user

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	maxEmailLen      = 254
	minPasswordLen   = 8
	maxPasswordLen   = 128
	// bcrypt rejects longer input
	maxPasswordBytes = 72
	minNameLen       = 2
	maxNameLen       = 100
	minAge           = 13
	minBirthYear     = 1900
)

var (
	emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9](?:[a-z0-9\-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9\-]*[a-z0-9])?)*\.[a-z]{2,}$`)
	namePattern  = regexp.MustCompile(`^[\p{L}\p{M} '\-.]+$`)
)

var (
	ErrInvalidEmail = errors.New("Please provide a valid email address.")
	ErrWeakPassword = errors.New("Password must be 8-128 characters, at most 72 bytes, and include uppercase, lowercase, number and special character.")
	ErrInvalidName  = errors.New("Full name must be 2-100 characters and contain only letters, spaces, apostrophes, hyphens or periods.")
	ErrInvalidDate  = errors.New("Please provide a valid date of birth.")
	ErrFutureDate   = errors.New("Date of birth cannot be in the future.")
	ErrTooYoung     = errors.New("You must be at least 13 years old to register.")
)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks an already normalized email.
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLen || !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the password policy: 8-128 characters and no more
// than 72 bytes, with at least one lowercase letter, one uppercase letter, one
// digit and one symbol.
func ValidatePassword(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < minPasswordLen || n > maxPasswordLen || len(pw) > maxPasswordBytes {
		return ErrWeakPassword
	}
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !lower || !upper || !digit || !symbol {
		return ErrWeakPassword
	}
	return nil
}

// NormalizeName trims and collapses inner whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen || !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}

// ParseBirthDate builds a calendar date and checks it against now: it must
// exist, be from 1900 or later, not lie in the future, and make the user at
// least 13 years old.
func ParseBirthDate(day, month, year int, now time.Time) (time.Time, error) {
	if year < minBirthYear || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, ErrInvalidDate
	}
	dob := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow such as 31 February
	if dob.Day() != day || int(dob.Month()) != month || dob.Year() != year {
		return time.Time{}, ErrInvalidDate
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if dob.After(today) {
		return time.Time{}, ErrFutureDate
	}
	if dob.AddDate(minAge, 0, 0).After(today) {
		return time.Time{}, ErrTooYoung
	}
	return dob, nil
}

// FlexInt accepts a JSON number or a numeric string. Empty strings and null
// leave it unset.
type FlexInt struct {
	Value int
	Set   bool
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			// keep it set so validation reports an invalid date rather than a missing field
			f.Value, f.Set = -1, true
			return nil
		}
		f.Value, f.Set = v, true
		return nil
	}
	var v json.Number
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	i, err := v.Int64()
	if err != nil {
		f.Value, f.Set = -1, true
		return nil
	}
	f.Value, f.Set = int(i), true
	return nil
}
