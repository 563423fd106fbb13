// Package validate checks form input before it is sent to the server.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	FieldName            = "name"
	FieldPhoneNumber     = "phoneNumber"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldNewPassword     = "newPassword"
)

const (
	minPassword = 6
	maxPassword = 100
	maxName     = 50
	strongFrom  = 10
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	phoneNoise   = strings.NewReplacer(" ", "", "\t", "", "(", "", ")", "", "-", "")
)

// Result maps field names to the first problem found with them.
type Result struct {
	Errors map[string]string
	order  []string
}

func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Error returns the message for field, or "".
func (r Result) Error(field string) string {
	return r.Errors[field]
}

// Summary joins every message in field order.
func (r Result) Summary() string {
	msgs := make([]string, 0, len(r.order))
	for _, f := range r.order {
		msgs = append(msgs, r.Errors[f])
	}
	return Format(msgs)
}

func (r *Result) check(field, msg string) {
	if msg == "" {
		return
	}
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[field] = msg
	r.order = append(r.order, field)
}

func Password(password string) string {
	n := utf8.RuneCountInString(password)
	switch {
	case password == "":
		return "Password is required"
	case n < minPassword:
		return "Password must be at least 6 characters"
	case n > maxPassword:
		return "Password must not exceed 100 characters"
	}
	return ""
}

// PhoneNumber accepts 10 to 15 digits with an optional leading plus, ignoring
// spaces, parentheses and dashes.
func PhoneNumber(phone string) string {
	if phone == "" {
		return "Phone number is required"
	}
	if !phonePattern.MatchString(CleanPhone(phone)) {
		return "Invalid phone number format"
	}
	return ""
}

// CleanPhone strips the separators PhoneNumber tolerates.
func CleanPhone(phone string) string {
	return phoneNoise.Replace(phone)
}

func Name(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Name is required"
	}
	if utf8.RuneCountInString(name) > maxName {
		return "Name must not exceed 50 characters"
	}
	return ""
}

func PasswordMatch(password, confirm string) string {
	if confirm == "" {
		return "Please confirm your password"
	}
	if password != confirm {
		return "Passwords do not match"
	}
	return ""
}

func LoginForm(phone, password string) Result {
	var r Result
	r.check(FieldPhoneNumber, PhoneNumber(phone))
	r.check(FieldPassword, Password(password))
	return r
}

func SignupForm(name, phone, password, confirm string) Result {
	var r Result
	r.check(FieldName, Name(name))
	r.check(FieldPhoneNumber, PhoneNumber(phone))
	r.check(FieldPassword, Password(password))
	r.check(FieldConfirmPassword, PasswordMatch(password, confirm))
	return r
}

func ResetForm(phone, newPassword string) Result {
	var r Result
	r.check(FieldPhoneNumber, PhoneNumber(phone))
	r.check(FieldNewPassword, Password(newPassword))
	return r
}

type Strength int

const (
	Weak Strength = iota
	Medium
	Strong
)

func (s Strength) String() string {
	switch s {
	case Medium:
		return "medium"
	case Strong:
		return "strong"
	default:
		return "weak"
	}
}

// PasswordStrength grades password by length and says whether it would pass
// Password.
func PasswordStrength(password string) (Strength, string, bool) {
	n := utf8.RuneCountInString(password)
	switch {
	case password == "":
		return Weak, "Password is required", false
	case n < minPassword:
		return Weak, "Password must be at least 6 characters", false
	case n < strongFrom:
		return Medium, "Password meets minimum requirements", true
	}
	return Strong, "Strong password", true
}

// Format joins messages for a one-line display.
func Format(msgs []string) string {
	return strings.Join(msgs, ". ")
}
