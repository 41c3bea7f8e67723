package utils

import (
	"net/mail"
	"regexp"
	"unicode/utf8"

	"github.com/gopolls-dev/gopolls/internal/domain"
)

const (
	UsernameMinLen = 3
	UsernameMaxLen = 19
	EmailMaxLen    = 64
	PasswordMinLen = 6
	PollNameMaxLen = 50
)

// alphanumeric runs with at most single hyphens between them
var validUsername = regexp.MustCompile(`^[a-zA-Z0-9]+(-[a-zA-Z0-9]+)*$`)

func IsEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

type UserValidator struct{}

func (v *UserValidator) Username(name string) *domain.ValidationError {
	errs := domain.NewValidationError()
	length := utf8.RuneCountInString(name)
	if length == 0 {
		errs.Add("username", "Username can't be blank")
	} else if length < UsernameMinLen {
		errs.Add("username", "Username is too short. Use at least 3 characters.")
	} else if length > UsernameMaxLen {
		errs.Add("username", "Username is too long. Limit it to 19 characters.")
	} else if !validUsername.MatchString(name) {
		errs.Add("username", "Username may only contain alphanumeric characters and hyphens between them")
	}
	return errs
}

func (v *UserValidator) Email(email string) *domain.ValidationError {
	errs := domain.NewValidationError()
	if email == "" {
		errs.Add("email", "Email can't be blank")
	} else if utf8.RuneCountInString(email) > EmailMaxLen {
		errs.Add("email", "Email address is unreasonable long. Limit it to 64 characters.")
	} else if !IsEmail(email) {
		errs.Add("email", "Not valid email address.")
	}
	return errs
}

func (v *UserValidator) Password(password, confirmation string) *domain.ValidationError {
	errs := domain.NewValidationError()
	if password == "" {
		errs.Add("password", "Password can't be blank")
	} else if utf8.RuneCountInString(password) < PasswordMinLen {
		errs.Add("password", "Password is too short. Use at least 6 characters.")
	}
	if password != confirmation {
		errs.Add("passwordConfirmation", "Password confirmation doesn't match.")
	}
	return errs
}

type PollValidator struct{}

func (v *PollValidator) Name(name string) *domain.ValidationError {
	errs := domain.NewValidationError()
	if name == "" {
		errs.Add("name", "Name can't be blank")
	} else if utf8.RuneCountInString(name) > PollNameMaxLen {
		errs.Add("name", "Name is too long")
	}
	return errs
}

func (v *PollValidator) OptionText(text string) *domain.ValidationError {
	errs := domain.NewValidationError()
	if text == "" {
		errs.Add("option", "Option text can't be blank")
	} else if utf8.RuneCountInString(text) > 200 {
		errs.Add("option", "Option text is too long")
	}
	return errs
}
