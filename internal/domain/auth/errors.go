package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when the username is unknown or the password does not match
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken is returned when sign-up reuses an existing username
	ErrUsernameTaken = errors.New("username already taken")
	// ErrAlreadyLoggedInElsewhere is returned when an active session exists on a different device
	ErrAlreadyLoggedInElsewhere = errors.New("already logged in elsewhere")
)
