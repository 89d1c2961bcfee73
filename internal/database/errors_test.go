package database

import (
	"errors"
	"testing"
)

func TestUnavailableWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable(cause)

	if !errors.Is(err, ErrUnavailable) {
		t.Error("wrapped error does not match ErrUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error lost its cause")
	}
}
