package database

import "errors"

// ErrUnavailable marks a transient credential store failure. Callers
// decide per operation whether it is surfaced or swallowed; see the
// session check flow, which keeps the local session on transient
// failures instead of flapping users out.
var ErrUnavailable = errors.New("store unavailable")

// Unavailable tags err as a transient store failure while keeping the
// original chain intact for errors.Is/As.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrUnavailable, err)
}
