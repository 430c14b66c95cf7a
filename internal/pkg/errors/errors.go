package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
	ErrBusy         = errors.New("busy")
	ErrCorrupted    = errors.New("corpus file corrupted")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
