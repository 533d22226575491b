package config

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means the configuration file is missing or could
	// not be read. Resolvers report an empty topology alongside it.
	ErrSourceUnavailable = errors.New("configuration source unavailable")

	// ErrMalformedEntry means an entry of the configuration file could not
	// be decoded.
	ErrMalformedEntry = errors.New("malformed configuration entry")
)

// EntryError describes a configuration entry that could not be decoded.
type EntryError struct {
	Key   string
	Value string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("malformed configuration entry %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Is matches ErrMalformedEntry.
func (e *EntryError) Is(target error) bool { return target == ErrMalformedEntry }
