package domain

import (
	"errors"
	"strings"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// FetchError represents a failure of an ingestion source (network, HTTP or parse).
type FetchError struct {
	Source    SourceKind // Source that failed
	Op        string     // Operation that failed (e.g., "request", "decode")
	Err       error      // Underlying error
	Retriable bool       // Whether this error is retriable
}

func (e *FetchError) Error() string {
	return "fetch " + string(e.Source) + " " + e.Op + ": " + e.Err.Error()
}

func (e *FetchError) IsRetriable() bool {
	return e.Retriable
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new retriable fetch error
func NewFetchError(source SourceKind, op string, err error) *FetchError {
	return &FetchError{Source: source, Op: op, Err: err, Retriable: true}
}

// NewFatalFetchError creates a non-retriable fetch error
func NewFatalFetchError(source SourceKind, op string, err error) *FetchError {
	return &FetchError{Source: source, Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError reports a caller-supplied parameter that violates a precondition.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + " " + strings.TrimSpace(e.Value) + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NotFoundError lists the lookup keys that matched nothing.
type NotFoundError struct {
	Names []string
}

func (e *NotFoundError) Error() string {
	return "not found in current dataset: " + strings.Join(e.Names, ", ")
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

var (
	// ErrNoData is returned when a source yields an empty snapshot.
	ErrNoData = errors.New("no data available")

	// ErrNotFound is returned when a well-formed query matches no row.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCoinName is returned for coin names outside 3-10 characters or containing digits.
	ErrInvalidCoinName = errors.New("coin name must be 3-10 characters and contain no numbers")

	// ErrOutsideWorkingHours is returned when a gated view is requested outside working hours.
	ErrOutsideWorkingHours = errors.New("please open in working hours")

	// ErrUnknownSource is returned for an unsupported source kind. Not retriable.
	ErrUnknownSource = errors.New("unknown source kind")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
