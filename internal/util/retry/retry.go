package retry

import (
	"errors"
	"fmt"
)

// Kind is the retry class of an error.
type Kind int

const (
	// KindFatal is an unexpected failure; the pass aborts and the error surfaces.
	KindFatal Kind = iota
	// KindTransient is retried on the next pass.
	KindTransient
	// KindConfiguration is not retried until the spec changes.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "Transient"
	case KindConfiguration:
		return "Configuration"
	default:
		return "Fatal"
	}
}

// ClassifiedError carries a Kind alongside the wrapped error.
type ClassifiedError struct {
	Kind Kind
	Err  error
}

func (e *ClassifiedError) Error() string {
	return e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

func classify(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Kind: kind, Err: err}
}

// Transient marks an error as retryable on the next pass.
func Transient(err error) error {
	return classify(KindTransient, err)
}

// Transientf formats a new transient error.
func Transientf(format string, args ...any) error {
	return Transient(fmt.Errorf(format, args...))
}

// Configuration marks an error as caused by an invalid spec.
func Configuration(err error) error {
	return classify(KindConfiguration, err)
}

// Configurationf formats a new configuration error.
func Configurationf(format string, args ...any) error {
	return Configuration(fmt.Errorf(format, args...))
}

// Fatal marks an error as fatal.
func Fatal(err error) error {
	return classify(KindFatal, err)
}

// KindOf returns the outermost classification in err's chain.
// Unclassified errors are Fatal.
func KindOf(err error) Kind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindFatal
}

// IsTransient checks if an error is retryable on the next pass.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

// IsConfiguration checks if an error was caused by the spec.
func IsConfiguration(err error) bool {
	return err != nil && KindOf(err) == KindConfiguration
}

// IsFatal checks if an error is fatal.
func IsFatal(err error) bool {
	return err != nil && KindOf(err) == KindFatal
}
