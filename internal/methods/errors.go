package methods

import "fmt"

// InputError reports invalid calculation input: a bad unit, a missing field or
// a non-positive factor. Methods never silently default around these.
type InputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	msg := fmt.Sprintf("invalid input %q", e.Field)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InputError) Unwrap() error { return e.Err }

// ConfigurationError reports missing configuration the calculation cannot
// proceed without, such as no resolvable electricity emission factor.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}
