package cache

import "fmt"

type constError string

func (e constError) Error() string { return string(e) }

const (
	// ErrConfig is wrapped by every configuration error returned from a
	// policy constructor.
	ErrConfig = constError("cache: invalid configuration")
	// ErrUnknownPolicy is returned by a Factory for a name it does not know.
	ErrUnknownPolicy = constError("cache: unknown policy")
	// ErrUnsupported is the panic value (wrapped) raised when an operation
	// the policy cannot perform is invoked, e.g. ToEvict on a batch policy.
	ErrUnsupported = constError("cache: operation not supported")
	// ErrPrintParams is wrapped by PrintParamsError.
	ErrPrintParams = constError("cache: parameter dump requested")
)

// ConfigError describes a rejected policy parameter.
type ConfigError struct {
	Policy string
	Key    string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s=%s: %s", e.Policy, e.Key, e.Value, e.Reason)
	}
	if e.Key != "" {
		return fmt.Sprintf("%s: %s: %s", e.Policy, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Policy, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// PrintParamsError is returned instead of a cache when a parameter string
// asked for the effective parameters with the value "print".
type PrintParamsError struct {
	Policy string
	Params string
}

func (e *PrintParamsError) Error() string {
	return fmt.Sprintf("%s parameters: %s", e.Policy, e.Params)
}

func (e *PrintParamsError) Unwrap() error { return ErrPrintParams }

// Unsupported panics with ErrUnsupported for op on policy.
func Unsupported(policy, op string) {
	panic(fmt.Errorf("%w: %s does not support %s", ErrUnsupported, policy, op))
}
