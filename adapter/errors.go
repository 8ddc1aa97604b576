package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every ConfigurationError.
	ErrConfiguration = errors.New("storage adapter configuration error")

	// ErrDuplicateName is matched by every DuplicateNameError.
	ErrDuplicateName = errors.New("storage adapter name already exists")

	// ErrContractViolation is matched by every ContractViolationError.
	ErrContractViolation = errors.New("storage adapter contract violation")

	// ErrNoKey is matched by every NoKeyError.
	ErrNoKey = errors.New("no file key found")

	// ErrMissingKey is matched by every MissingKeyError.
	ErrMissingKey = errors.New("no file key returned by backend")
)

// ConfigurationError is returned when an adapter cannot be constructed from
// the supplied backend, either because a required capability is missing or
// because the backend failed to initialise.
type ConfigurationError struct {
	Adapter    string
	Capability string
	Err        error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage adapter %q: %s: %v", e.Adapter, e.Capability, e.Err)
	}
	return fmt.Sprintf("storage adapter %q: please define a backend %s capability", e.Adapter, e.Capability)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DuplicateNameError is returned when a name is registered twice.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("storage name already exists: %q", e.Name)
}

func (e *DuplicateNameError) Is(target error) bool { return target == ErrDuplicateName }

// ContractViolationError is returned when an operation receives no file, or a
// file without data where data is required.
type ContractViolationError struct {
	Adapter string
	Op      string
	Reason  string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("storage adapter %q %s requires %s", e.Adapter, e.Op, e.Reason)
}

func (e *ContractViolationError) Is(target error) bool { return target == ErrContractViolation }

// NoKeyError is returned when a file has no copy record for the adapter.
type NoKeyError struct {
	Adapter string
	Op      string
}

func (e *NoKeyError) Error() string {
	return fmt.Sprintf("no file key found for the %q store, can't %s", e.Adapter, e.Op)
}

func (e *NoKeyError) Is(target error) bool { return target == ErrNoKey }

// MissingKeyError is returned when a backend put succeeded without returning a key.
type MissingKeyError struct {
	Adapter string
	Key     string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("storage adapter %q: backend returned no file key for %q", e.Adapter, e.Key)
}

func (e *MissingKeyError) Is(target error) bool { return target == ErrMissingKey }

// ErrorKind classifies errors surfaced by adapters and the registry.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConfiguration
	KindDuplicateName
	KindContractViolation
	KindNoKey
	KindMissingKey
	// KindBackend covers every error passed through unchanged from a backend.
	KindBackend
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfiguration:
		return "configuration"
	case KindDuplicateName:
		return "duplicate_name"
	case KindContractViolation:
		return "contract_violation"
	case KindNoKey:
		return "no_key"
	case KindMissingKey:
		return "missing_key"
	default:
		return "backend"
	}
}

// Classify returns the kind of err.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrDuplicateName):
		return KindDuplicateName
	case errors.Is(err, ErrContractViolation):
		return KindContractViolation
	case errors.Is(err, ErrNoKey):
		return KindNoKey
	case errors.Is(err, ErrMissingKey):
		return KindMissingKey
	default:
		return KindBackend
	}
}
