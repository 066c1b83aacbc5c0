package errors

import "fmt"

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	if ve, ok := err.(*ValidationError); ok {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	if nfe, ok := err.(*NotFoundError); ok {
		return nfe, true
	}
	return nil, false
}

// InvalidAmountError rejects orders whose amount due is not strictly positive.
type InvalidAmountError struct {
	Message string
}

func (e *InvalidAmountError) Error() string {
	return e.Message
}

func NewInvalidAmountError(message string) *InvalidAmountError {
	return &InvalidAmountError{Message: message}
}

func IsInvalidAmountError(err error) (*InvalidAmountError, bool) {
	if iae, ok := err.(*InvalidAmountError); ok {
		return iae, true
	}
	return nil, false
}

type UnknownAccountKindError struct {
	Message string
}

func (e *UnknownAccountKindError) Error() string {
	return e.Message
}

func NewUnknownAccountKindError(message string) *UnknownAccountKindError {
	return &UnknownAccountKindError{Message: message}
}

func IsUnknownAccountKindError(err error) (*UnknownAccountKindError, bool) {
	if uke, ok := err.(*UnknownAccountKindError); ok {
		return uke, true
	}
	return nil, false
}

// AlreadySettledError signals a transition attempted on an order that is
// already in a terminal status (PAID or CANCELLED).
type AlreadySettledError struct {
	Message string
}

func (e *AlreadySettledError) Error() string {
	return e.Message
}

func NewAlreadySettledError(message string) *AlreadySettledError {
	return &AlreadySettledError{Message: message}
}

func IsAlreadySettledError(err error) (*AlreadySettledError, bool) {
	if ase, ok := err.(*AlreadySettledError); ok {
		return ase, true
	}
	return nil, false
}

// AmountMismatchError signals a payment whose amount differs from the amount
// due. Only full payments are accepted.
type AmountMismatchError struct {
	Expected int64
	Got      int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("payment amount %d does not match amount due %d", e.Got, e.Expected)
}

func NewAmountMismatchError(expected, got int64) *AmountMismatchError {
	return &AmountMismatchError{
		Expected: expected,
		Got:      got,
	}
}

func IsAmountMismatchError(err error) (*AmountMismatchError, bool) {
	if ame, ok := err.(*AmountMismatchError); ok {
		return ame, true
	}
	return nil, false
}

type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

func IsForbiddenError(err error) (*ForbiddenError, bool) {
	if fe, ok := err.(*ForbiddenError); ok {
		return fe, true
	}
	return nil, false
}

// DeadlockError is returned once all deadlock retries are exhausted.
type DeadlockError struct {
	Message string
}

func (e *DeadlockError) Error() string {
	return e.Message
}

func NewDeadlockError(message string) *DeadlockError {
	return &DeadlockError{Message: message}
}

func IsDeadlockError(err error) (*DeadlockError, bool) {
	if de, ok := err.(*DeadlockError); ok {
		return de, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}

func IsInternalError(err error) (*InternalError, bool) {
	if ie, ok := err.(*InternalError); ok {
		return ie, true
	}
	return nil, false
}
