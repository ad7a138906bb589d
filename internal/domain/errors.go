package domain

import "errors"

var (
	ErrProductNotFound        = errors.New("product not found")
	ErrHoldNotFound           = errors.New("hold not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInsufficientStock      = errors.New("insufficient stock available")
	ErrInvalidHoldState       = errors.New("invalid hold state")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrInvalidOutcome         = errors.New("invalid payment outcome")
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrProductNameRequired    = errors.New("product name required")
	ErrInvalidID              = errors.New("invalid id")
	ErrTransientStore         = errors.New("transient store failure")
)

// Hold state errors match ErrInvalidHoldState through errors.Is while keeping
// their own identity for callers that need the precise cause.
var (
	ErrHoldAlreadyUsed = &holdStateError{msg: "hold has already been used"}
	ErrHoldReleased    = &holdStateError{msg: "hold has been released"}
	ErrHoldExpired     = &holdStateError{msg: "hold has expired"}
)

type holdStateError struct {
	msg string
}

func (e *holdStateError) Error() string { return e.msg }

func (e *holdStateError) Is(target error) bool { return target == ErrInvalidHoldState }

// ErrorKind is the coarse failure class a transport maps to a status code.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindInsufficientStock
	KindInvalidHoldState
	KindInvalidInput
	KindTransient
)

// Kind classifies err into the engine's error taxonomy.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrHoldNotFound), errors.Is(err, ErrOrderNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrInvalidHoldState):
		return KindInvalidHoldState
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidPrice), errors.Is(err, ErrInvalidOutcome),
		errors.Is(err, ErrIdempotencyKeyRequired), errors.Is(err, ErrProductNameRequired), errors.Is(err, ErrInvalidID):
		return KindInvalidInput
	case errors.Is(err, ErrTransientStore):
		return KindTransient
	default:
		return KindInternal
	}
}
