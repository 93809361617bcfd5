package domain

import (
	"context"
	"errors"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidTransfer        = errors.New("cannot transfer to the same account")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidOwner           = errors.New("owner id must not be empty")
	ErrInvalidPage            = errors.New("invalid page request")
	ErrConcurrentModification = errors.New("account was modified concurrently")
	ErrConcurrencyExhausted   = errors.New("concurrent modification retries exhausted")
)

type ErrorKind string

const (
	KindAccountNotFound      ErrorKind = "ACCOUNT_NOT_FOUND"
	KindInsufficientFunds    ErrorKind = "INSUFFICIENT_FUNDS"
	KindInvalidTransfer      ErrorKind = "INVALID_TRANSFER"
	KindInvalidAmount        ErrorKind = "INVALID_AMOUNT"
	KindInvalidRequest       ErrorKind = "INVALID_REQUEST"
	KindConcurrencyExhausted ErrorKind = "CONCURRENCY_EXHAUSTED"
	KindTimeout              ErrorKind = "TIMEOUT"
	KindCancelled            ErrorKind = "CANCELLED"
	KindInternal             ErrorKind = "INTERNAL"
)

// KindOf maps an error chain onto the stable kind reported to callers.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccountNotFound):
		return KindAccountNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrInvalidTransfer):
		return KindInvalidTransfer
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInvalidOwner), errors.Is(err, ErrInvalidPage):
		return KindInvalidRequest
	case errors.Is(err, ErrConcurrencyExhausted):
		return KindConcurrencyExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindInternal
	}
}
