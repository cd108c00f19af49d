package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Kind classifies a domain failure so the HTTP edge can translate it to a status code.
type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindCardNotFound        Kind = "card_not_found"
	KindDuplicateCardNumber Kind = "duplicate_card_number"
	KindUserNotFound        Kind = "user_not_found"
	KindUserAlreadyExists   Kind = "user_already_exists"
	KindTransactionNotFound Kind = "transaction_not_found"
	// KindTransactionPending marks a transfer interrupted before it settled.
	KindTransactionPending  Kind = "transaction_pending"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindInvalidTransaction  Kind = "invalid_transaction"
	KindInvalidCard         Kind = "invalid_card"
	KindAccessDenied        Kind = "access_denied"
	KindCrypto              Kind = "crypto_error"
)

// Sentinels, one per kind. Match with errors.Is.
var (
	ErrCardNotFound        = &Error{Kind: KindCardNotFound, Message: "card not found"}
	ErrDuplicateCardNumber = &Error{Kind: KindDuplicateCardNumber, Message: "card number already registered"}
	ErrUserNotFound        = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrUserAlreadyExists   = &Error{Kind: KindUserAlreadyExists, Message: "user already exists"}
	ErrTransactionNotFound = &Error{Kind: KindTransactionNotFound, Message: "transaction not found"}
	ErrTransactionPending  = &Error{Kind: KindTransactionPending, Message: "transaction left pending"}
	ErrInsufficientFunds   = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrInvalidTransaction  = &Error{Kind: KindInvalidTransaction, Message: "invalid transaction"}
	ErrInvalidCard         = &Error{Kind: KindInvalidCard, Message: "invalid card"}
	ErrAccessDenied        = &Error{Kind: KindAccessDenied, Message: "access denied"}
	ErrCrypto              = &Error{Kind: KindCrypto, Message: "crypto failure"}
)

// Error is a classified domain error. Two errors are equal under errors.Is
// when they share a Kind, so a detailed message still matches its sentinel.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports kind equality.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind, keeping it reachable through errors.Unwrap.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// InsufficientFundsError carries the diagnostics of a rejected debit.
type InsufficientFundsError struct {
	MaskedNumber string
	Available    decimal.Decimal
	Requested    decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on card %s: available %s, requested %s",
		e.MaskedNumber, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var insufficient *InsufficientFundsError
	if errors.As(err, &insufficient) {
		return KindInsufficientFunds
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps a kind to the status code the API answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindCardNotFound, KindUserNotFound, KindTransactionNotFound:
		return http.StatusNotFound
	case KindDuplicateCardNumber, KindUserAlreadyExists:
		return http.StatusConflict
	case KindInsufficientFunds, KindInvalidTransaction, KindInvalidCard:
		return http.StatusBadRequest
	case KindAccessDenied:
		return http.StatusForbidden
	case KindTransactionPending:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
