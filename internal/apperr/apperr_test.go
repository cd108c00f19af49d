package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDetailedErrorMatchesSentinel(t *testing.T) {
	err := New(KindCardNotFound, "card %s not found", "abc")
	require.ErrorIs(t, err, ErrCardNotFound)
	require.NotErrorIs(t, err, ErrAccessDenied)

	wrapped := fmt.Errorf("get card: %w", err)
	require.ErrorIs(t, wrapped, ErrCardNotFound)
	require.Equal(t, KindCardNotFound, KindOf(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("cipher: message authentication failed")
	err := Wrap(KindCrypto, cause, "decrypt card number")
	require.ErrorIs(t, err, ErrCrypto)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "message authentication failed")
}

func TestInsufficientFundsError(t *testing.T) {
	err := &InsufficientFundsError{
		MaskedNumber: "**** **** **** 5678",
		Available:    decimal.RequireFromString("500"),
		Requested:    decimal.RequireFromString("1000"),
	}
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, KindInsufficientFunds, KindOf(fmt.Errorf("transfer: %w", err)))
	require.Equal(t, "insufficient funds on card **** **** **** 5678: available 500.00, requested 1000.00", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindCardNotFound:        http.StatusNotFound,
		KindTransactionNotFound: http.StatusNotFound,
		KindDuplicateCardNumber: http.StatusConflict,
		KindUserAlreadyExists:   http.StatusConflict,
		KindInsufficientFunds:   http.StatusBadRequest,
		KindInvalidTransaction:  http.StatusBadRequest,
		KindAccessDenied:        http.StatusForbidden,
		KindTransactionPending:  http.StatusServiceUnavailable,
		KindCrypto:              http.StatusInternalServerError,
		KindOf(errors.New("x")): http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Fatalf("kind %s: expected %d, got %d", kind, want, got)
		}
	}
}
