package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindBookingNotFound   ErrorKind = "booking_not_found"
	KindListingNotFound   ErrorKind = "listing_not_found"
	KindAlreadySettled    ErrorKind = "already_settled"
	KindInvalidAmount     ErrorKind = "invalid_amount"
	KindLedgerWriteFailed ErrorKind = "ledger_write_failed"
	KindPaymentMissing    ErrorKind = "payment_missing"
	KindInvalidState      ErrorKind = "invalid_state"
	KindDisputeNotFound   ErrorKind = "dispute_not_found"
)

// SettlementError is returned by every settlement, dispute and scanner operation.
type SettlementError struct {
	Kind      ErrorKind
	BookingID string
	Msg       string
	Err       error
}

func (e *SettlementError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.BookingID != "" {
		msg = fmt.Sprintf("%s (booking %s)", msg, e.BookingID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// Is matches any SettlementError of the same kind, so callers can compare against the sentinels.
func (e *SettlementError) Is(target error) bool {
	var t *SettlementError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.BookingID == "" && t.Err == nil
}

var (
	ErrBookingNotFound   = &SettlementError{Kind: KindBookingNotFound}
	ErrListingNotFound   = &SettlementError{Kind: KindListingNotFound}
	ErrAlreadySettled    = &SettlementError{Kind: KindAlreadySettled}
	ErrInvalidAmount     = &SettlementError{Kind: KindInvalidAmount}
	ErrLedgerWriteFailed = &SettlementError{Kind: KindLedgerWriteFailed}
	ErrPaymentMissing    = &SettlementError{Kind: KindPaymentMissing}
	ErrInvalidState      = &SettlementError{Kind: KindInvalidState}
	ErrDisputeNotFound   = &SettlementError{Kind: KindDisputeNotFound}
)

// ErrReleaseSkipped is returned by a release guard that declines a booking. Sweep neither counts nor reports it.
var ErrReleaseSkipped = errors.New("release skipped")

func newError(kind ErrorKind, bookingID, msg string, err error) *SettlementError {
	return &SettlementError{Kind: kind, BookingID: bookingID, Msg: msg, Err: err}
}

// KindOf returns the kind of the first SettlementError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var se *SettlementError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
