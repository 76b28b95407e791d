package services

import (
	"errors"
	"fmt"
	"testing"
)

func TestSettlementErrorMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("release: %w", newError(KindAlreadySettled, "b-1", "payout already recorded", nil))

	if !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected wrapped error to match ErrAlreadySettled")
	}
	if errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("did not expect match against a different kind")
	}

	var se *SettlementError
	if !errors.As(err, &se) || se.BookingID != "b-1" {
		t.Fatalf("expected booking id b-1 via errors.As, got %#v", se)
	}
	if KindOf(err) != KindAlreadySettled {
		t.Fatalf("unexpected kind %q", KindOf(err))
	}
}

func TestSettlementErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := newError(KindLedgerWriteFailed, "b-2", "append ledger entries", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if !errors.Is(err, ErrLedgerWriteFailed) {
		t.Fatalf("expected kind match")
	}
	want := "append ledger entries (booking b-2): disk full"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("boom")) != "" {
		t.Fatalf("expected empty kind for plain errors")
	}
}
