package services

import (
	"context"
	"errors"
	"mime/multipart"
	"testing"

	"StayEscrow/internal/models"

	"github.com/shopspring/decimal"
)

func TestResolveDisputeRefundGuest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	listing := env.seedListing(t, "host-1")
	booking := env.paidBooking(t, listing.ID, 500, 50, 0)
	if _, err := env.disputes.OpenDispute(ctx, booking.ID, "guest-1", models.ReasonNotAsDescribed, "no kitchen"); err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	before := len(env.ledger(t, booking.ID))

	dispute, err := env.disputes.ResolveDispute(ctx, booking.ID, models.DecisionRefundGuest, "admin-1", "note")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	txs := env.ledger(t, booking.ID)
	if len(txs) != before+1 || countKind(txs, models.TransactionRefund) != 1 {
		t.Fatalf("expected exactly one new refund entry, got %d rows", len(txs))
	}
	refund := findKind(t, txs, models.TransactionRefund)
	if !refund.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected full refund 500, got %s", refund.Amount)
	}
	if refund.Metadata.Refund.AdminNotes != "note" {
		t.Fatalf("expected admin notes on the refund, got %q", refund.Metadata.Refund.AdminNotes)
	}

	stored := env.reload(t, booking.ID)
	if stored.DisputeStatus != models.BookingDisputeResolved || stored.Status != models.BookingCancelled || stored.PaymentStatus != models.PaymentRefunded {
		t.Fatalf("unexpected booking states: dispute=%s status=%s payment=%s", stored.DisputeStatus, stored.Status, stored.PaymentStatus)
	}
	if dispute.Status != models.DisputeResolved || dispute.Resolution != "note" || dispute.ResolvedBy == nil || *dispute.ResolvedBy != "admin-1" {
		t.Fatalf("unexpected dispute record: %+v", dispute)
	}
	if !contains(env.outboxTypes(t), models.EventDisputeResolved) {
		t.Fatalf("expected dispute.resolved event")
	}
}

func TestResolveDisputeReleaseToHost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	listing := env.seedListing(t, "host-1")
	booking := env.paidBooking(t, listing.ID, 1000, 100, 200)
	if _, err := env.disputes.OpenDispute(ctx, booking.ID, "host-1", models.ReasonDamage, "broken lamp"); err != nil {
		t.Fatalf("open dispute: %v", err)
	}

	if _, err := env.disputes.ResolveDispute(ctx, booking.ID, models.DecisionReleaseToHost, "admin-1", "photos confirm damage"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	payout := findKind(t, env.ledger(t, booking.ID), models.TransactionHostPayout)
	if !payout.Amount.Equal(decimal.NewFromInt(700)) || *payout.ToUserID != "host-1" {
		t.Fatalf("unexpected payout %s to %v", payout.Amount, payout.ToUserID)
	}
	stored := env.reload(t, booking.ID)
	if stored.Status != models.BookingCompleted || stored.PaymentStatus != models.PaymentReleased || stored.DisputeStatus != models.BookingDisputeResolved {
		t.Fatalf("unexpected booking states: %+v", stored)
	}

	if _, err := env.disputes.ResolveDispute(ctx, booking.ID, models.DecisionRefundGuest, "admin-1", "again"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state once resolved, got %v", err)
	}
}

func TestResolveDisputeMissingListingWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.paidBooking(t, "deleted-listing", 1000, 100, 200)

	stored := env.reload(t, booking.ID)
	stored.DisputeStatus = models.BookingDisputeOpen
	if err := env.store.Bookings.Save(ctx, stored); err != nil {
		t.Fatalf("flag dispute: %v", err)
	}
	before := len(env.ledger(t, booking.ID))

	_, err := env.disputes.ResolveDispute(ctx, booking.ID, models.DecisionReleaseToHost, "admin-1", "note")
	if !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected listing not found, got %v", err)
	}
	if after := len(env.ledger(t, booking.ID)); after != before {
		t.Fatalf("expected zero new transactions, before=%d after=%d", before, after)
	}
	if env.reload(t, booking.ID).DisputeStatus != models.BookingDisputeOpen {
		t.Fatalf("expected dispute to stay open")
	}

	// The refund path does not need the host and still works.
	if _, err := env.disputes.ResolveDispute(ctx, booking.ID, models.DecisionRefundGuest, "admin-1", "refund instead"); err != nil {
		t.Fatalf("refund without listing: %v", err)
	}
}

func TestResolveDisputeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	listing := env.seedListing(t, "host-1")
	booking := env.paidBooking(t, listing.ID, 1000, 100, 200)

	if _, err := env.disputes.ResolveDispute(ctx, "missing", models.DecisionRefundGuest, "admin-1", ""); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected booking not found, got %v", err)
	}
	if _, err := env.disputes.ResolveDispute(ctx, booking.ID, models.DecisionRefundGuest, "admin-1", ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state without an open dispute, got %v", err)
	}
	if _, err := env.disputes.ResolveDispute(ctx, booking.ID, "split", "admin-1", ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state for unknown decision, got %v", err)
	}
}

func TestOpenDisputeRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	listing := env.seedListing(t, "host-1")

	unpaid := env.seedBooking(t, listing.ID, 1000, 100, 200)
	if _, err := env.disputes.OpenDispute(ctx, unpaid.ID, "guest-1", models.ReasonOther, "x"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state for unpaid booking, got %v", err)
	}

	paid := env.paidBooking(t, listing.ID, 1000, 100, 200)
	if _, err := env.disputes.OpenDispute(ctx, paid.ID, "stranger", models.ReasonOther, "x"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state for a stranger, got %v", err)
	}
	dispute, err := env.disputes.OpenDispute(ctx, paid.ID, "guest-1", models.ReasonAccessDenied, "  lockbox empty  ")
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if dispute.Status != models.DisputeOpen || dispute.Description != "lockbox empty" {
		t.Fatalf("unexpected dispute: %+v", dispute)
	}
	if _, err := env.disputes.OpenDispute(ctx, paid.ID, "host-1", models.ReasonOther, "x"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected a second open dispute to be refused, got %v", err)
	}
	if unread, _ := env.store.Notifications.CountUnread(ctx, "host-1"); unread < 2 {
		t.Fatalf("expected the host to be notified of payment and dispute, got %d", unread)
	}
	if !contains(env.outboxTypes(t), models.EventDisputeOpened) {
		t.Fatalf("expected dispute.opened event")
	}

	got, err := env.disputes.GetDispute(ctx, paid.ID, "host-1", false)
	if err != nil || got.ID != dispute.ID {
		t.Fatalf("expected host to read the dispute, got %v", err)
	}
	if _, err := env.disputes.GetDispute(ctx, paid.ID, "stranger", false); !errors.Is(err, ErrDisputeNotFound) {
		t.Fatalf("expected stranger to be refused, got %v", err)
	}

	list, total, err := env.disputes.ListDisputes(ctx, models.DisputeOpen, 10, 0)
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("expected one open dispute, got total=%d err=%v", total, err)
	}
}

type fakeEvidenceStore struct {
	uploads []string
	deleted []string
}

func (f *fakeEvidenceStore) UploadEvidence(_ context.Context, file *multipart.FileHeader, bookingID string) (*UploadResult, error) {
	id := bookingID + "/" + file.Filename
	f.uploads = append(f.uploads, id)
	return &UploadResult{SecureURL: "https://cdn.example.com/" + id, PublicID: id}, nil
}

func (f *fakeEvidenceStore) DeleteFile(_ context.Context, publicID string) error {
	f.deleted = append(f.deleted, publicID)
	return nil
}

func TestAttachEvidence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	evidence := &fakeEvidenceStore{}
	disputes := NewDisputeService(env.settlement, evidence, nil, discardLogger())
	listing := env.seedListing(t, "host-1")
	booking := env.paidBooking(t, listing.ID, 1000, 100, 200)

	file := &multipart.FileHeader{Filename: "photo.jpg"}
	if _, err := disputes.AttachEvidence(ctx, booking.ID, "guest-1", file); !errors.Is(err, ErrDisputeNotFound) {
		t.Fatalf("expected dispute not found, got %v", err)
	}

	if _, err := disputes.OpenDispute(ctx, booking.ID, "guest-1", models.ReasonDamage, "stain"); err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if _, err := disputes.AttachEvidence(ctx, booking.ID, "host-1", file); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected only the raiser to attach evidence, got %v", err)
	}

	dispute, err := disputes.AttachEvidence(ctx, booking.ID, "guest-1", file)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if dispute.EvidenceURL != "https://cdn.example.com/"+booking.ID+"/photo.jpg" {
		t.Fatalf("unexpected evidence url %s", dispute.EvidenceURL)
	}

	second := &multipart.FileHeader{Filename: "video.mp4"}
	if _, err := disputes.AttachEvidence(ctx, booking.ID, "guest-1", second); err != nil {
		t.Fatalf("replace evidence: %v", err)
	}
	if len(evidence.deleted) != 1 || evidence.deleted[0] != booking.ID+"/photo.jpg" {
		t.Fatalf("expected previous evidence to be deleted, got %v", evidence.deleted)
	}
}
