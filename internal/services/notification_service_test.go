package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"StayEscrow/internal/models"

	"github.com/shopspring/decimal"
)

func TestNotificationServiceStoresAndMails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	notifier := NewNotificationService(env.store.Notifications, env.mailer, discardLogger())

	listing := models.Listing{ID: "l-1", HostID: "host-9", HostEmail: "host-9@example.com", Title: "Cabin"}
	notifier.NotifyPayoutReleased(ctx, listing, "b-1", decimal.NewFromInt(700))

	list, err := env.store.Notifications.ListByUser(ctx, "host-9", false, 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one notification, got %d (%v)", len(list), err)
	}
	if list[0].Type != models.NotificationPayoutReleased || !strings.Contains(list[0].Message, "₦700.00") {
		t.Fatalf("unexpected notification: %+v", list[0])
	}
	if !strings.Contains(list[0].Data, `"booking_id":"b-1"`) {
		t.Fatalf("expected booking id in data, got %s", list[0].Data)
	}
	if env.mailer.count() != 1 || !strings.HasPrefix(env.mailer.sent[0], "host-9@example.com|") {
		t.Fatalf("expected one e-mail to the host, got %v", env.mailer.sent)
	}

	// No address, no e-mail.
	notifier.NotifyRefundProcessed(ctx, models.Booking{ID: "b-2", GuestID: "guest-9"}, decimal.NewFromInt(50))
	if env.mailer.count() != 1 {
		t.Fatalf("expected no e-mail without an address")
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := maskAPIKey("re_1234567890"); got != "re_1****7890" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := maskAPIKey("abc"); got != "***" {
		t.Fatalf("unexpected mask %q", got)
	}
}

func TestEvidencePublicID(t *testing.T) {
	at := time.Unix(1704067200, 0)
	if got := evidencePublicID("dir/Broken Lamp.JPG", at); got != "1704067200_Broken_Lamp" {
		t.Fatalf("unexpected public id %q", got)
	}
}

func TestEmailTemplateEscapesUserText(t *testing.T) {
	body := emailTemplate("Payout Released", `Booking for "<script>alert(1)</script>" & co`, "₦100.00", "footer")
	if strings.Contains(body, "<script>") {
		t.Fatalf("expected user text to be escaped, got %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;alert(1)&lt;/script&gt;") || !strings.Contains(body, "&amp; co") {
		t.Fatalf("expected escaped markup in body, got %s", body)
	}
	if !strings.Contains(body, "₦100.00") {
		t.Fatalf("expected amount to be kept, got %s", body)
	}
}
