package services

import (
	"context"
	"fmt"

	"StayEscrow/internal/models"
	"StayEscrow/internal/repositories"

	"github.com/shopspring/decimal"
)

type Financials struct {
	TotalEscrow    decimal.Decimal `json:"total_escrow"`
	TotalReleased  decimal.Decimal `json:"total_released"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalRefunded  decimal.Decimal `json:"total_refunded"`
	PendingPayouts int             `json:"pending_payouts"`
}

// Consistent is false when more has left escrow than was ever paid in.
func (f Financials) Consistent() bool {
	return !f.TotalEscrow.IsNegative()
}

// SummarizeLedger folds completed ledger entries and counts bookings still held in escrow.
// TotalEscrow is never clamped.
func SummarizeLedger(txs []models.Transaction, bookings []models.Booking) Financials {
	var payments, fees, released, refunded decimal.Decimal
	for _, tx := range txs {
		if tx.Status != models.TransactionCompleted {
			continue
		}
		switch tx.Kind {
		case models.TransactionGuestPayment:
			payments = payments.Add(tx.Amount)
		case models.TransactionServiceFee:
			fees = fees.Add(tx.Amount)
		case models.TransactionHostPayout:
			released = released.Add(tx.Amount)
		case models.TransactionRefund:
			refunded = refunded.Add(tx.Amount)
		}
	}

	pending := 0
	for _, b := range bookings {
		if b.PaymentStatus == models.PaymentEscrow {
			pending++
		}
	}

	return Financials{
		TotalEscrow:    payments.Sub(released).Sub(refunded),
		TotalReleased:  released,
		TotalRevenue:   fees,
		TotalRefunded:  refunded,
		PendingPayouts: pending,
	}
}

type FinancialsService struct {
	transactions repositories.TransactionRepository
	bookings     repositories.BookingRepository
}

func NewFinancialsService(transactions repositories.TransactionRepository, bookings repositories.BookingRepository) *FinancialsService {
	return &FinancialsService{transactions: transactions, bookings: bookings}
}

// ComputeFinancials reads the current ledger and folds it with the supplied bookings.
func (s *FinancialsService) ComputeFinancials(ctx context.Context, bookings []models.Booking) (Financials, error) {
	txs, err := s.transactions.ListAll(ctx)
	if err != nil {
		return Financials{}, fmt.Errorf("read ledger: %w", err)
	}
	return SummarizeLedger(txs, bookings), nil
}

// PlatformFinancials folds the ledger with every stored booking.
func (s *FinancialsService) PlatformFinancials(ctx context.Context) (Financials, error) {
	bookings, err := s.bookings.ListAll(ctx)
	if err != nil {
		return Financials{}, fmt.Errorf("list bookings: %w", err)
	}
	return s.ComputeFinancials(ctx, bookings)
}
