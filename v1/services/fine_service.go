package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/booklane/library-backend/v1/models"
)

// FineService computes and records fines for late returns
type FineService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewFineService creates a new fine service
func NewFineService(db *gorm.DB) *FineService {
	return &FineService{db: db, now: time.Now}
}

// Quote computes the advisory fine for an open loan without recording
// anything: days late times the fixed daily rate, never negative.
func (s *FineService) Quote(loan *models.BorrowTransaction) models.FineQuote {
	daysLate := s.daysLate(loan.DueDate)
	return models.FineQuote{
		TransactionID: loan.ID,
		Title:         loan.BookCopy.Book.Title,
		MemberName:    loan.Member.User.Username,
		DaysLate:      daysLate,
		Amount:        daysLate * models.FinePerDay,
	}
}

// RecordFine attaches a fine to the open loan and closes it: the transaction
// is marked returned with today's date and the copy becomes available again.
// The fine starts unpaid; no settlement path exists.
func (s *FineService) RecordFine(ctx context.Context, transactionID uint) (*models.FinePayment, error) {
	var fine models.FinePayment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loan models.BorrowTransaction
		err := tx.
			Where("id = ? AND status = ?", transactionID, models.LoanStatusBorrowed).
			First(&loan).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoOpenLoan
			}
			return fmt.Errorf("failed to load open loan: %w", err)
		}

		daysLate := s.daysLate(loan.DueDate)
		fine = models.FinePayment{
			BorrowTransactionID: loan.ID,
			Amount:              daysLate * models.FinePerDay,
			Paid:                false,
		}
		if err := tx.Create(&fine).Error; err != nil {
			return fmt.Errorf("failed to record fine: %w", err)
		}

		today := models.Today(s.now())
		loan.ReturnedAt = &today
		loan.Status = models.LoanStatusReturned
		if err := tx.Save(&loan).Error; err != nil {
			return fmt.Errorf("failed to close loan: %w", err)
		}

		err = tx.Model(&models.BookCopy{}).
			Where("id = ?", loan.BookCopyID).
			Update("status", models.CopyStatusAvailable).Error
		if err != nil {
			return fmt.Errorf("failed to mark copy available: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Recorded fine",
		"transactionId", transactionID,
		"amount", fine.Amount)
	return &fine, nil
}

// daysLate counts whole calendar days between the due date and today, clamped
// at zero. Both dates are re-anchored to UTC midnight before subtracting so a
// DST transition in the local zone cannot swallow a day. A loan due today is
// not late.
func (s *FineService) daysLate(dueDate time.Time) int {
	days := int(utcMidnight(s.now()).Sub(utcMidnight(dueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func utcMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
