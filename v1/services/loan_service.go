package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/booklane/library-backend/v1/models"
)

// LoanService handles the borrow/return workflow. The check-then-act
// sequences run inside a single database transaction; on Postgres the
// candidate copy row is locked so two concurrent borrows cannot both take
// the last available copy, and the partial unique index on open loans
// backstops the copy invariant on every dialect.
type LoanService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLoanService creates a new loan service
func NewLoanService(db *gorm.DB) *LoanService {
	return &LoanService{db: db, now: time.Now}
}

// Borrow opens a loan for the member on the first available copy of the
// given title (case-insensitive). Due date is the borrow date plus the
// fixed loan period.
func (s *LoanService) Borrow(ctx context.Context, memberID uint, title string) (*models.BorrowTransaction, error) {
	var created models.BorrowTransaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.MemberProfile
		if err := tx.First(&member, memberID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return fmt.Errorf("failed to load member: %w", err)
		}

		var openCount int64
		err := tx.Model(&models.BorrowTransaction{}).
			Where("member_id = ? AND status = ?", memberID, models.LoanStatusBorrowed).
			Count(&openCount).Error
		if err != nil {
			return fmt.Errorf("failed to count open loans: %w", err)
		}
		if openCount >= models.MaxOpenLoans {
			return ErrBorrowLimitExceeded
		}

		copyQuery := tx.
			Joins("JOIN books ON books.id = book_copies.book_id").
			Where("LOWER(books.title) = ? AND book_copies.status = ?",
				strings.ToLower(title), models.CopyStatusAvailable).
			Order("book_copies.id")
		if tx.Dialector.Name() == "postgres" {
			copyQuery = copyQuery.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "book_copies"}})
		}

		var copy models.BookCopy
		if err := copyQuery.First(&copy).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoAvailableCopy
			}
			return fmt.Errorf("failed to find available copy: %w", err)
		}

		today := models.Today(s.now())
		created = models.BorrowTransaction{
			MemberID:   memberID,
			BookCopyID: copy.ID,
			BorrowedAt: today,
			DueDate:    today.AddDate(0, 0, models.LoanPeriodDays),
			Status:     models.LoanStatusBorrowed,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("failed to create borrow transaction: %w", err)
		}

		err = tx.Model(&models.BookCopy{}).
			Where("id = ?", copy.ID).
			Update("status", models.CopyStatusUnavailable).Error
		if err != nil {
			return fmt.Errorf("failed to mark copy unavailable: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Opened loan",
		"transactionId", created.ID,
		"memberId", memberID,
		"copyId", created.BookCopyID,
		"dueDate", created.DueDate)
	return &created, nil
}

// ReturnByTransactionID closes the given open loan: returned date is set to
// today, status flips to returned and the copy becomes available again.
func (s *LoanService) ReturnByTransactionID(ctx context.Context, transactionID uint) (*models.BorrowTransaction, error) {
	var loan models.BorrowTransaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("BookCopy.Book").
			Where("id = ? AND status = ?", transactionID, models.LoanStatusBorrowed).
			First(&loan).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoOpenLoan
			}
			return fmt.Errorf("failed to load open loan: %w", err)
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

	slog.Info("Closed loan", "transactionId", loan.ID, "copyId", loan.BookCopyID)
	return &loan, nil
}

// GetOpenLoan loads one open loan by transaction id
func (s *LoanService) GetOpenLoan(ctx context.Context, transactionID uint) (*models.BorrowTransaction, error) {
	var loan models.BorrowTransaction
	err := s.db.WithContext(ctx).
		Preload("Member.User").
		Preload("BookCopy.Book").
		Where("id = ? AND status = ?", transactionID, models.LoanStatusBorrowed).
		First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoOpenLoan
		}
		return nil, fmt.Errorf("failed to load open loan: %w", err)
	}
	return &loan, nil
}

// ResolveOpenLoan finds the open loan a title refers to. With several open
// loans for the same title the member username narrows the match; if the
// matches still span more than one member the caller must fall back to an
// explicit transaction id.
func (s *LoanService) ResolveOpenLoan(ctx context.Context, title, memberName string) (*models.BorrowTransaction, error) {
	query := s.db.WithContext(ctx).Model(&models.BorrowTransaction{}).
		Joins("JOIN book_copies ON book_copies.id = borrow_transactions.book_copy_id").
		Joins("JOIN books ON books.id = book_copies.book_id").
		Where("LOWER(books.title) = ? AND borrow_transactions.status = ?",
			strings.ToLower(title), models.LoanStatusBorrowed)

	if memberName != "" {
		pattern := "%" + strings.ToLower(memberName) + "%"
		query = query.
			Joins("JOIN member_profiles ON member_profiles.id = borrow_transactions.member_id").
			Joins("JOIN users ON users.id = member_profiles.user_id").
			Where("LOWER(users.username) LIKE ?", pattern)
	}

	var loans []models.BorrowTransaction
	err := query.
		Preload("Member.User").
		Preload("BookCopy.Book").
		Order("borrow_transactions.id DESC").
		Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve open loan: %w", err)
	}

	if len(loans) == 0 {
		return nil, ErrNoOpenLoan
	}
	// A substring filter can still match several distinct members, so check
	// who actually holds the remaining loans rather than trusting the filter.
	for _, loan := range loans[1:] {
		if loan.MemberID != loans[0].MemberID {
			return nil, ErrAmbiguousLoan
		}
	}

	// Several copies loaned to the same member resolve to the most recent
	// transaction.
	return &loans[0], nil
}

// OpenLoanCandidates lists the open loans matching a title so an operator
// can pick a specific transaction when resolution is ambiguous
func (s *LoanService) OpenLoanCandidates(ctx context.Context, title string) ([]models.LoanCandidate, error) {
	var loans []models.BorrowTransaction
	err := s.db.WithContext(ctx).Model(&models.BorrowTransaction{}).
		Joins("JOIN book_copies ON book_copies.id = borrow_transactions.book_copy_id").
		Joins("JOIN books ON books.id = book_copies.book_id").
		Where("LOWER(books.title) = ? AND borrow_transactions.status = ?",
			strings.ToLower(title), models.LoanStatusBorrowed).
		Preload("Member.User").
		Preload("BookCopy").
		Order("borrow_transactions.id DESC").
		Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list loan candidates: %w", err)
	}

	candidates := make([]models.LoanCandidate, 0, len(loans))
	for _, loan := range loans {
		candidates = append(candidates, models.LoanCandidate{
			TransactionID: loan.ID,
			MemberName:    loan.Member.User.Username,
			Barcode:       loan.BookCopy.Barcode,
			BorrowedAt:    loan.BorrowedAt,
			DueDate:       loan.DueDate,
		})
	}
	return candidates, nil
}

// ListOpenLoans returns all open loans, optionally filtered by a
// case-insensitive member username substring
func (s *LoanService) ListOpenLoans(ctx context.Context, nameFilter string) ([]models.LoanView, error) {
	loans, err := s.queryLoans(ctx, nameFilter, false)
	if err != nil {
		return nil, err
	}
	return s.loanViews(ctx, loans)
}

// ListOverdue returns open loans whose due date is strictly before today.
// Overdue is derived at query time; the stored status stays borrowed.
func (s *LoanService) ListOverdue(ctx context.Context, nameFilter string) ([]models.LoanView, error) {
	loans, err := s.queryLoans(ctx, nameFilter, true)
	if err != nil {
		return nil, err
	}
	return s.loanViews(ctx, loans)
}

// MemberLoans returns every transaction of one member with derived display
// status and fine information, for the member dashboard
func (s *LoanService) MemberLoans(ctx context.Context, memberID uint) ([]models.LoanView, error) {
	var loans []models.BorrowTransaction
	err := s.db.WithContext(ctx).
		Preload("Member.User").
		Preload("BookCopy.Book").
		Where("member_id = ?", memberID).
		Order("id").
		Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list member loans: %w", err)
	}
	return s.loanViews(ctx, loans)
}

func (s *LoanService) queryLoans(ctx context.Context, nameFilter string, overdueOnly bool) ([]models.BorrowTransaction, error) {
	query := s.db.WithContext(ctx).Model(&models.BorrowTransaction{}).
		Where("borrow_transactions.status = ?", models.LoanStatusBorrowed)

	if overdueOnly {
		query = query.Where("borrow_transactions.due_date < ?", models.Today(s.now()))
	}

	if nameFilter != "" {
		pattern := "%" + strings.ToLower(nameFilter) + "%"
		query = query.
			Joins("JOIN member_profiles ON member_profiles.id = borrow_transactions.member_id").
			Joins("JOIN users ON users.id = member_profiles.user_id").
			Where("LOWER(users.username) LIKE ?", pattern)
	}

	var loans []models.BorrowTransaction
	err := query.
		Preload("Member.User").
		Preload("BookCopy.Book").
		Order("borrow_transactions.id").
		Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

// loanViews decorates transactions with derived display status and fine state
func (s *LoanService) loanViews(ctx context.Context, loans []models.BorrowTransaction) ([]models.LoanView, error) {
	ids := make([]uint, 0, len(loans))
	for _, loan := range loans {
		ids = append(ids, loan.ID)
	}

	fines := make(map[uint]models.FinePayment, len(ids))
	if len(ids) > 0 {
		var records []models.FinePayment
		err := s.db.WithContext(ctx).
			Where("borrow_transaction_id IN ?", ids).
			Find(&records).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load fines: %w", err)
		}
		for _, fine := range records {
			fines[fine.BorrowTransactionID] = fine
		}
	}

	today := s.now()
	views := make([]models.LoanView, 0, len(loans))
	for _, loan := range loans {
		view := models.LoanView{
			TransactionID: loan.ID,
			Title:         loan.BookCopy.Book.Title,
			Barcode:       loan.BookCopy.Barcode,
			MemberName:    loan.Member.User.Username,
			BorrowedAt:    loan.BorrowedAt,
			DueDate:       loan.DueDate,
			ReturnedAt:    loan.ReturnedAt,
			Status:        loan.DisplayStatus(today),
			FineState:     models.FineStateNone,
		}
		if fine, ok := fines[loan.ID]; ok {
			view.FineAmount = fine.Amount
			if fine.Paid {
				view.FineState = models.FineStatePaid
			} else {
				view.FineState = models.FineStateUnpaid
			}
		}
		views = append(views, view)
	}
	return views, nil
}
