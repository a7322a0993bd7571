package models

import "time"

// BorrowTransaction links one member and one book copy for a single loan.
// A copy has at most one transaction with status=borrowed at any time,
// enforced by a partial unique index created during migration.
type BorrowTransaction struct {
	ID         uint       `gorm:"primarykey;column:id" json:"id"`
	MemberID   uint       `gorm:"column:member_id;not null;index" json:"memberId"`
	BookCopyID uint       `gorm:"column:book_copy_id;not null;index" json:"bookCopyId"`
	BorrowedAt time.Time  `gorm:"column:borrowed_at;not null" json:"borrowedAt"`
	DueDate    time.Time  `gorm:"column:due_date;not null" json:"dueDate"`
	ReturnedAt *time.Time `gorm:"column:returned_at" json:"returnedAt,omitempty"`
	Status     LoanStatus `gorm:"column:status;not null;index" json:"status"`
	BaseModel

	// Relationships
	Member   MemberProfile `gorm:"foreignKey:MemberID;references:ID" json:"member"`
	BookCopy BookCopy      `gorm:"foreignKey:BookCopyID;references:ID" json:"bookCopy"`
}

// TableName sets the table name for GORM
func (BorrowTransaction) TableName() string {
	return "borrow_transactions"
}

// IsOverdueAt reports whether the loan is open with a due date strictly
// before the given day. A loan due today is not overdue.
func (t *BorrowTransaction) IsOverdueAt(day time.Time) bool {
	return t.Status == LoanStatusBorrowed && t.DueDate.Before(truncateToDay(day))
}

// DisplayStatus derives the status shown on dashboards
func (t *BorrowTransaction) DisplayStatus(day time.Time) string {
	switch {
	case t.IsOverdueAt(day):
		return DisplayStatusOverdue
	case t.Status == LoanStatusReturned:
		return DisplayStatusReturned
	default:
		return DisplayStatusBorrowed
	}
}

// FinePayment is a monetary record attached 1:1 to a borrow transaction.
// Paid defaults to false; no settlement path exists yet, so PaidAt stays nil.
type FinePayment struct {
	ID                  uint       `gorm:"primarykey;column:id" json:"id"`
	BorrowTransactionID uint       `gorm:"column:borrow_transaction_id;not null;unique" json:"borrowTransactionId"`
	Amount              int        `gorm:"column:amount;not null" json:"amount"`
	Paid                bool       `gorm:"column:paid;not null;default:false" json:"paid"`
	PaidAt              *time.Time `gorm:"column:paid_at" json:"paidAt,omitempty"`
	BaseModel

	// Relationships
	BorrowTransaction BorrowTransaction `gorm:"foreignKey:BorrowTransactionID;references:ID" json:"-"`
}

// TableName sets the table name for GORM
func (FinePayment) TableName() string {
	return "fine_payments"
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Today returns the given instant truncated to its calendar day.
// Date arithmetic on loans always works on whole days.
func Today(now time.Time) time.Time {
	return truncateToDay(now)
}
