package models

// CopyStatus represents the lending status of a physical book copy
type CopyStatus string

const (
	CopyStatusAvailable   CopyStatus = "available"
	CopyStatusUnavailable CopyStatus = "unavailable"
)

// IsValid checks if the copy status is a known value
func (s CopyStatus) IsValid() bool {
	return s == CopyStatusAvailable || s == CopyStatusUnavailable
}

// CopyCondition represents the physical condition of a book copy
type CopyCondition string

const (
	CopyConditionGood   CopyCondition = "good"
	CopyConditionMedium CopyCondition = "medium"
	CopyConditionBad    CopyCondition = "bad"
)

// IsValid checks if the copy condition is a known value
func (c CopyCondition) IsValid() bool {
	return c == CopyConditionGood || c == CopyConditionMedium || c == CopyConditionBad
}

// LoanStatus represents the stored state of a borrow transaction.
// Overdue is derived from the due date at query time, never stored.
type LoanStatus string

const (
	LoanStatusBorrowed LoanStatus = "borrowed"
	LoanStatusReturned LoanStatus = "returned"
)

const (
	// LoanPeriodDays is the fixed loan period; due date = borrowed date + this
	LoanPeriodDays = 15

	// MaxOpenLoans is the maximum number of concurrently open transactions per member
	MaxOpenLoans = 3

	// FinePerDay is the fine rate in whole currency units per day late
	FinePerDay = 10

	// CatalogPageSize is the fixed page size for catalog list views
	CatalogPageSize = 6
)

// Display statuses for loan list views
const (
	DisplayStatusBorrowed = "Borrowed"
	DisplayStatusReturned = "Returned"
	DisplayStatusOverdue  = "Overdue"
)

// Fine display states for the member dashboard
const (
	FineStateNone   = "No Fine"
	FineStatePaid   = "Paid"
	FineStateUnpaid = "Unpaid"
)
