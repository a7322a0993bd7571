package models

import "time"

// RegisterRequest carries the identity credentials plus profile fields for registration
type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Department string `json:"department"`
	RollNo     string `json:"rollNo"`
}

// LoginRequest carries login credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns the session token and the role-branched destination
type LoginResponse struct {
	Token      string `json:"token"`
	Role       Role   `json:"role"`
	RedirectTo string `json:"redirectTo"`
}

// CreateCategoryRequest carries fields for a new category
type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateAuthorRequest carries fields for a new author
type CreateAuthorRequest struct {
	Name        string     `json:"name"`
	Bio         string     `json:"bio"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
}

// CreateBookRequest carries fields for a new book title
type CreateBookRequest struct {
	Title           string `json:"title"`
	ISBN            string `json:"isbn"`
	CategoryID      uint   `json:"categoryId"`
	AuthorIDs       []uint `json:"authorIds"`
	Publisher       string `json:"publisher"`
	PublicationYear int    `json:"publicationYear"`
	Language        string `json:"language"`
	Description     string `json:"description"`
}

// CreateCopyRequest carries fields for a new physical copy
type CreateCopyRequest struct {
	BookID        uint          `json:"bookId"`
	Barcode       string        `json:"barcode"`
	ShelfLocation string        `json:"shelfLocation"`
	Condition     CopyCondition `json:"condition"`
}

// BorrowRequest names the member a staff user is opening a loan for
type BorrowRequest struct {
	MemberID uint `json:"memberId"`
}

// CopyView is one row of a catalog list view
type CopyView struct {
	CopyID        uint          `json:"copyId"`
	Barcode       string        `json:"barcode"`
	ShelfLocation string        `json:"shelfLocation"`
	Status        CopyStatus    `json:"status"`
	Condition     CopyCondition `json:"condition"`
	Title         string        `json:"title"`
	ISBN          string        `json:"isbn"`
	Category      string        `json:"category"`
	Authors       []string      `json:"authors"`
}

// CatalogPage is a filtered, paginated slice of the catalog.
// Filtering is always applied before pagination.
type CatalogPage struct {
	Items      []CopyView `json:"items"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalPages int        `json:"totalPages"`
	TotalCount int64      `json:"totalCount"`
}

// LoanView is one row of a loan list view with derived display state
type LoanView struct {
	TransactionID uint       `json:"transactionId"`
	Title         string     `json:"title"`
	Barcode       string     `json:"barcode"`
	MemberName    string     `json:"memberName"`
	BorrowedAt    time.Time  `json:"borrowedAt"`
	DueDate       time.Time  `json:"dueDate"`
	ReturnedAt    *time.Time `json:"returnedAt,omitempty"`
	Status        string     `json:"status"`
	FineAmount    int        `json:"fineAmount"`
	FineState     string     `json:"fineState"`
}

// FineQuote is the advisory fine computation for an open loan
type FineQuote struct {
	TransactionID uint   `json:"transactionId"`
	Title         string `json:"title"`
	MemberName    string `json:"memberName"`
	DaysLate      int    `json:"daysLate"`
	Amount        int    `json:"amount"`
}

// MemberSummary is one row of the member picker on the borrow page
type MemberSummary struct {
	MemberID     uint   `json:"memberId"`
	Username     string `json:"username"`
	MembershipID string `json:"membershipId"`
	Department   string `json:"department"`
}

// LoanCandidate identifies one open loan when a title resolves ambiguously
type LoanCandidate struct {
	TransactionID uint      `json:"transactionId"`
	MemberName    string    `json:"memberName"`
	Barcode       string    `json:"barcode"`
	BorrowedAt    time.Time `json:"borrowedAt"`
	DueDate       time.Time `json:"dueDate"`
}
