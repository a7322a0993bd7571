package services

import "errors"

// Business-rule and lookup failures surfaced to handlers. All of them are
// recovered at the request boundary and shown as in-page messages; none are
// fatal and nothing is retried.
var (
	// ErrInvalidCredentials - username unknown or password mismatch
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateUsername - registration attempted with a taken username
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrBorrowLimitExceeded - the member already has the maximum open loans
	ErrBorrowLimitExceeded = errors.New("borrow limit exceeded")

	// ErrNoAvailableCopy - no available copy exists for the requested title
	ErrNoAvailableCopy = errors.New("no available copy for this book")

	// ErrNoOpenLoan - no open transaction matches the given title or id
	ErrNoOpenLoan = errors.New("no borrowed transaction found")

	// ErrAmbiguousLoan - multiple open loans match a title and no
	// disambiguating member or transaction id was supplied
	ErrAmbiguousLoan = errors.New("multiple open loans match this title")

	// ErrMemberNotFound - the named member profile does not exist
	ErrMemberNotFound = errors.New("member not found")
)
