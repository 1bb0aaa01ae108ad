package library

import "errors"

// Validation errors
var (
	ErrNegativeCopies = errors.New("copy count must be a positive integer")
	ErrDuplicateUser  = errors.New("a user with this name already exists")
)

// Not-found errors
var (
	ErrBookNotFound = errors.New("book not found")
	ErrUserNotFound = errors.New("user not found")
)

// Conflict / precondition errors
var (
	ErrBookInUse          = errors.New("book has copies checked out")
	ErrReservationPending = errors.New("book has pending reservations")
	ErrUserHasLoans       = errors.New("user still holds borrowed books")
	ErrAlreadyBorrowed    = errors.New("user already holds a loan of this title")
	ErrNoCopiesAvailable  = errors.New("no copies available")
	ErrReservedByOther    = errors.New("book is reserved by another user")
	ErrNoSuchLoan         = errors.New("user holds no loan of this title")
	ErrAvailableNow       = errors.New("book is available now, borrow it instead")
	ErrAlreadyReserved    = errors.New("user already has a reservation for this title")
	ErrNoSuchReservation  = errors.New("user has no reservation for this title")
)

// Persistence errors
var (
	ErrMalformedSnapshot = errors.New("snapshot document is malformed")
)
