package library

import (
	"time"

	"github.com/google/uuid"
)

// LoanPeriod is the fixed interval between a loan's issue and due dates.
const LoanPeriod = 14 * 24 * time.Hour

// Book represents a title in the catalog together with its availability and
// the FIFO queue of user names waiting for it.
type Book struct {
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	TotalCopies     int      `json:"total_copies"`
	AvailableCopies int      `json:"available_copies"`
	Reservations    []string `json:"reservations"`
}

// User represents a registered library user and the loans they currently hold.
// IDs are assigned sequentially starting at 1 and are never reused.
type User struct {
	Name  string  `json:"name"`
	ID    int     `json:"user_id"`
	Loans []*Loan `json:"taken_books"`
}

// loanFor returns the user's loan of the given title, or nil.
func (u *User) loanFor(title string) *Loan {
	for _, l := range u.Loans {
		if l.BookTitle == title {
			return l
		}
	}
	return nil
}

// Loan links a user to a borrowed title. Its status is derived from the due
// date at read time, never stored.
type Loan struct {
	UserID    int       `json:"user_id"`
	BookTitle string    `json:"book_title"`
	IssuedAt  time.Time `json:"issue_date"`
	DueAt     time.Time `json:"due_date"`
}

// LoanStatus is the derived state of a loan relative to a point in time.
type LoanStatus string

const (
	LoanActive  LoanStatus = "ACTIVE"
	LoanOverdue LoanStatus = "OVERDUE"
)

// Status reports whether the loan is overdue as of now.
func (l *Loan) Status(now time.Time) LoanStatus {
	if now.After(l.DueAt) {
		return LoanOverdue
	}
	return LoanActive
}

// OverdueLoan pairs a loan with its owning user for overdue reports.
type OverdueLoan struct {
	User *User
	Loan *Loan
}

// ReturnReceipt describes the outcome of a successful return. NextInLine names
// the head of the reservation queue when somebody is waiting; it is empty
// otherwise. A non-empty NextInLine does not transfer the copy, the named user
// still has to borrow it.
type ReturnReceipt struct {
	Loan       Loan
	NextInLine string
}

// Notification is emitted when a returned copy should be offered to the head
// of the title's reservation queue.
type Notification struct {
	ID        uuid.UUID
	BookTitle string
	UserName  string
	At        time.Time
}

// NotifyFunc receives reservation notifications. The catalog calls it inline,
// so implementations should be quick and must not call back into the catalog.
type NotifyFunc func(Notification)

// Report aggregates catalog-wide counts for the status command.
type Report struct {
	UniqueTitles    int
	TotalCopies     int
	AvailableCopies int
	AvailablePct    float64
	Users           int
	ActiveLoans     int
	OverdueLoans    int
}
