package library

import (
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Catalog owns all books, users and loans and enforces the borrowing and
// reservation rules. It is the single unit of mutation: every operation
// either completes fully or leaves state untouched. The catalog is not safe
// for concurrent use; callers invoke one operation at a time.
type Catalog struct {
	books      map[string]*Book // key: exact title
	titleOrder []string         // insertion order, kept for display
	users      map[int]*User
	userIDs    map[string]int // key: lowercased name
	nextUserID int

	now    func() time.Time
	log    zerolog.Logger
	notify NotifyFunc
}

// NewCatalog returns an empty catalog.
func NewCatalog(log zerolog.Logger) *Catalog {
	return &Catalog{
		books:      make(map[string]*Book),
		users:      make(map[int]*User),
		userIDs:    make(map[string]int),
		nextUserID: 1,
		now:        time.Now,
		log:        log,
	}
}

// SetNotifier installs the sink for reservation notifications. A nil sink
// disables them; the events are still logged either way.
func (c *Catalog) SetNotifier(fn NotifyFunc) { c.notify = fn }

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

// AddBook registers copies of a title. Adding a title that already exists
// merges into it: total and available counts both grow by copies.
func (c *Catalog) AddBook(title, author string, copies int) (*Book, error) {
	if err := validation.Validate(copies, validation.Required, validation.Min(1)); err != nil {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeCopies, copies)
	}

	if b, ok := c.books[title]; ok {
		b.TotalCopies += copies
		b.AvailableCopies += copies
		c.log.Info().Str("title", title).Int("added", copies).Int("total", b.TotalCopies).Msg("book copies merged")
		return b, nil
	}

	b := &Book{
		Title:           title,
		Author:          author,
		TotalCopies:     copies,
		AvailableCopies: copies,
		Reservations:    []string{},
	}
	c.books[title] = b
	c.titleOrder = append(c.titleOrder, title)
	c.log.Info().Str("title", title).Str("author", author).Int("copies", copies).Msg("book added")
	return b, nil
}

// RemoveBook deletes a title. It refuses while any copy is checked out or
// anyone is waiting in the reservation queue.
func (c *Catalog) RemoveBook(title string) error {
	b, ok := c.books[title]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBookNotFound, title)
	}
	if b.AvailableCopies < b.TotalCopies {
		return fmt.Errorf("%w: %q", ErrBookInUse, title)
	}
	if len(b.Reservations) > 0 {
		return fmt.Errorf("%w: %q", ErrReservationPending, title)
	}

	delete(c.books, title)
	for i, t := range c.titleOrder {
		if t == title {
			c.titleOrder = append(c.titleOrder[:i], c.titleOrder[i+1:]...)
			break
		}
	}
	c.log.Info().Str("title", title).Msg("book removed")
	return nil
}

// GetBook fetches a single book by exact title.
func (c *Catalog) GetBook(title string) (*Book, error) {
	b, ok := c.books[title]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBookNotFound, title)
	}
	return b, nil
}

// Books returns all books in the order they were first added.
func (c *Catalog) Books() []*Book {
	out := make([]*Book, 0, len(c.titleOrder))
	for _, t := range c.titleOrder {
		out = append(out, c.books[t])
	}
	return out
}

// SearchBooks returns books whose title or author contains q,
// case-insensitively. A blank query matches nothing.
func (c *Catalog) SearchBooks(q string) []*Book {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []*Book{}
	}
	var out []*Book
	for _, t := range c.titleOrder {
		b := c.books[t]
		if strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.Author), q) {
			out = append(out, b)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// AddUser registers a user under the next sequential id. Names are unique
// ignoring case; ids are never reused, even after removals.
func (c *Catalog) AddUser(name string) (*User, error) {
	key := strings.ToLower(name)
	if _, ok := c.userIDs[key]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateUser, name)
	}

	u := &User{Name: name, ID: c.nextUserID, Loans: []*Loan{}}
	c.users[u.ID] = u
	c.userIDs[key] = u.ID
	c.nextUserID++
	c.log.Info().Str("name", name).Int("user_id", u.ID).Msg("user added")
	return u, nil
}

// RemoveUser deletes a user. It refuses while the user holds any loan.
func (c *Catalog) RemoveUser(userID int) error {
	u, ok := c.users[userID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	if len(u.Loans) > 0 {
		return fmt.Errorf("%w: %q holds %d", ErrUserHasLoans, u.Name, len(u.Loans))
	}

	delete(c.users, userID)
	delete(c.userIDs, strings.ToLower(u.Name))
	c.log.Info().Int("user_id", userID).Msg("user removed")
	return nil
}

// GetUser fetches a single user by id.
func (c *Catalog) GetUser(userID int) (*User, error) {
	u, ok := c.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	return u, nil
}

// FindUserByName looks a user up by name, ignoring case.
func (c *Catalog) FindUserByName(name string) (*User, error) {
	id, ok := c.userIDs[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, name)
	}
	return c.users[id], nil
}

// Users returns all users ordered by id.
func (c *Catalog) Users() []*User {
	ids := make([]int, 0, len(c.users))
	for id := range c.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*User, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.users[id])
	}
	return out
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

// BorrowBook lends one copy of title to the user for the fixed loan period.
//
// A non-empty reservation queue earmarks the title for its head: anyone else
// is refused even when spare copies sit on the shelf. A borrow by the head
// consumes their queue entry.
func (c *Catalog) BorrowBook(userID int, title string) (*Loan, error) {
	u, ok := c.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	b, ok := c.books[title]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBookNotFound, title)
	}

	if b.AvailableCopies <= 0 {
		return nil, fmt.Errorf("%w: %q, reserve it instead", ErrNoCopiesAvailable, title)
	}
	if u.loanFor(title) != nil {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyBorrowed, title)
	}
	if len(b.Reservations) > 0 && b.Reservations[0] != u.Name {
		return nil, fmt.Errorf("%w: %q is next in line", ErrReservedByOther, b.Reservations[0])
	}
	if len(b.Reservations) > 0 {
		b.Reservations = b.Reservations[1:]
	}

	now := c.now()
	loan := &Loan{
		UserID:    userID,
		BookTitle: title,
		IssuedAt:  now,
		DueAt:     now.Add(LoanPeriod),
	}
	u.Loans = append(u.Loans, loan)
	b.AvailableCopies--
	c.log.Info().Int("user_id", userID).Str("title", title).Time("due", loan.DueAt).Msg("book borrowed")
	return loan, nil
}

// ReturnBook takes back the user's copy of title. When somebody is waiting in
// the reservation queue, the receipt names the head and a notification is
// emitted; the copy is not assigned automatically.
func (c *Catalog) ReturnBook(userID int, title string) (*ReturnReceipt, error) {
	u, ok := c.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	b, ok := c.books[title]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBookNotFound, title)
	}
	loan := u.loanFor(title)
	if loan == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchLoan, title)
	}

	for i, l := range u.Loans {
		if l == loan {
			u.Loans = append(u.Loans[:i], u.Loans[i+1:]...)
			break
		}
	}
	b.AvailableCopies++
	c.log.Info().Int("user_id", userID).Str("title", title).Msg("book returned")

	receipt := &ReturnReceipt{Loan: *loan}
	if len(b.Reservations) > 0 {
		receipt.NextInLine = b.Reservations[0]
		c.emitNotification(b.Title, receipt.NextInLine)
	}
	return receipt, nil
}

// ReserveBook queues the user for a title that is out of stock and reports
// their 1-based queue position. Reserving an in-stock title is refused, the
// queue only arbitrates access while supply is zero.
func (c *Catalog) ReserveBook(userID int, title string) (int, error) {
	u, ok := c.users[userID]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	b, ok := c.books[title]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBookNotFound, title)
	}

	if b.AvailableCopies > 0 {
		return 0, fmt.Errorf("%w: %q", ErrAvailableNow, title)
	}
	for _, name := range b.Reservations {
		if name == u.Name {
			return 0, fmt.Errorf("%w: %q", ErrAlreadyReserved, title)
		}
	}

	b.Reservations = append(b.Reservations, u.Name)
	pos := len(b.Reservations)
	c.log.Info().Int("user_id", userID).Str("title", title).Int("position", pos).Msg("reservation placed")
	return pos, nil
}

// CancelReservation removes the user's entry from a title's queue, wherever
// it sits.
func (c *Catalog) CancelReservation(userID int, title string) error {
	u, ok := c.users[userID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	b, ok := c.books[title]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBookNotFound, title)
	}

	for i, name := range b.Reservations {
		if name == u.Name {
			b.Reservations = append(b.Reservations[:i], b.Reservations[i+1:]...)
			c.log.Info().Int("user_id", userID).Str("title", title).Msg("reservation cancelled")
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrNoSuchReservation, title)
}

func (c *Catalog) emitNotification(title, userName string) {
	n := Notification{
		ID:        uuid.New(),
		BookTitle: title,
		UserName:  userName,
		At:        c.now(),
	}
	c.log.Info().Stringer("notification_id", n.ID).Str("title", title).Str("user", userName).Msg("copy available for reservation head")
	if c.notify != nil {
		c.notify(n)
	}
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

// ListOverdue returns every loan past its due date, ordered by user id.
func (c *Catalog) ListOverdue() []OverdueLoan {
	now := c.now()
	var out []OverdueLoan
	for _, u := range c.Users() {
		for _, l := range u.Loans {
			if l.Status(now) == LoanOverdue {
				out = append(out, OverdueLoan{User: u, Loan: l})
			}
		}
	}
	return out
}

// StatusReport aggregates catalog-wide counts. AvailablePct is 0 when the
// catalog holds no copies at all.
func (c *Catalog) StatusReport() Report {
	r := Report{
		UniqueTitles: len(c.books),
		Users:        len(c.users),
		OverdueLoans: len(c.ListOverdue()),
	}
	for _, b := range c.books {
		r.TotalCopies += b.TotalCopies
		r.AvailableCopies += b.AvailableCopies
	}
	if r.TotalCopies > 0 {
		r.AvailablePct = float64(r.AvailableCopies) / float64(r.TotalCopies) * 100
	}
	for _, u := range c.users {
		r.ActiveLoans += len(u.Loans)
	}
	return r
}
