package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Wire records for the snapshot document. Scalar fields are pointers so a
// missing field is distinguishable from a zero value: required fields must be
// present, while available_copies and reservations may be absent in snapshots
// written by a simpler schema and get defaulted on import.
type snapshotDoc struct {
	Books      []bookRecord `json:"books"`
	Users      []userRecord `json:"users"`
	NextUserID *int         `json:"next_user_id"`
}

type bookRecord struct {
	Title           *string  `json:"title"`
	Author          *string  `json:"author"`
	TotalCopies     *int     `json:"total_copies"`
	AvailableCopies *int     `json:"available_copies,omitempty"`
	Reservations    []string `json:"reservations,omitempty"`
}

func (r bookRecord) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NotNil),
		validation.Field(&r.Author, validation.NotNil),
		validation.Field(&r.TotalCopies, validation.NotNil, validation.Min(0)),
	)
}

type userRecord struct {
	Name       *string      `json:"name"`
	UserID     *int         `json:"user_id"`
	TakenBooks []loanRecord `json:"taken_books"`
}

func (r userRecord) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NotNil),
		validation.Field(&r.UserID, validation.NotNil, validation.Min(1)),
	)
}

type loanRecord struct {
	UserID    *int    `json:"user_id"`
	BookTitle *string `json:"book_title"`
	IssueDate *string `json:"issue_date"`
	DueDate   *string `json:"due_date"`
}

func (r loanRecord) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.NotNil),
		validation.Field(&r.BookTitle, validation.NotNil),
		validation.Field(&r.IssueDate, validation.NotNil),
		validation.Field(&r.DueDate, validation.NotNil),
	)
}

// Timestamps round-trip as RFC 3339 with nanoseconds so no precision is lost
// across export and import.
const timeLayout = time.RFC3339Nano

// Export serializes the whole catalog into a self-describing JSON snapshot.
// Exporting right after importing yields an equivalent document.
func (c *Catalog) Export() ([]byte, error) {
	doc := snapshotDoc{
		Books:      make([]bookRecord, 0, len(c.titleOrder)),
		Users:      []userRecord{},
		NextUserID: &c.nextUserID,
	}

	for _, title := range c.titleOrder {
		b := c.books[title]
		rec := bookRecord{
			Title:           &b.Title,
			Author:          &b.Author,
			TotalCopies:     &b.TotalCopies,
			AvailableCopies: &b.AvailableCopies,
			Reservations:    b.Reservations,
		}
		doc.Books = append(doc.Books, rec)
	}

	for _, u := range c.Users() {
		rec := userRecord{
			Name:       &u.Name,
			UserID:     &u.ID,
			TakenBooks: make([]loanRecord, 0, len(u.Loans)),
		}
		for _, l := range u.Loans {
			issue := l.IssuedAt.Format(timeLayout)
			due := l.DueAt.Format(timeLayout)
			rec.TakenBooks = append(rec.TakenBooks, loanRecord{
				UserID:    &l.UserID,
				BookTitle: &l.BookTitle,
				IssueDate: &issue,
				DueDate:   &due,
			})
		}
		doc.Users = append(doc.Users, rec)
	}

	data, err := codec.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Import replaces the whole in-memory state with the snapshot's contents.
// The document is parsed and validated in full before anything is swapped in,
// so a malformed snapshot leaves the current state untouched.
func (c *Catalog) Import(data []byte) error {
	var doc snapshotDoc
	if err := codec.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if doc.NextUserID == nil || *doc.NextUserID < 1 {
		return fmt.Errorf("%w: missing or invalid next_user_id", ErrMalformedSnapshot)
	}

	books := make(map[string]*Book, len(doc.Books))
	titleOrder := make([]string, 0, len(doc.Books))
	for i, rec := range doc.Books {
		if err := rec.validate(); err != nil {
			return fmt.Errorf("%w: books[%d]: %v", ErrMalformedSnapshot, i, err)
		}
		if _, dup := books[*rec.Title]; dup {
			return fmt.Errorf("%w: duplicate book title %q", ErrMalformedSnapshot, *rec.Title)
		}

		b := &Book{
			Title:       *rec.Title,
			Author:      *rec.Author,
			TotalCopies: *rec.TotalCopies,
			// Forward-compatible defaults for snapshots from a simpler schema.
			AvailableCopies: *rec.TotalCopies,
			Reservations:    []string{},
		}
		if rec.AvailableCopies != nil {
			b.AvailableCopies = *rec.AvailableCopies
		}
		if rec.Reservations != nil {
			b.Reservations = rec.Reservations
		}
		if b.AvailableCopies < 0 || b.AvailableCopies > b.TotalCopies {
			return fmt.Errorf("%w: book %q has %d/%d copies available", ErrMalformedSnapshot, b.Title, b.AvailableCopies, b.TotalCopies)
		}
		books[b.Title] = b
		titleOrder = append(titleOrder, b.Title)
	}

	users := make(map[int]*User, len(doc.Users))
	userIDs := make(map[string]int, len(doc.Users))
	for i, rec := range doc.Users {
		if err := rec.validate(); err != nil {
			return fmt.Errorf("%w: users[%d]: %v", ErrMalformedSnapshot, i, err)
		}
		if _, dup := users[*rec.UserID]; dup {
			return fmt.Errorf("%w: duplicate user id %d", ErrMalformedSnapshot, *rec.UserID)
		}
		key := strings.ToLower(*rec.Name)
		if _, dup := userIDs[key]; dup {
			return fmt.Errorf("%w: duplicate user name %q", ErrMalformedSnapshot, *rec.Name)
		}

		u := &User{Name: *rec.Name, ID: *rec.UserID, Loans: make([]*Loan, 0, len(rec.TakenBooks))}
		for j, lr := range rec.TakenBooks {
			loan, err := loanFromRecord(lr)
			if err != nil {
				return fmt.Errorf("%w: users[%d].taken_books[%d]: %v", ErrMalformedSnapshot, i, j, err)
			}
			u.Loans = append(u.Loans, loan)
		}
		users[u.ID] = u
		userIDs[key] = u.ID
	}

	c.books = books
	c.titleOrder = titleOrder
	c.users = users
	c.userIDs = userIDs
	c.nextUserID = *doc.NextUserID
	c.log.Info().Int("books", len(books)).Int("users", len(users)).Msg("snapshot imported")
	return nil
}

// loanFromRecord reconstructs a persisted loan, parsing its timestamps back
// from their textual form.
func loanFromRecord(r loanRecord) (*Loan, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	issuedAt, err := time.Parse(timeLayout, *r.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("issue_date: %v", err)
	}
	dueAt, err := time.Parse(timeLayout, *r.DueDate)
	if err != nil {
		return nil, fmt.Errorf("due_date: %v", err)
	}
	return &Loan{
		UserID:    *r.UserID,
		BookTitle: *r.BookTitle,
		IssuedAt:  issuedAt,
		DueAt:     dueAt,
	}, nil
}

// ---------------------------------------------------------------------------
// File persistence
// ---------------------------------------------------------------------------

// SaveFile writes the snapshot to path atomically: the document lands in a
// temp file first and is renamed over the target only once fully written.
func (c *Catalog) SaveFile(path string) error {
	data, err := c.Export()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot: %w", err)
	}
	c.log.Info().Str("path", path).Int("bytes", len(data)).Msg("catalog saved")
	return nil
}

// LoadFile reads the snapshot at path and imports it. On any failure the
// in-memory state is left exactly as it was.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := c.Import(data); err != nil {
		return err
	}
	c.log.Info().Str("path", path).Msg("catalog loaded")
	return nil
}
