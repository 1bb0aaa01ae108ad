package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seededCatalog builds a catalog with books, reservations and sub-second loan
// timestamps, exercising everything the snapshot has to carry.
func seededCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := newTestCatalog(t)
	c.now = func() time.Time {
		return time.Date(2026, 3, 1, 9, 30, 15, 123456789, time.UTC)
	}

	_, err := c.AddBook("Dune", "Frank Herbert", 2)
	require.NoError(t, err)
	_, err = c.AddBook("Hamlet", "William Shakespeare", 1)
	require.NoError(t, err)

	ids := addUsers(t, c, "Alice", "Bob", "Carol")
	_, err = c.BorrowBook(ids[0], "Dune")
	require.NoError(t, err)
	_, err = c.BorrowBook(ids[1], "Hamlet")
	require.NoError(t, err)
	_, err = c.ReserveBook(ids[2], "Hamlet")
	require.NoError(t, err)
	return c
}

func TestExportImportRoundTrip(t *testing.T) {
	src := seededCatalog(t)
	data, err := src.Export()
	require.NoError(t, err)

	dst := newTestCatalog(t)
	require.NoError(t, dst.Import(data))

	// Exporting again yields an equivalent document.
	again, err := dst.Export()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))

	// Spot-check reconstructed state.
	hamlet, err := dst.GetBook("Hamlet")
	require.NoError(t, err)
	assert.Equal(t, 0, hamlet.AvailableCopies)
	assert.Equal(t, []string{"Carol"}, hamlet.Reservations)

	alice, err := dst.FindUserByName("alice")
	require.NoError(t, err)
	require.Len(t, alice.Loans, 1)
	srcLoan := src.users[alice.ID].Loans[0]
	assert.True(t, alice.Loans[0].IssuedAt.Equal(srcLoan.IssuedAt), "issue timestamp must survive to sub-second precision")
	assert.True(t, alice.Loans[0].DueAt.Equal(srcLoan.DueAt))

	// The id counter carries over: the next user continues the sequence.
	u, err := dst.AddUser("Dave")
	require.NoError(t, err)
	assert.Equal(t, 4, u.ID)
}

func TestImportDefaultsOptionalBookFields(t *testing.T) {
	doc := `{
		"books": [{"title": "Dune", "author": "Frank Herbert", "total_copies": 2}],
		"users": [],
		"next_user_id": 1
	}`

	c := newTestCatalog(t)
	require.NoError(t, c.Import([]byte(doc)))

	b, err := c.GetBook("Dune")
	require.NoError(t, err)
	assert.Equal(t, 2, b.AvailableCopies)
	assert.Empty(t, b.Reservations)
}

func TestImportRejectsMalformedDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"books": [`},
		{"missing next_user_id", `{"books": [], "users": []}`},
		{"zero next_user_id", `{"books": [], "users": [], "next_user_id": 0}`},
		{"book missing title", `{"books": [{"author": "A", "total_copies": 1}], "users": [], "next_user_id": 1}`},
		{"book missing author", `{"books": [{"title": "T", "total_copies": 1}], "users": [], "next_user_id": 1}`},
		{"book missing total_copies", `{"books": [{"title": "T", "author": "A"}], "users": [], "next_user_id": 1}`},
		{"negative total_copies", `{"books": [{"title": "T", "author": "A", "total_copies": -1}], "users": [], "next_user_id": 1}`},
		{"available exceeds total", `{"books": [{"title": "T", "author": "A", "total_copies": 1, "available_copies": 2}], "users": [], "next_user_id": 1}`},
		{"duplicate title", `{"books": [{"title": "T", "author": "A", "total_copies": 1}, {"title": "T", "author": "B", "total_copies": 1}], "users": [], "next_user_id": 1}`},
		{"user missing name", `{"books": [], "users": [{"user_id": 1}], "next_user_id": 2}`},
		{"user missing id", `{"books": [], "users": [{"name": "Alice"}], "next_user_id": 2}`},
		{"duplicate user name", `{"books": [], "users": [{"name": "Alice", "user_id": 1}, {"name": "ALICE", "user_id": 2}], "next_user_id": 3}`},
		{"loan missing due_date", `{"books": [], "users": [{"name": "Alice", "user_id": 1, "taken_books": [{"user_id": 1, "book_title": "T", "issue_date": "2026-03-01T09:30:15Z"}]}], "next_user_id": 2}`},
		{"loan bad timestamp", `{"books": [], "users": [{"name": "Alice", "user_id": 1, "taken_books": [{"user_id": 1, "book_title": "T", "issue_date": "yesterday", "due_date": "2026-03-15T09:30:15Z"}]}], "next_user_id": 2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCatalog(t)
			err := c.Import([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrMalformedSnapshot)
		})
	}
}

func TestImportFailureLeavesStateUntouched(t *testing.T) {
	c := seededCatalog(t)

	err := c.Import([]byte(`{"books": [], "users": []}`))
	require.ErrorIs(t, err, ErrMalformedSnapshot)

	// Prior state survives intact.
	assert.Len(t, c.Books(), 2)
	assert.Len(t, c.Users(), 3)
	alice, err := c.FindUserByName("Alice")
	require.NoError(t, err)
	assert.Len(t, alice.Loans, 1)
}

func TestImportReplacesWholeState(t *testing.T) {
	c := seededCatalog(t)

	require.NoError(t, c.Import([]byte(`{"books": [], "users": [], "next_user_id": 7}`)))
	assert.Empty(t, c.Books())
	assert.Empty(t, c.Users())

	u, err := c.AddUser("Erin")
	require.NoError(t, err)
	assert.Equal(t, 7, u.ID)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "catalog.json")

	src := seededCatalog(t)
	require.NoError(t, src.SaveFile(path))

	dst := newTestCatalog(t)
	require.NoError(t, dst.LoadFile(path))

	want, err := src.Export()
	require.NoError(t, err)
	got, err := dst.Export()
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "catalog.json", entries[0].Name())
}

func TestLoadFileMissing(t *testing.T) {
	c := seededCatalog(t)

	err := c.LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedSnapshot)

	// Read failure leaves memory unchanged too.
	assert.Len(t, c.Books(), 2)
}

func TestLoadFileCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o644))

	c := seededCatalog(t)
	err := c.LoadFile(path)
	assert.ErrorIs(t, err, ErrMalformedSnapshot)
	assert.Len(t, c.Users(), 3)
}
