package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"library-catalog/library"
)

const defaultCatalogFile = "catalog.json"

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if v := os.Getenv("CATALOG_LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}

	// Pretty output on a terminal, JSON when redirected.
	if term.IsTerminal(int(os.Stderr.Fd())) {
		w := zerolog.ConsoleWriter{Out: os.Stderr}
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func main() {
	_ = godotenv.Load()

	catalogFile := os.Getenv("CATALOG_FILE")
	if catalogFile == "" {
		catalogFile = defaultCatalogFile
	}

	logger := newLogger()
	catalog := library.NewCatalog(logger)
	catalog.SetNotifier(func(n library.Notification) {
		fmt.Printf("Notification: '%s' is now available for %s (next in line).\n", n.BookTitle, n.UserName)
	})

	if _, err := os.Stat(catalogFile); err == nil {
		if err := catalog.LoadFile(catalogFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", catalogFile, err)
			os.Exit(1)
		}
	}

	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Welcome to the Library Catalog Manager!")
	fmt.Println("Available commands:")
	fmt.Println("  Books: add book, remove book, list books, search")
	fmt.Println("  Users: add user, remove user, list users")
	fmt.Println("  Circulation: borrow, return, reserve, cancel reservation")
	fmt.Println("  Reports: overdue, status")
	fmt.Println("  System: save, load, exit")

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		cmd := strings.TrimSpace(scanner.Text())

		switch cmd {
		case "add book":
			handleAddBook(scanner, catalog)
		case "remove book":
			handleRemoveBook(scanner, catalog)
		case "list books":
			handleListBooks(catalog)
		case "search":
			handleSearchBooks(scanner, catalog)
		case "add user":
			handleAddUser(scanner, catalog)
		case "remove user":
			handleRemoveUser(scanner, catalog)
		case "list users":
			handleListUsers(catalog)
		case "borrow":
			handleBorrow(scanner, catalog)
		case "return":
			handleReturn(scanner, catalog)
		case "reserve":
			handleReserve(scanner, catalog)
		case "cancel reservation":
			handleCancelReservation(scanner, catalog)
		case "overdue":
			handleOverdue(catalog)
		case "status":
			handleStatus(catalog)
		case "save":
			if err := catalog.SaveFile(catalogFile); err != nil {
				fmt.Printf("Error saving catalog: %v\n", err)
			} else {
				fmt.Printf("Catalog saved to %s\n", catalogFile)
			}
		case "load":
			if err := catalog.LoadFile(catalogFile); err != nil {
				fmt.Printf("Error loading catalog: %v\n", err)
			} else {
				fmt.Printf("Catalog loaded from %s\n", catalogFile)
			}
		case "exit", "quit":
			fmt.Println("Goodbye!")
			return
		case "":
			// Ignore empty input
		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}
	}
}

// prompt reads one trimmed line after printing label. ok is false on EOF.
func prompt(sc *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

func promptInt(sc *bufio.Scanner, label string) (int, bool) {
	s, ok := prompt(sc, label)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		fmt.Printf("Invalid number: %s\n", s)
		return 0, false
	}
	return n, true
}

func handleAddBook(sc *bufio.Scanner, c *library.Catalog) {
	title, ok := prompt(sc, "Title: ")
	if !ok {
		return
	}
	author, ok := prompt(sc, "Author: ")
	if !ok {
		return
	}
	copies, ok := promptInt(sc, "Copies: ")
	if !ok {
		return
	}

	b, err := c.AddBook(title, author, copies)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("'%s' now has %d copies (%d available).\n", b.Title, b.TotalCopies, b.AvailableCopies)
}

func handleRemoveBook(sc *bufio.Scanner, c *library.Catalog) {
	title, ok := prompt(sc, "Title: ")
	if !ok {
		return
	}
	if err := c.RemoveBook(title); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Removed '%s'.\n", title)
}

func handleListBooks(c *library.Catalog) {
	books := c.Books()
	if len(books) == 0 {
		fmt.Println("No books in catalog.")
		return
	}
	printBookTable(books)
}

func printBookTable(books []*library.Book) {
	fmt.Printf("%-35s %-25s %-12s %s\n", "Title", "Author", "Available", "Reservation Queue")
	fmt.Println(strings.Repeat("-", 100))
	for _, b := range books {
		queue := "None"
		if len(b.Reservations) > 0 {
			queue = strings.Join(b.Reservations, ", ")
		}
		avail := fmt.Sprintf("%d/%d", b.AvailableCopies, b.TotalCopies)
		fmt.Printf("%-35s %-25s %-12s %s\n", truncateString(b.Title, 35), truncateString(b.Author, 25), avail, queue)
	}
}

func handleSearchBooks(sc *bufio.Scanner, c *library.Catalog) {
	query, ok := prompt(sc, "Query: ")
	if !ok {
		return
	}
	books := c.SearchBooks(query)
	if len(books) == 0 {
		fmt.Printf("No books found matching '%s'.\n", query)
		return
	}
	fmt.Printf("Found %d book(s) matching '%s':\n", len(books), query)
	printBookTable(books)
}

func handleAddUser(sc *bufio.Scanner, c *library.Catalog) {
	name, ok := prompt(sc, "Name: ")
	if !ok {
		return
	}
	u, err := c.AddUser(name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Added user '%s' with ID %d\n", u.Name, u.ID)
}

func handleRemoveUser(sc *bufio.Scanner, c *library.Catalog) {
	id, ok := promptInt(sc, "User ID: ")
	if !ok {
		return
	}
	if err := c.RemoveUser(id); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Removed user %d.\n", id)
}

func handleListUsers(c *library.Catalog) {
	users := c.Users()
	if len(users) == 0 {
		fmt.Println("No users registered.")
		return
	}
	fmt.Printf("%-5s %-30s %s\n", "ID", "Name", "Active Loans")
	fmt.Println(strings.Repeat("-", 55))
	for _, u := range users {
		fmt.Printf("%-5d %-30s %d\n", u.ID, u.Name, len(u.Loans))
	}
}

func handleBorrow(sc *bufio.Scanner, c *library.Catalog) {
	id, ok := promptInt(sc, "User ID: ")
	if !ok {
		return
	}
	title, ok := prompt(sc, "Title: ")
	if !ok {
		return
	}

	loan, err := c.BorrowBook(id, title)
	if err != nil {
		if errors.Is(err, library.ErrNoCopiesAvailable) {
			fmt.Printf("No copies of '%s' available. Use 'reserve' to join the queue.\n", title)
			return
		}
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Borrowed '%s'. Due %s.\n", loan.BookTitle, loan.DueAt.Format("2006-01-02"))
}

func handleReturn(sc *bufio.Scanner, c *library.Catalog) {
	id, ok := promptInt(sc, "User ID: ")
	if !ok {
		return
	}
	title, ok := prompt(sc, "Title: ")
	if !ok {
		return
	}

	receipt, err := c.ReturnBook(id, title)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Returned '%s'.\n", title)
	if receipt.NextInLine != "" {
		fmt.Printf("%s is next in line for this title.\n", receipt.NextInLine)
	}
}

func handleReserve(sc *bufio.Scanner, c *library.Catalog) {
	id, ok := promptInt(sc, "User ID: ")
	if !ok {
		return
	}
	title, ok := prompt(sc, "Title: ")
	if !ok {
		return
	}

	pos, err := c.ReserveBook(id, title)
	if err != nil {
		if errors.Is(err, library.ErrAvailableNow) {
			fmt.Printf("'%s' has copies available. Use 'borrow' instead.\n", title)
			return
		}
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Reserved '%s'. You are number %d in the queue.\n", title, pos)
}

func handleCancelReservation(sc *bufio.Scanner, c *library.Catalog) {
	id, ok := promptInt(sc, "User ID: ")
	if !ok {
		return
	}
	title, ok := prompt(sc, "Title: ")
	if !ok {
		return
	}
	if err := c.CancelReservation(id, title); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Cancelled reservation for '%s'.\n", title)
}

func handleOverdue(c *library.Catalog) {
	overdue := c.ListOverdue()
	if len(overdue) == 0 {
		fmt.Println("No overdue loans.")
		return
	}
	fmt.Printf("%-5s %-25s %-35s %s\n", "ID", "User", "Title", "Due")
	fmt.Println(strings.Repeat("-", 90))
	for _, o := range overdue {
		fmt.Printf("%-5d %-25s %-35s %s\n", o.User.ID, o.User.Name, truncateString(o.Loan.BookTitle, 35), o.Loan.DueAt.Format("2006-01-02"))
	}
}

func handleStatus(c *library.Catalog) {
	r := c.StatusReport()
	fmt.Println("Catalog status:")
	fmt.Printf("  Unique titles:    %d\n", r.UniqueTitles)
	fmt.Printf("  Total copies:     %d\n", r.TotalCopies)
	if r.TotalCopies > 0 {
		fmt.Printf("  Available copies: %d (%.1f%%)\n", r.AvailableCopies, r.AvailablePct)
	} else {
		fmt.Printf("  Available copies: %d (N/A)\n", r.AvailableCopies)
	}
	fmt.Printf("  Users:            %d\n", r.Users)
	fmt.Printf("  Active loans:     %d\n", r.ActiveLoans)
	fmt.Printf("  Overdue loans:    %d\n", r.OverdueLoans)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
