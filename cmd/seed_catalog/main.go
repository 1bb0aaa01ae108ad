package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"library-catalog/library"
)

type seedBook struct {
	title  string
	author string
	copies int
}

var seedBooks = []seedBook{
	{"1984", "George Orwell", 3},
	{"Animal Farm", "George Orwell", 2},
	{"The Art of War", "Sun Tzu", 1},
	{"The Fellowship of the Ring", "J.R.R. Tolkien", 2},
	{"The Two Towers", "J.R.R. Tolkien", 2},
	{"The Return of the King", "J.R.R. Tolkien", 2},
	{"Romeo and Juliet", "William Shakespeare", 1},
	{"The Three Musketeers", "Alexandre Dumas", 1},
	{"Dune", "Frank Herbert", 2},
}

var seedUsers = []string{"Alice", "Bob", "Charlie"}

func main() {
	var (
		file  string
		force bool
	)

	root := &cobra.Command{
		Use:   "seed_catalog",
		Short: "Write a demo catalog snapshot for trying out the shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(file); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", file)
			}

			catalog := library.NewCatalog(zerolog.Nop())
			for _, b := range seedBooks {
				if _, err := catalog.AddBook(b.title, b.author, b.copies); err != nil {
					return fmt.Errorf("seed book %q: %w", b.title, err)
				}
			}
			for _, name := range seedUsers {
				if _, err := catalog.AddUser(name); err != nil {
					return fmt.Errorf("seed user %q: %w", name, err)
				}
			}

			if err := catalog.SaveFile(file); err != nil {
				return err
			}

			r := catalog.StatusReport()
			fmt.Printf("Seeded %d titles (%d copies) and %d users into %s\n", r.UniqueTitles, r.TotalCopies, r.Users, file)
			return nil
		},
	}

	root.Flags().StringVarP(&file, "file", "f", "catalog.json", "snapshot file to write")
	root.Flags().BoolVar(&force, "force", false, "overwrite an existing snapshot")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
