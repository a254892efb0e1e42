// Command seedlibrary wipes the local library state and loads a small demo
// catalog with a bit of borrowing history, so recommendations have something
// to work with out of the box.
package main

import (
	"fmt"
	"os"

	"library-system/library"
)

type seedBook struct {
	id     string
	title  string
	author string
	genre  string
	copies int
}

type seedUser struct {
	id        string
	name      string
	interests []string
}

var seedBooks = []seedBook{
	{"b1", "Clean Code", "Robert C. Martin", "technology", 3},
	{"b2", "The Pragmatic Programmer", "Andrew Hunt", "technology", 2},
	{"b3", "1984", "George Orwell", "fiction", 2},
	{"b4", "To Kill a Mockingbird", "Harper Lee", "fiction", 1},
	{"b5", "Sapiens", "Yuval Noah Harari", "history", 2},
}

var seedUsers = []seedUser{
	{"u1", "Alice", []string{"technology", "history"}},
	{"u2", "Bob", []string{"fiction"}},
}

// seedLoans builds a little interaction history: each pair is borrowed and
// the odd indexes returned again, leaving graph edges and borrow counts
// behind.
var seedLoans = []struct {
	userID   string
	bookID   string
	returnIt bool
}{
	{"u1", "b1", false},
	{"u1", "b5", true},
	{"u2", "b3", false},
	{"u2", "b4", true},
}

func main() {
	cfg, err := library.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := library.NewLogger(cfg.LogLevel)

	// Start from scratch.
	fmt.Println("Cleaning up existing state files...")
	stateFiles := []string{cfg.DatabasePath, cfg.DatabasePath + "-shm", cfg.DatabasePath + "-wal", cfg.SnapshotPath}
	for _, file := range stateFiles {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: could not remove %s: %v\n", file, err)
		}
	}

	mgr, err := library.NewLibraryManager(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening library: %v\n", err)
		os.Exit(1)
	}
	defer mgr.Close()

	for _, b := range seedBooks {
		book := &library.Book{
			ID:              b.id,
			Title:           b.title,
			Author:          b.author,
			Genre:           b.genre,
			TotalCopies:     b.copies,
			AvailableCopies: b.copies,
		}
		if err := mgr.AddBook(book); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding book %s: %v\n", b.id, err)
			os.Exit(1)
		}
		fmt.Printf("Added book %s: %q by %s\n", b.id, b.title, b.author)
	}

	for _, u := range seedUsers {
		if err := mgr.AddUser(library.NewUser(u.id, u.name, u.interests...)); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding user %s: %v\n", u.id, err)
			os.Exit(1)
		}
		fmt.Printf("Added user %s: %s\n", u.id, u.name)
	}

	for _, loan := range seedLoans {
		if _, err := mgr.Borrow(loan.userID, loan.bookID); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding loan %s/%s: %v\n", loan.userID, loan.bookID, err)
			os.Exit(1)
		}
		if loan.returnIt {
			if _, err := mgr.Return(loan.userID, loan.bookID); err != nil {
				fmt.Fprintf(os.Stderr, "Error returning seed loan %s/%s: %v\n", loan.userID, loan.bookID, err)
				os.Exit(1)
			}
		}
	}

	fmt.Printf("\nSeed complete: %d books, %d users, %d loans recorded.\n", len(seedBooks), len(seedUsers), len(seedLoans))
}
