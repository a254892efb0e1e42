package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"library-system/library"
)

// runShell drives the interactive session, the default mode of the binary.
func runShell(mgr *library.LibraryManager) error {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Welcome to the Library Management System!")
	fmt.Println("Available commands:")
	fmt.Println("  Catalog: add book, remove book, list books, search, genres")
	fmt.Println("  Users: add user, remove user, list users")
	fmt.Println("  Circulation: borrow, return, pending")
	fmt.Println("  Discovery: top books, recommend")
	fmt.Println("  System: save, exit")

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		cmd := strings.TrimSpace(scanner.Text())

		switch cmd {
		case "add book":
			handleAddBook(scanner, mgr)
		case "remove book":
			handleRemoveBook(scanner, mgr)
		case "list books":
			printBooks(mgr.AllBooks())
		case "search":
			handleSearch(scanner, mgr)
		case "genres":
			handleGenres(mgr)
		case "add user":
			handleAddUser(scanner, mgr)
		case "remove user":
			handleRemoveUser(scanner, mgr)
		case "list users":
			printUsers(mgr.AllUsers())
		case "borrow":
			handleBorrow(scanner, mgr)
		case "return":
			handleReturn(scanner, mgr)
		case "pending":
			handlePending(scanner, mgr)
		case "top books":
			handleTopBooks(scanner, mgr)
		case "recommend":
			handleRecommend(scanner, mgr)
		case "save":
			if err := mgr.Save(); err != nil {
				fmt.Printf("Error saving: %v\n", err)
			} else {
				fmt.Println("State saved.")
			}
		case "exit":
			fmt.Println("Goodbye!")
			return nil
		case "":
			continue
		default:
			fmt.Println("Unknown command. Type one of the available commands listed above.")
		}
	}
	return nil
}

// prompt reads one trimmed line after printing a label. ok is false when
// stdin closed.
func prompt(sc *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

// promptInt keeps asking until it gets an integer within [min, max].
func promptInt(sc *bufio.Scanner, label string, min, max int) (int, bool) {
	for {
		raw, ok := prompt(sc, label)
		if !ok {
			return 0, false
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			fmt.Println("Invalid number. Try again.")
			continue
		}
		if value < min || value > max {
			fmt.Printf("Value must be between %d and %d.\n", min, max)
			continue
		}
		return value, true
	}
}

func handleAddBook(sc *bufio.Scanner, mgr *library.LibraryManager) {
	id, ok := prompt(sc, "Book ID: ")
	if !ok {
		return
	}
	title, ok := prompt(sc, "Title: ")
	if !ok {
		return
	}
	author, ok := prompt(sc, "Author: ")
	if !ok {
		return
	}
	genre, ok := prompt(sc, "Genre: ")
	if !ok {
		return
	}
	copies, ok := promptInt(sc, "Copies: ", 0, 1_000_000)
	if !ok {
		return
	}

	book := &library.Book{
		ID:              id,
		Title:           title,
		Author:          author,
		Genre:           strings.ToLower(genre),
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	if err := mgr.AddBook(book); err != nil {
		fmt.Printf("Error adding book: %v\n", err)
		return
	}
	fmt.Printf("Added book %s: %q by %s (%d copies)\n", book.ID, book.Title, book.Author, book.TotalCopies)
}

func handleRemoveBook(sc *bufio.Scanner, mgr *library.LibraryManager) {
	id, ok := prompt(sc, "Book ID: ")
	if !ok {
		return
	}
	if err := mgr.RemoveBook(id); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Removed book %s\n", id)
}

func handleSearch(sc *bufio.Scanner, mgr *library.LibraryManager) {
	query, ok := prompt(sc, "Search query: ")
	if !ok || query == "" {
		return
	}
	books, err := mgr.SearchBooks(query)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printBooks(books)
}

func handleGenres(mgr *library.LibraryManager) {
	genres, err := mgr.Genres()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(genres) == 0 {
		fmt.Println("No genres in catalog.")
		return
	}
	fmt.Println(strings.Join(genres, ", "))
}

func handleAddUser(sc *bufio.Scanner, mgr *library.LibraryManager) {
	id, ok := prompt(sc, "User ID: ")
	if !ok {
		return
	}
	name, ok := prompt(sc, "Name: ")
	if !ok {
		return
	}
	rawInterests, ok := prompt(sc, "Interests (comma-separated genres): ")
	if !ok {
		return
	}

	user := library.NewUser(id, name, strings.Split(rawInterests, ",")...)
	if err := mgr.AddUser(user); err != nil {
		fmt.Printf("Error adding user: %v\n", err)
		return
	}
	fmt.Printf("Added user %s: %s (interests: %s)\n", user.ID, user.Name, strings.Join(user.Interests, ", "))
}

func handleRemoveUser(sc *bufio.Scanner, mgr *library.LibraryManager) {
	id, ok := prompt(sc, "User ID: ")
	if !ok {
		return
	}
	if err := mgr.RemoveUser(id); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Removed user %s\n", id)
}

func handleBorrow(sc *bufio.Scanner, mgr *library.LibraryManager) {
	userID, ok := prompt(sc, "User ID: ")
	if !ok {
		return
	}
	bookID, ok := prompt(sc, "Book ID: ")
	if !ok {
		return
	}

	outcome, err := mgr.Borrow(userID, bookID)
	if err != nil {
		if notFound(err) {
			fmt.Printf("Error: %v. Use 'list books' and 'list users' to check ids.\n", err)
		} else {
			fmt.Printf("Error: %v\n", err)
		}
		return
	}
	if outcome == library.OutcomeQueued {
		fmt.Printf("No copies available; request queued at position %d.\n", len(mgr.PendingRequests(bookID)))
		return
	}
	fmt.Printf("User %s borrowed %s.\n", userID, bookID)
}

func handleReturn(sc *bufio.Scanner, mgr *library.LibraryManager) {
	userID, ok := prompt(sc, "User ID: ")
	if !ok {
		return
	}
	bookID, ok := prompt(sc, "Book ID: ")
	if !ok {
		return
	}

	satisfied, err := mgr.Return(userID, bookID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("User %s returned %s.\n", userID, bookID)
	if satisfied != nil {
		fmt.Printf("The copy went to user %s, next in the queue.\n", satisfied.UserID)
	}
}

func handlePending(sc *bufio.Scanner, mgr *library.LibraryManager) {
	bookID, ok := prompt(sc, "Book ID: ")
	if !ok {
		return
	}
	printPending(mgr, bookID)
}

func handleTopBooks(sc *bufio.Scanner, mgr *library.LibraryManager) {
	k, ok := promptInt(sc, "How many books? ", 1, 1_000_000)
	if !ok {
		return
	}
	printBooks(mgr.TopKByBorrowCount(k))
}

func handleRecommend(sc *bufio.Scanner, mgr *library.LibraryManager) {
	userID, ok := prompt(sc, "User ID: ")
	if !ok {
		return
	}
	limit, ok := promptInt(sc, "How many recommendations? ", 1, 100)
	if !ok {
		return
	}
	printRecommendations(mgr, userID, limit)
}

// ------------------ Output helpers ------------------

func printBooks(books []*library.Book) {
	if len(books) == 0 {
		fmt.Println("No books found.")
		return
	}
	fmt.Printf("%-8s %-35s %-25s %-15s %-10s %s\n", "ID", "Title", "Author", "Genre", "Avail", "Borrows")
	fmt.Println(strings.Repeat("-", 105))
	for _, b := range books {
		fmt.Printf("%-8s %-35s %-25s %-15s %d/%-8d %d\n",
			b.ID,
			truncate(b.Title, 35),
			truncate(b.Author, 25),
			truncate(b.Genre, 15),
			b.AvailableCopies, b.TotalCopies,
			b.BorrowCount)
	}
}

func printUsers(users []*library.User) {
	if len(users) == 0 {
		fmt.Println("No users registered.")
		return
	}
	fmt.Printf("%-8s %-25s %-30s %s\n", "ID", "Name", "Interests", "Borrowed")
	fmt.Println(strings.Repeat("-", 95))
	for _, u := range users {
		borrowed := strings.Join(u.HeldBooks(), ", ")
		if borrowed == "" {
			borrowed = "-"
		}
		fmt.Printf("%-8s %-25s %-30s %s\n",
			u.ID,
			truncate(u.Name, 25),
			truncate(strings.Join(u.Interests, ", "), 30),
			borrowed)
	}
}

func printPending(mgr *library.LibraryManager, bookID string) {
	pending := mgr.PendingRequests(bookID)
	if len(pending) == 0 {
		fmt.Printf("No pending requests for %s.\n", bookID)
		return
	}
	fmt.Printf("Backlog for %s:\n", bookID)
	for i, request := range pending {
		fmt.Printf("  %d. user %s (requested %s)\n", i+1, request.UserID, request.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func printRecommendations(mgr *library.LibraryManager, userID string, limit int) {
	recommendations := mgr.Recommend(userID, limit)
	if len(recommendations) == 0 {
		fmt.Printf("No recommendations for %s.\n", userID)
		return
	}
	fmt.Printf("Recommended for %s:\n", userID)
	for i, bookID := range recommendations {
		if book, err := mgr.GetBook(bookID); err == nil {
			fmt.Printf("  %d. %s: %q by %s (%s)\n", i+1, book.ID, book.Title, book.Author, book.Genre)
		} else {
			fmt.Printf("  %d. %s\n", i+1, bookID)
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
