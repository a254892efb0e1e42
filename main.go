package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"library-system/library"
)

var (
	configPath string
	cfg        *library.Config
	logger     zerolog.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "library-system",
		Short:         "Manage a library's inventory, borrowing and recommendations",
		Long:          "Library inventory and circulation manager with a FIFO backlog for unavailable titles and graph-based book recommendations.\nRun without arguments for the interactive shell, or use a subcommand for scripting.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = library.LoadConfig(configPath); err != nil {
				return err
			}
			logger = library.NewLogger(cfg.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(runShell)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		addBookCmd(), addUserCmd(), removeBookCmd(), removeUserCmd(),
		booksCmd(), usersCmd(), genresCmd(), searchCmd(),
		borrowCmd(), returnCmd(), pendingCmd(),
		topCmd(), recommendCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withManager opens the library, runs fn, and persists state on the way out.
func withManager(fn func(*library.LibraryManager) error) error {
	mgr, err := library.NewLibraryManager(cfg, logger)
	if err != nil {
		return err
	}
	if err := fn(mgr); err != nil {
		mgr.Close()
		return err
	}
	return mgr.Close()
}

func addBookCmd() *cobra.Command {
	var (
		title  string
		author string
		genre  string
		copies int
	)
	cmd := &cobra.Command{
		Use:   "add-book ID",
		Short: "Add a book (re-adding an id merges copy counts)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				book := &library.Book{
					ID:              args[0],
					Title:           title,
					Author:          author,
					Genre:           strings.ToLower(genre),
					TotalCopies:     copies,
					AvailableCopies: copies,
				}
				if err := mgr.AddBook(book); err != nil {
					return err
				}
				fmt.Printf("Added book %s: %q by %s (%d copies)\n", book.ID, book.Title, book.Author, book.TotalCopies)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "book title")
	cmd.Flags().StringVar(&author, "author", "", "book author")
	cmd.Flags().StringVar(&genre, "genre", "", "book genre")
	cmd.Flags().IntVar(&copies, "copies", 1, "number of copies")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("author")
	cmd.MarkFlagRequired("genre")
	return cmd
}

func addUserCmd() *cobra.Command {
	var (
		name      string
		interests []string
	)
	cmd := &cobra.Command{
		Use:   "add-user ID",
		Short: "Register a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				user := library.NewUser(args[0], name, interests...)
				if err := mgr.AddUser(user); err != nil {
					return err
				}
				fmt.Printf("Added user %s: %s (interests: %s)\n", user.ID, user.Name, strings.Join(user.Interests, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "user name")
	cmd.Flags().StringSliceVar(&interests, "interest", nil, "genre the user is interested in (repeatable)")
	cmd.MarkFlagRequired("name")
	return cmd
}

func removeBookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-book ID",
		Short: "Remove a book from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				if err := mgr.RemoveBook(args[0]); err != nil {
					return err
				}
				fmt.Printf("Removed book %s\n", args[0])
				return nil
			})
		},
	}
}

func removeUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-user ID",
		Short: "Remove a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				if err := mgr.RemoveUser(args[0]); err != nil {
					return err
				}
				fmt.Printf("Removed user %s\n", args[0])
				return nil
			})
		},
	}
}

func booksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				printBooks(mgr.AllBooks())
				return nil
			})
		},
	}
}

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				printUsers(mgr.AllUsers())
				return nil
			})
		},
	}
}

func genresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List the distinct genres in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				genres, err := mgr.Genres()
				if err != nil {
					return err
				}
				for _, genre := range genres {
					fmt.Println(genre)
				}
				return nil
			})
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Full-text search over title, author and genre",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				books, err := mgr.SearchBooks(strings.Join(args, " "))
				if err != nil {
					return err
				}
				printBooks(books)
				return nil
			})
		},
	}
}

func borrowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "borrow USER_ID BOOK_ID",
		Short: "Borrow a book, or queue a request if no copy is available",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				outcome, err := mgr.Borrow(args[0], args[1])
				if err != nil {
					return err
				}
				if outcome == library.OutcomeQueued {
					fmt.Printf("No copies of %s available; request queued at position %d\n", args[1], len(mgr.PendingRequests(args[1])))
				} else {
					fmt.Printf("User %s borrowed %s\n", args[0], args[1])
				}
				return nil
			})
		},
	}
}

func returnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "return USER_ID BOOK_ID",
		Short: "Return a book; the freed copy may go to the next queued request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				satisfied, err := mgr.Return(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Printf("User %s returned %s\n", args[0], args[1])
				if satisfied != nil {
					fmt.Printf("The copy went to user %s, next in the queue\n", satisfied.UserID)
				}
				return nil
			})
		},
	}
}

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending BOOK_ID",
		Short: "Show a book's backlog of queued borrow requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				printPending(mgr, args[0])
				return nil
			})
		},
	}
}

func topCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "top [K]",
		Short: "Show the most borrowed books",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := 5
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid k %q", args[0])
				}
				k = parsed
			}
			return withManager(func(mgr *library.LibraryManager) error {
				printBooks(mgr.TopKByBorrowCount(k))
				return nil
			})
		},
	}
}

func recommendCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recommend USER_ID",
		Short: "Recommend books for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mgr *library.LibraryManager) error {
				printRecommendations(mgr, args[0], limit)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum number of recommendations")
	return cmd
}

// notFound reports whether err is one of the unknown-id errors, which the
// shell reports without aborting.
func notFound(err error) bool {
	return errors.Is(err, library.ErrBookNotFound) || errors.Is(err, library.ErrUserNotFound)
}
