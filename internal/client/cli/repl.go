package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface defines the command surface the REPL dispatches to.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Accounts(ctx context.Context, args []string) error
	AddAccount(ctx context.Context, args []string) error
	EditAccount(ctx context.Context, args []string) error
	DeleteAccount(ctx context.Context, args []string) error
	Categories(ctx context.Context, args []string) error
	AddCategory(ctx context.Context, args []string) error
	DeleteCategory(ctx context.Context, args []string) error
	Reorder(ctx context.Context, args []string) error
	Transactions(ctx context.Context, args []string) error
	AddTransaction(ctx context.Context, args []string) error
	DeleteTransaction(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Refresh(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Pending(ctx context.Context, args []string) error
}

const helpText = `Commands:
  accounts                        list accounts with balances
  addaccount                      add an account
  editaccount <n|id>              edit an account
  delaccount <n|id>               delete an account
  categories                      list categories
  addcategory                     add a category
  delcategory <n|id>              delete a category
  reorder <accounts|categories> <n|id>...
                                  set a new order
  transactions [n|id]             list transactions, optionally of one account
  addtx                           add a transaction
  deltx <n|id>                    delete a transaction
  sync                            synchronize now
  refresh                         drop the watermark and pull everything
  pending                         show queued operations
  status                          show connectivity and last sync
  help                            show this help
  exit | quit                     leave the program`

// runREPL reads commands line by line from reader and dispatches them to a.
// Command handlers prompt through the same reader, so interactive input and
// commands never race for buffered bytes. The loop ends on EOF, on "exit"
// or "quit", or when ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer, prompt bool) {
	commands := map[string]func(context.Context, []string) error{
		"accounts":     a.Accounts,
		"addaccount":   a.AddAccount,
		"editaccount":  a.EditAccount,
		"delaccount":   a.DeleteAccount,
		"categories":   a.Categories,
		"addcategory":  a.AddCategory,
		"delcategory":  a.DeleteCategory,
		"reorder":      a.Reorder,
		"transactions": a.Transactions,
		"addtx":        a.AddTransaction,
		"deltx":        a.DeleteTransaction,
		"sync":         a.Sync,
		"refresh":      a.Refresh,
		"pending":      a.Pending,
		"status":       a.Status,
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if prompt {
			fmt.Fprintf(w, "fk (%s)> ", statusFn())
		}

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			cmd, args := strings.ToLower(fields[0]), fields[1:]
			switch cmd {
			case "exit", "quit":
				fmt.Fprintln(w, "Bye!")
				return
			case "help":
				fmt.Fprintln(w, helpText)
			default:
				fn, ok := commands[cmd]
				if !ok {
					fmt.Fprintln(w, "Unknown command:", cmd)
					break
				}
				if err := fn(ctx, args); err != nil {
					fmt.Fprintln(w, "Error:", err)
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// Root runs the REPL against the App's reader and output.
func (a *App) Root(ctx context.Context) {
	prompt := a.prompt
	if prompt {
		fmt.Fprintln(a.out, "Type 'help' for a list of commands.")
	}
	runREPL(ctx, a, func() string { return a.getStatus(ctx) }, a.reader, a.out, prompt)
}

func (a *App) getStatus(ctx context.Context) string {
	ops, err := a.ledger.Pending(ctx)
	if err != nil {
		return string(a.getMode())
	}
	return fmt.Sprintf("%s, %d pending", a.getMode(), len(ops))
}
