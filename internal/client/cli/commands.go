package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/client/coordinator"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/finkeeper/internal/client/services"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
	"github.com/shopspring/decimal"
)

var errUsage = errors.New("wrong arguments, see help")

// pick resolves ref against items: a 1-based list position or a record id
// (local or server).
func pick[T shared.Payload](items []services.Item[T], ref string) (services.Item[T], error) {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(items) {
		return items[n-1], nil
	}
	for _, it := range items {
		if it.ID == ref || (it.ServerID != "" && it.ServerID == ref) {
			return it, nil
		}
	}
	return services.Item[T]{}, fmt.Errorf("no such entry: %s", ref)
}

func syncMark(synced bool) string {
	if synced {
		return " "
	}
	return "*"
}

func (a *App) Accounts(ctx context.Context, _ []string) error {
	items, err := a.ledger.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No accounts.")
		return nil
	}
	for i, it := range items {
		balance, err := a.ledger.AccountBalance(ctx, it.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s%2d. %-20s %12s %s\n", syncMark(it.Synced), i+1, it.Data.Name, balance.StringFixed(2), it.Data.Currency)
	}
	return nil
}

func (a *App) AddAccount(ctx context.Context, _ []string) error {
	name, err := GetSimpleText(a.reader, "Account name", a.out)
	if err != nil {
		return err
	}
	currency, err := GetSimpleText(a.reader, "Currency (3 letters, optional)", a.out)
	if err != nil {
		return err
	}
	balance, err := GetDecimal(a.reader, "Opening balance", decimal.Zero, a.out)
	if err != nil {
		return err
	}

	item, err := a.ledger.AddAccount(ctx, shared.Account{Name: name, Currency: strings.ToUpper(currency), Balance: balance})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %q added.\n", item.Data.Name)
	return nil
}

func (a *App) EditAccount(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	items, err := a.ledger.ListAccounts(ctx)
	if err != nil {
		return err
	}
	it, err := pick(items, args[0])
	if err != nil {
		return err
	}

	acc := it.Data
	if acc.Name, err = GetTextOrDefault(a.reader, "Account name", acc.Name, a.out); err != nil {
		return err
	}
	if acc.Currency, err = GetTextOrDefault(a.reader, "Currency", acc.Currency, a.out); err != nil {
		return err
	}
	if acc.Balance, err = GetDecimal(a.reader, "Opening balance", acc.Balance, a.out); err != nil {
		return err
	}
	acc.Currency = strings.ToUpper(acc.Currency)

	if _, err := a.ledger.UpdateAccount(ctx, it.ID, acc); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account updated.")
	return nil
}

func (a *App) DeleteAccount(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	items, err := a.ledger.ListAccounts(ctx)
	if err != nil {
		return err
	}
	it, err := pick(items, args[0])
	if err != nil {
		return err
	}
	if err := a.ledger.DeleteAccount(ctx, it.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account %q deleted.\n", it.Data.Name)
	return nil
}

func (a *App) Categories(ctx context.Context, _ []string) error {
	items, err := a.ledger.ListCategories(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No categories.")
		return nil
	}
	for i, it := range items {
		fmt.Fprintf(a.out, "%s%2d. %-20s %s\n", syncMark(it.Synced), i+1, it.Data.Name, it.Data.Kind)
	}
	return nil
}

func (a *App) AddCategory(ctx context.Context, _ []string) error {
	name, err := GetSimpleText(a.reader, "Category name", a.out)
	if err != nil {
		return err
	}
	kind, err := GetTextOrDefault(a.reader, "Kind (income|expense)", string(shared.CategoryExpense), a.out)
	if err != nil {
		return err
	}

	item, err := a.ledger.AddCategory(ctx, shared.Category{Name: name, Kind: shared.CategoryKind(strings.ToLower(kind))})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Category %q added.\n", item.Data.Name)
	return nil
}

func (a *App) DeleteCategory(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	items, err := a.ledger.ListCategories(ctx)
	if err != nil {
		return err
	}
	it, err := pick(items, args[0])
	if err != nil {
		return err
	}
	if err := a.ledger.DeleteCategory(ctx, it.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Category %q deleted.\n", it.Data.Name)
	return nil
}

// Reorder takes the scope followed by every entry in its new position.
func (a *App) Reorder(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	refs := args[1:]
	var ids []string

	switch args[0] {
	case "accounts":
		items, err := a.ledger.ListAccounts(ctx)
		if err != nil {
			return err
		}
		if ids, err = pickAll(items, refs); err != nil {
			return err
		}
		err = a.ledger.ReorderAccounts(ctx, ids)
		if err != nil {
			return err
		}
	case "categories":
		items, err := a.ledger.ListCategories(ctx)
		if err != nil {
			return err
		}
		if ids, err = pickAll(items, refs); err != nil {
			return err
		}
		err = a.ledger.ReorderCategories(ctx, ids)
		if err != nil {
			return err
		}
	default:
		return errUsage
	}
	fmt.Fprintln(a.out, "Order saved.")
	return nil
}

func pickAll[T shared.Payload](items []services.Item[T], refs []string) ([]string, error) {
	if len(refs) != len(items) {
		return nil, fmt.Errorf("expected %d entries, got %d", len(items), len(refs))
	}
	seen := make(map[string]bool, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		it, err := pick(items, ref)
		if err != nil {
			return nil, err
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("entry %s listed twice", ref)
		}
		seen[it.ID] = true
		ids = append(ids, it.ID)
	}
	return ids, nil
}

func (a *App) Transactions(ctx context.Context, args []string) error {
	accounts, err := a.ledger.ListAccounts(ctx)
	if err != nil {
		return err
	}
	accountID := ""
	if len(args) > 0 {
		acc, err := pick(accounts, args[0])
		if err != nil {
			return err
		}
		accountID = acc.ID
	}

	txs, err := a.ledger.ListTransactions(ctx, accountID)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(a.out, "No transactions.")
		return nil
	}
	categories, err := a.ledger.ListCategories(ctx)
	if err != nil {
		return err
	}
	for i, tx := range txs {
		accName, catName := tx.Data.AccountID, ""
		if acc, err := pick(accounts, tx.Data.AccountID); err == nil {
			accName = acc.Data.Name
		}
		if tx.Data.CategoryID != "" {
			catName = tx.Data.CategoryID
			if cat, err := pick(categories, tx.Data.CategoryID); err == nil {
				catName = cat.Data.Name
			}
		}
		fmt.Fprintf(a.out, "%s%2d. %s %-15s %10s %-12s %s\n",
			syncMark(tx.Synced), i+1,
			time.UnixMilli(tx.Data.OccurredAt).UTC().Format("2006-01-02"),
			accName, tx.Data.Amount.StringFixed(2), catName, tx.Data.Note)
	}
	return nil
}

func (a *App) AddTransaction(ctx context.Context, _ []string) error {
	accounts, err := a.ledger.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return errors.New("add an account first")
	}

	ref, err := GetSimpleText(a.reader, "Account (number or id)", a.out)
	if err != nil {
		return err
	}
	acc, err := pick(accounts, ref)
	if err != nil {
		return err
	}
	amount, err := GetDecimal(a.reader, "Amount (negative for spending)", decimal.Zero, a.out)
	if err != nil {
		return err
	}

	tx := shared.Transaction{AccountID: acc.ID, Amount: amount, OccurredAt: timex.NowMillis(a.clock)}

	ref, err = GetSimpleText(a.reader, "Category (number or id, optional)", a.out)
	if err != nil {
		return err
	}
	if ref != "" {
		categories, err := a.ledger.ListCategories(ctx)
		if err != nil {
			return err
		}
		cat, err := pick(categories, ref)
		if err != nil {
			return err
		}
		tx.CategoryID = cat.ID
	}
	if tx.Note, err = GetSimpleText(a.reader, "Note (optional)", a.out); err != nil {
		return err
	}

	if _, err := a.ledger.AddTransaction(ctx, tx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Transaction added.")
	return nil
}

func (a *App) DeleteTransaction(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	txs, err := a.ledger.ListTransactions(ctx, "")
	if err != nil {
		return err
	}
	tx, err := pick(txs, args[0])
	if err != nil {
		return err
	}
	if err := a.ledger.DeleteTransaction(ctx, tx.ID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Transaction deleted.")
	return nil
}

func (a *App) Sync(ctx context.Context, _ []string) error {
	res, err := a.ledger.SyncData(ctx, true)
	a.printResult(res)
	return err
}

func (a *App) Refresh(ctx context.Context, _ []string) error {
	res, err := a.ledger.RefreshData(ctx)
	a.printResult(res)
	return err
}

func (a *App) printResult(res *coordinator.SyncResult) {
	if res == nil || res.Status != coordinator.StatusOK {
		return
	}
	fmt.Fprintf(a.out, "Synced: %d pulled, %d pushed, %d accepted, %d conflicts, %d rejected.\n",
		res.Pulled, res.Pushed, len(res.Accepted), len(res.Conflicts), len(res.Rejected))
	for _, rj := range res.Rejected {
		fmt.Fprintln(a.out, "  ", rj.Error())
	}
}

func (a *App) Pending(ctx context.Context, _ []string) error {
	ops, err := a.ledger.Pending(ctx)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		fmt.Fprintln(a.out, "Nothing to push.")
		return nil
	}
	for _, op := range ops {
		fmt.Fprintf(a.out, "%4d %-6s %-11s %s (retries: %d)\n", op.Seq, op.Type, op.Resource, op.RecordID, op.RetryCount)
	}
	return nil
}

func (a *App) Status(ctx context.Context, _ []string) error {
	fmt.Fprintf(a.out, "Device:  %s\n", a.deviceID)
	fmt.Fprintf(a.out, "Mode:    %s\n", a.getMode())
	fmt.Fprintf(a.out, "Sync:    %s\n", a.engine.State())

	mark, err := metadata.LoadSyncMark(ctx, a.store.Repos().Metadata)
	if err != nil {
		return err
	}
	if mark.Never() {
		fmt.Fprintln(a.out, "Synced:  never")
	} else {
		fmt.Fprintf(a.out, "Synced:  %s (watermark %d)\n", mark.SyncedAt.Format(time.DateTime), mark.Watermark)
	}

	last := a.engine.LastResult()
	if last == nil {
		fmt.Fprintln(a.out, "Last:    never")
		return nil
	}
	fmt.Fprintf(a.out, "Last:    %s at %s\n", last.Status, last.FinishedAt.Format("15:04:05"))
	if last.Err != nil {
		fmt.Fprintf(a.out, "Error:   %v\n", last.Err)
	}
	if last.NextRetryIn > 0 {
		fmt.Fprintf(a.out, "Retry:   in %s\n", last.NextRetryIn)
	}
	return nil
}
