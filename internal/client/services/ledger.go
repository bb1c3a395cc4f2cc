// Package services is the UI-facing layer of the client. Every mutation is
// written to the local store together with its queue entry and then handed
// to the sync coordinator in the background.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/finkeeper/internal/client/coordinator"
	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/dmitrijs2005/finkeeper/internal/client/storage"
	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/logging"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Syncer is the part of the sync coordinator the service drives.
type Syncer interface {
	Sync(ctx context.Context, force bool) (*coordinator.SyncResult, error)
	Refresh(ctx context.Context) (*coordinator.SyncResult, error)
	NotifyLocalChange()
}

// Item is a decoded record as shown to the user.
type Item[T shared.Payload] struct {
	ID        string
	ServerID  string
	Order     *int
	UpdatedAt int64
	Synced    bool
	Data      T
}

type LedgerService interface {
	AddAccount(ctx context.Context, a shared.Account) (*Item[shared.Account], error)
	UpdateAccount(ctx context.Context, id string, a shared.Account) (*Item[shared.Account], error)
	DeleteAccount(ctx context.Context, id string) error
	ReorderAccounts(ctx context.Context, ids []string) error
	ListAccounts(ctx context.Context) ([]Item[shared.Account], error)
	// AccountBalance is the opening balance plus every live transaction on
	// the account.
	AccountBalance(ctx context.Context, id string) (decimal.Decimal, error)

	AddCategory(ctx context.Context, c shared.Category) (*Item[shared.Category], error)
	UpdateCategory(ctx context.Context, id string, c shared.Category) (*Item[shared.Category], error)
	DeleteCategory(ctx context.Context, id string) error
	ReorderCategories(ctx context.Context, ids []string) error
	ListCategories(ctx context.Context) ([]Item[shared.Category], error)

	AddTransaction(ctx context.Context, t shared.Transaction) (*Item[shared.Transaction], error)
	UpdateTransaction(ctx context.Context, id string, t shared.Transaction) (*Item[shared.Transaction], error)
	DeleteTransaction(ctx context.Context, id string) error
	// ListTransactions lists transactions of accountID, all when empty.
	ListTransactions(ctx context.Context, accountID string) ([]Item[shared.Transaction], error)

	SyncData(ctx context.Context, force bool) (*coordinator.SyncResult, error)
	// RefreshData forgets the sync watermark and pulls a full snapshot.
	RefreshData(ctx context.Context) (*coordinator.SyncResult, error)
	Pending(ctx context.Context) ([]*models.Operation, error)
}

type ledgerService struct {
	store    storage.Store
	syncer   Syncer
	deviceID string
	logger   logging.Logger
}

func NewLedgerService(store storage.Store, syncer Syncer, deviceID string, logger logging.Logger) LedgerService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ledgerService{store: store, syncer: syncer, deviceID: deviceID, logger: logger.With("module", "ledger")}
}

func validate(p shared.Payload) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

func decode[T shared.Payload](rec *models.Record) (Item[T], error) {
	data, err := shared.Decode[T](rec.Data)
	if err != nil {
		return Item[T]{}, fmt.Errorf("decode %s[%s]: %w", rec.Resource, rec.ID, err)
	}
	return Item[T]{
		ID:        rec.ID,
		ServerID:  rec.ServerID,
		Order:     rec.Order,
		UpdatedAt: rec.UpdatedAt,
		Synced:    rec.Synced,
		Data:      data,
	}, nil
}

// enqueue records the intent for rec; prev is its state before the change.
func (s *ledgerService) enqueue(ctx context.Context, r *storage.Repositories, rec, prev *models.Record) error {
	op := models.NewOperation(models.PendingType(rec), rec, s.deviceID, rec.UpdatedAt)
	op.Rollback = prev
	return r.Queue.Enqueue(ctx, op)
}

func (s *ledgerService) changed() {
	if s.syncer != nil {
		s.syncer.NotifyLocalChange()
	}
}

// live loads record id of resource; ErrorNotFound when it is missing or
// deleted.
func live(ctx context.Context, r *storage.Repositories, resource shared.Resource, id string) (*models.Record, error) {
	rec, err := r.Records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.IsDeleted || rec.Resource != resource {
		return nil, fmt.Errorf("%s[%s]: %w", resource, id, common.ErrorNotFound)
	}
	return rec, nil
}

func add[T shared.Payload](ctx context.Context, s *ledgerService, p T) (*Item[T], error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	data, err := shared.Marshal(p)
	if err != nil {
		return nil, err
	}

	rec := &models.Record{ID: uuid.NewString(), Resource: p.Resource(), Data: data}
	err = s.store.WithinTx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		if err := s.checkRefs(ctx, r, p); err != nil {
			return err
		}
		if rec.Resource.Ordered() {
			siblings, err := r.Records.GetAll(ctx, rec.Resource, false)
			if err != nil {
				return err
			}
			rec.Order = models.IntPtr(len(siblings))
		}
		if err := r.Records.Save(ctx, rec); err != nil {
			return err
		}
		return s.enqueue(ctx, r, rec, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	s.changed()

	item, err := decode[T](rec)
	return &item, err
}

func update[T shared.Payload](ctx context.Context, s *ledgerService, id string, p T) (*Item[T], error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	data, err := shared.Marshal(p)
	if err != nil {
		return nil, err
	}

	var rec *models.Record
	err = s.store.WithinTx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		prev, err := live(ctx, r, p.Resource(), id)
		if err != nil {
			return err
		}
		if err := s.checkRefs(ctx, r, p); err != nil {
			return err
		}
		rec = prev.Clone()
		rec.Data = data
		if err := r.Records.Save(ctx, rec); err != nil {
			return err
		}
		return s.enqueue(ctx, r, rec, prev)
	})
	if err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	s.changed()

	item, err := decode[T](rec)
	return &item, err
}

// remove tombstones id. In an ordered scope the remaining records are
// renumbered and each moved record gets its own UPDATE.
func (s *ledgerService) remove(ctx context.Context, resource shared.Resource, id string) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		prev, err := live(ctx, r, resource, id)
		if err != nil {
			return err
		}
		if resource != shared.ResourceTransaction {
			if err := s.checkUnused(ctx, r, prev); err != nil {
				return err
			}
		}
		tomb, err := r.Records.SoftDelete(ctx, id)
		if err != nil {
			return err
		}
		if err := s.enqueue(ctx, r, tomb, prev); err != nil {
			return err
		}
		if !resource.Ordered() {
			return nil
		}

		rest, err := r.Records.GetAll(ctx, resource, false)
		if err != nil {
			return err
		}
		ids := make([]string, len(rest))
		for i, rec := range rest {
			ids[i] = rec.ID
		}
		return s.reassign(ctx, r, resource, ids, rest)
	})
	if err != nil {
		return fmt.Errorf("error deleting %s: %w", resource, err)
	}
	s.changed()
	return nil
}

func (s *ledgerService) reorder(ctx context.Context, resource shared.Resource, ids []string) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, r *storage.Repositories) error {
		current, err := r.Records.GetAll(ctx, resource, false)
		if err != nil {
			return err
		}
		return s.reassign(ctx, r, resource, ids, current)
	})
	if err != nil {
		return fmt.Errorf("error reordering %s: %w", resource, err)
	}
	s.changed()
	return nil
}

// reassign applies order 0..N-1 to ids and enqueues an UPDATE for every
// record that moved. before holds the records' prior state.
func (s *ledgerService) reassign(ctx context.Context, r *storage.Repositories, resource shared.Resource, ids []string, before []*models.Record) error {
	prior := make(map[string]*models.Record, len(before))
	for _, rec := range before {
		prior[rec.ID] = rec
	}
	moved, err := r.Records.ReassignOrder(ctx, resource, ids)
	if err != nil {
		return err
	}
	for _, rec := range moved {
		if err := s.enqueue(ctx, r, rec, prior[rec.ID]); err != nil {
			return err
		}
	}
	return nil
}

// checkRefs makes sure a transaction points at a live account and, when
// set, a live category.
func (s *ledgerService) checkRefs(ctx context.Context, r *storage.Repositories, p shared.Payload) error {
	tx, ok := p.(shared.Transaction)
	if !ok {
		return nil
	}
	if _, err := resolveRef(ctx, r, shared.ResourceAccount, tx.AccountID); err != nil {
		return err
	}
	if tx.CategoryID == "" {
		return nil
	}
	_, err := resolveRef(ctx, r, shared.ResourceCategory, tx.CategoryID)
	return err
}

// resolveRef finds a referenced record by local id, then by server id for
// references merged before their target was known.
func resolveRef(ctx context.Context, r *storage.Repositories, resource shared.Resource, id string) (*models.Record, error) {
	rec, err := r.Records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		if rec, err = r.Records.GetByServerID(ctx, id); err != nil {
			return nil, err
		}
	}
	if rec == nil || rec.IsDeleted || rec.Resource != resource {
		return nil, fmt.Errorf("%w: unknown %s %q", common.ErrValidation, resource, id)
	}
	return rec, nil
}

// ErrInUse is returned when deleting an account or category that live
// transactions still reference.
var ErrInUse = errors.New("still referenced by transactions")

func (s *ledgerService) checkUnused(ctx context.Context, r *storage.Repositories, target *models.Record) error {
	txs, err := r.Records.GetAll(ctx, shared.ResourceTransaction, false)
	if err != nil {
		return err
	}
	for _, rec := range txs {
		tx, err := shared.Decode[shared.Transaction](rec.Data)
		if err != nil {
			continue
		}
		if refersTo(tx.AccountID, target) || refersTo(tx.CategoryID, target) {
			return fmt.Errorf("%s[%s]: %w", target.Resource, target.ID, ErrInUse)
		}
	}
	return nil
}

func refersTo(ref string, rec *models.Record) bool {
	return ref != "" && (ref == rec.ID || (rec.ServerID != "" && ref == rec.ServerID))
}

func list[T shared.Payload](ctx context.Context, s *ledgerService, resource shared.Resource) ([]Item[T], error) {
	recs, err := s.store.Repos().Records.GetAll(ctx, resource, false)
	if err != nil {
		return nil, fmt.Errorf("error: %w", err)
	}
	out := make([]Item[T], 0, len(recs))
	for _, rec := range recs {
		item, err := decode[T](rec)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable record", "id", rec.ID, "error", err)
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *ledgerService) AddAccount(ctx context.Context, a shared.Account) (*Item[shared.Account], error) {
	return add(ctx, s, a)
}

func (s *ledgerService) UpdateAccount(ctx context.Context, id string, a shared.Account) (*Item[shared.Account], error) {
	return update(ctx, s, id, a)
}

func (s *ledgerService) DeleteAccount(ctx context.Context, id string) error {
	return s.remove(ctx, shared.ResourceAccount, id)
}

func (s *ledgerService) ReorderAccounts(ctx context.Context, ids []string) error {
	return s.reorder(ctx, shared.ResourceAccount, ids)
}

func (s *ledgerService) ListAccounts(ctx context.Context) ([]Item[shared.Account], error) {
	return list[shared.Account](ctx, s, shared.ResourceAccount)
}

func (s *ledgerService) AccountBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	rec, err := live(ctx, s.store.Repos(), shared.ResourceAccount, id)
	if err != nil {
		return decimal.Zero, err
	}
	acc, err := decode[shared.Account](rec)
	if err != nil {
		return decimal.Zero, err
	}
	txs, err := s.ListTransactions(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	total := acc.Data.Balance
	for _, tx := range txs {
		total = total.Add(tx.Data.Amount)
	}
	return total, nil
}

func (s *ledgerService) AddCategory(ctx context.Context, c shared.Category) (*Item[shared.Category], error) {
	return add(ctx, s, c)
}

func (s *ledgerService) UpdateCategory(ctx context.Context, id string, c shared.Category) (*Item[shared.Category], error) {
	return update(ctx, s, id, c)
}

func (s *ledgerService) DeleteCategory(ctx context.Context, id string) error {
	return s.remove(ctx, shared.ResourceCategory, id)
}

func (s *ledgerService) ReorderCategories(ctx context.Context, ids []string) error {
	return s.reorder(ctx, shared.ResourceCategory, ids)
}

func (s *ledgerService) ListCategories(ctx context.Context) ([]Item[shared.Category], error) {
	return list[shared.Category](ctx, s, shared.ResourceCategory)
}

func (s *ledgerService) AddTransaction(ctx context.Context, t shared.Transaction) (*Item[shared.Transaction], error) {
	return add(ctx, s, t)
}

func (s *ledgerService) UpdateTransaction(ctx context.Context, id string, t shared.Transaction) (*Item[shared.Transaction], error) {
	return update(ctx, s, id, t)
}

func (s *ledgerService) DeleteTransaction(ctx context.Context, id string) error {
	return s.remove(ctx, shared.ResourceTransaction, id)
}

func (s *ledgerService) ListTransactions(ctx context.Context, accountID string) ([]Item[shared.Transaction], error) {
	all, err := list[shared.Transaction](ctx, s, shared.ResourceTransaction)
	if err != nil || accountID == "" {
		return all, err
	}

	acc, err := s.store.Repos().Records.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, nil
	}
	out := all[:0]
	for _, tx := range all {
		if refersTo(tx.Data.AccountID, acc) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *ledgerService) SyncData(ctx context.Context, force bool) (*coordinator.SyncResult, error) {
	return s.syncer.Sync(ctx, force)
}

func (s *ledgerService) RefreshData(ctx context.Context) (*coordinator.SyncResult, error) {
	return s.syncer.Refresh(ctx)
}

func (s *ledgerService) Pending(ctx context.Context) ([]*models.Operation, error) {
	ops, err := s.store.Repos().Queue.Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("error retrieving queue: %w", err)
	}
	return ops, nil
}
