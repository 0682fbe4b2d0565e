/*
Package transfer manages stock transfers between barracks depots.

LIFECYCLE:
  pending --> approved   (stock actually moves, both legs atomic)
          \-> rejected   (no stock moves)

  approved and rejected are terminal. Approval re-validates inside the
  transaction: the status flip is a conditional UPDATE on status='pending',
  and the source debit carries a sufficiency precondition evaluated against
  the transaction's consistent snapshot. Two concurrent approvals of the
  same transfer cannot both succeed.
*/
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fuelops/backoffice/ledger"
)

// =============================================================================
// TYPES
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

type Transfer struct {
	ID             int64
	FromBarracksID int64
	ToBarracksID   int64
	ItemID         int64
	Quantity       decimal.Decimal
	Status         Status
	Notes          string
	RequestedBy    string
	DecidedBy      string
	TransferDate   time.Time
	CreatedAt      time.Time
	DecidedAt      *time.Time
}

type Input struct {
	FromBarracksID int64
	ToBarracksID   int64
	ItemID         int64
	Quantity       decimal.Decimal
	Notes          string
	RequestedBy    string
	TransferDate   time.Time
}

// Store is the read/write surface outside the approval transaction.
type Store interface {
	InsertTransfer(ctx context.Context, t Transfer) (int64, error)
	TransferByID(ctx context.Context, id int64) (*Transfer, error)
	Transfers(ctx context.Context, status Status, limit, offset int) ([]Transfer, int, error)
	BarracksExists(ctx context.Context, id int64) (bool, error)
	ItemExists(ctx context.Context, id int64) (bool, error)
}

// Decider is the transaction-scoped capability of flipping a pending
// transfer into a terminal status. MarkDecided must affect zero rows when
// the transfer is no longer pending, and report that as changed=false.
type Decider interface {
	MarkDecided(ctx context.Context, id int64, status Status, decidedBy string, decidedAt time.Time) (changed bool, err error)
}

// ErrNotPending reports a decision attempted on a transfer that already
// reached a terminal status.
type ErrNotPending struct {
	ID int64
}

func (e *ErrNotPending) Error() string {
	return fmt.Sprintf("stock transfer %d is not pending", e.ID)
}

func (e *ErrNotPending) Unwrap() error { return ledger.ErrConflict }

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Engine *ledger.Engine
	Store  Store
}

func NewService(engine *ledger.Engine, store Store) *Service {
	return &Service{Engine: engine, Store: store}
}

// Create records a pending transfer request. Source sufficiency is checked
// here only as an advisory rejection of obviously impossible requests; the
// authoritative check happens at approval time.
func (s *Service) Create(ctx context.Context, in Input) (*Transfer, error) {
	if in.FromBarracksID == 0 || in.ToBarracksID == 0 || in.ItemID == 0 {
		return nil, ledger.Invalidf("fromBarracksId, toBarracksId and itemId are required")
	}
	if in.FromBarracksID == in.ToBarracksID {
		return nil, ledger.Invalidf("source and destination barracks must differ")
	}
	if !in.Quantity.IsPositive() {
		return nil, ledger.Invalidf("quantity must be positive")
	}
	for _, id := range []int64{in.FromBarracksID, in.ToBarracksID} {
		ok, err := s.Store.BarracksExists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ledger.NotFoundError{Kind: "barracks", ID: id}
		}
	}
	ok, err := s.Store.ItemExists(ctx, in.ItemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "item", ID: in.ItemID}
	}

	source := ledger.BarrackStock(in.FromBarracksID, in.ItemID)
	available, err := s.Engine.CurrentBalance(ctx, source)
	if err != nil {
		return nil, err
	}
	if available.LessThan(in.Quantity) {
		return nil, &ledger.InsufficientBalanceError{
			Owner:     source,
			Available: available,
			Requested: in.Quantity,
		}
	}

	date := in.TransferDate
	if date.IsZero() {
		date = s.Engine.Clock.Now()
	}
	t := Transfer{
		FromBarracksID: in.FromBarracksID,
		ToBarracksID:   in.ToBarracksID,
		ItemID:         in.ItemID,
		Quantity:       in.Quantity.Round(2),
		Status:         StatusPending,
		Notes:          in.Notes,
		RequestedBy:    in.RequestedBy,
		TransferDate:   date,
	}
	id, err := s.Store.InsertTransfer(ctx, t)
	if err != nil {
		return nil, err
	}
	t.ID = id
	return &t, nil
}

// Approve moves the stock and marks the transfer approved in one
// transaction. Fails with ErrNotPending if the transfer already reached a
// terminal status, and with InsufficientBalanceError if the source depot no
// longer covers the quantity.
func (s *Service) Approve(ctx context.Context, id int64, decidedBy string) (*Transfer, error) {
	t, err := s.Store.TransferByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &ledger.NotFoundError{Kind: "stock transfer", ID: id}
	}
	if t.Status.Terminal() {
		return nil, &ErrNotPending{ID: id}
	}

	// The stock moves when the decision lands, not on the requested
	// transfer date; a date-only TransferDate would backdate the legs.
	decidedAt := s.Engine.Clock.Now()

	source := ledger.BarrackStock(t.FromBarracksID, t.ItemID)
	dest := ledger.BarrackStock(t.ToBarracksID, t.ItemID)
	ref := fmt.Sprintf("Stock transfer #%d: barracks %d -> barracks %d", t.ID, t.FromBarracksID, t.ToBarracksID)
	movements := []ledger.Movement{
		{
			Owner:        source,
			Out:          t.Quantity,
			Date:         decidedAt,
			Reference:    ref,
			Precondition: ledger.RequireAtLeast(source, t.Quantity),
		},
		{
			Owner:     dest,
			In:        t.Quantity,
			Date:      decidedAt,
			Reference: ref,
		},
	}
	_, err = s.Engine.ApplyAllWith(ctx, movements, func(tx ledger.Store) error {
		d, ok := tx.(Decider)
		if !ok {
			return ledger.ErrStoreRequired
		}
		changed, err := d.MarkDecided(ctx, id, StatusApproved, decidedBy, decidedAt)
		if err != nil {
			return err
		}
		if !changed {
			return &ErrNotPending{ID: id}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.Status = StatusApproved
	t.DecidedBy = decidedBy
	t.DecidedAt = &decidedAt
	return t, nil
}

// Reject marks the transfer rejected without moving any stock. Terminal
// like Approve: a transfer can be decided exactly once.
func (s *Service) Reject(ctx context.Context, id int64, decidedBy string) (*Transfer, error) {
	t, err := s.Store.TransferByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &ledger.NotFoundError{Kind: "stock transfer", ID: id}
	}
	if t.Status.Terminal() {
		return nil, &ErrNotPending{ID: id}
	}

	d, ok := s.Store.(Decider)
	if !ok {
		return nil, ledger.ErrStoreRequired
	}
	decidedAt := s.Engine.Clock.Now()
	changed, err := d.MarkDecided(ctx, id, StatusRejected, decidedBy, decidedAt)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, &ErrNotPending{ID: id}
	}

	t.Status = StatusRejected
	t.DecidedBy = decidedBy
	t.DecidedAt = &decidedAt
	return t, nil
}
