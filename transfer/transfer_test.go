package transfer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelops/backoffice/ledger"
	"github.com/fuelops/backoffice/ledger/store"
	"github.com/fuelops/backoffice/transfer"
)

// =============================================================================
// TEST FAKES
// =============================================================================

// fakeStore keeps transfers in memory and implements the Decider capability
// both directly (for Reject) and through the ledger transaction view (for
// Approve), mirroring the SQL store.
type fakeStore struct {
	*store.Memory
	transfers map[int64]*transfer.Transfer
	nextID    int64
	barracks  map[int64]bool
	items     map[int64]bool
}

func newFakeStore(barracks, items []int64) *fakeStore {
	s := &fakeStore{
		Memory:    store.NewMemory(),
		transfers: make(map[int64]*transfer.Transfer),
		barracks:  make(map[int64]bool),
		items:     make(map[int64]bool),
	}
	for _, id := range barracks {
		s.barracks[id] = true
	}
	for _, id := range items {
		s.items[id] = true
	}
	return s
}

func (s *fakeStore) InsertTransfer(_ context.Context, t transfer.Transfer) (int64, error) {
	s.nextID++
	t.ID = s.nextID
	s.transfers[t.ID] = &t
	return t.ID, nil
}

func (s *fakeStore) TransferByID(_ context.Context, id int64) (*transfer.Transfer, error) {
	if t, ok := s.transfers[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeStore) Transfers(_ context.Context, status transfer.Status, limit, offset int) ([]transfer.Transfer, int, error) {
	var out []transfer.Transfer
	for _, t := range s.transfers {
		if status == "" || t.Status == status {
			out = append(out, *t)
		}
	}
	return out, len(out), nil
}

func (s *fakeStore) BarracksExists(_ context.Context, id int64) (bool, error) {
	return s.barracks[id], nil
}

func (s *fakeStore) ItemExists(_ context.Context, id int64) (bool, error) {
	return s.items[id], nil
}

func (s *fakeStore) MarkDecided(_ context.Context, id int64, status transfer.Status, decidedBy string, decidedAt time.Time) (bool, error) {
	t, ok := s.transfers[id]
	if !ok || t.Status != transfer.StatusPending {
		return false, nil
	}
	t.Status = status
	t.DecidedBy = decidedBy
	t.DecidedAt = &decidedAt
	return true, nil
}

// WithTx exposes the fake's Decider on the transaction view. Transfer rows
// are snapshotted so a failed transaction rolls back the status flip, like
// the SQL store does.
func (s *fakeStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	backup := make(map[int64]transfer.Transfer, len(s.transfers))
	for id, t := range s.transfers {
		backup[id] = *t
	}
	err := s.Memory.WithTx(ctx, func(inner ledger.Store) error {
		return fn(&deciderTx{Store: inner, parent: s})
	})
	if err != nil {
		for id := range s.transfers {
			restored := backup[id]
			s.transfers[id] = &restored
		}
	}
	return err
}

type deciderTx struct {
	ledger.Store
	parent *fakeStore
}

func (t *deciderTx) MarkDecided(ctx context.Context, id int64, status transfer.Status, decidedBy string, decidedAt time.Time) (bool, error) {
	return t.parent.MarkDecided(ctx, id, status, decidedBy, decidedAt)
}

func newTestService() (*transfer.Service, *fakeStore, *ledger.Engine) {
	fs := newFakeStore([]int64{1, 2}, []int64{10})
	engine := ledger.NewEngine(fs, ledger.NewClock(0))
	return transfer.NewService(engine, fs), fs, engine
}

func seedDepot(t *testing.T, engine *ledger.Engine, barracksID, itemID int64, qty float64) {
	t.Helper()
	_, err := engine.Apply(context.Background(), ledger.Movement{
		Owner:     ledger.BarrackStock(barracksID, itemID),
		In:        ledger.Dec(qty),
		Reference: "Opening depot stock",
	})
	require.NoError(t, err)
}

// =============================================================================
// REQUEST TESTS
// =============================================================================

func TestCreate_PendingRequest(t *testing.T) {
	svc, fs, engine := newTestService()
	seedDepot(t, engine, 1, 10, 300)

	tr, err := svc.Create(context.Background(), transfer.Input{
		FromBarracksID: 1, ToBarracksID: 2, ItemID: 10,
		Quantity:    ledger.Dec(100),
		RequestedBy: "quartermaster",
	})
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusPending, tr.Status)
	assert.False(t, tr.TransferDate.IsZero())
	assert.Len(t, fs.transfers, 1)

	// No stock moves at request time
	balance, err := engine.CurrentBalance(context.Background(), ledger.BarrackStock(1, 10))
	require.NoError(t, err)
	assert.True(t, balance.Equal(ledger.Dec(300)))
}

func TestCreate_Validation(t *testing.T) {
	svc, _, engine := newTestService()
	seedDepot(t, engine, 1, 10, 300)
	ctx := context.Background()

	cases := []struct {
		name string
		in   transfer.Input
	}{
		{"missing ids", transfer.Input{Quantity: ledger.Dec(1)}},
		{"same depot", transfer.Input{FromBarracksID: 1, ToBarracksID: 1, ItemID: 10, Quantity: ledger.Dec(1)}},
		{"zero quantity", transfer.Input{FromBarracksID: 1, ToBarracksID: 2, ItemID: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			assert.ErrorIs(t, err, ledger.ErrValidation)
		})
	}

	_, err := svc.Create(ctx, transfer.Input{FromBarracksID: 9, ToBarracksID: 2, ItemID: 10, Quantity: ledger.Dec(1)})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = svc.Create(ctx, transfer.Input{FromBarracksID: 1, ToBarracksID: 2, ItemID: 99, Quantity: ledger.Dec(1)})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCreate_AdvisorySufficiencyCheck(t *testing.T) {
	svc, _, engine := newTestService()
	seedDepot(t, engine, 1, 10, 50)

	_, err := svc.Create(context.Background(), transfer.Input{
		FromBarracksID: 1, ToBarracksID: 2, ItemID: 10, Quantity: ledger.Dec(100),
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

// =============================================================================
// APPROVAL TESTS
// =============================================================================

func TestApprove_MovesStockAtomically(t *testing.T) {
	// GIVEN: Depot 1 holds 300 units, a pending transfer of 100 to depot 2
	// WHEN: The transfer is approved
	// THEN: Source drops to 200, destination rises to 100, status is terminal

	svc, _, engine := newTestService()
	seedDepot(t, engine, 1, 10, 300)
	ctx := context.Background()

	tr, err := svc.Create(ctx, transfer.Input{
		FromBarracksID: 1, ToBarracksID: 2, ItemID: 10, Quantity: ledger.Dec(100),
	})
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, tr.ID, "supervisor")
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusApproved, approved.Status)
	assert.Equal(t, "supervisor", approved.DecidedBy)
	require.NotNil(t, approved.DecidedAt)

	source, _ := engine.CurrentBalance(ctx, ledger.BarrackStock(1, 10))
	dest, _ := engine.CurrentBalance(ctx, ledger.BarrackStock(2, 10))
	assert.True(t, source.Equal(ledger.Dec(200)), "source %s", source)
	assert.True(t, dest.Equal(ledger.Dec(100)), "dest %s", dest)
}

func TestApprove_TerminalTransferRejected(t *testing.T) {
	// GIVEN: An already-approved transfer
	// WHEN: It is approved again
	// THEN: The second decision fails and no further stock moves

	svc, _, engine := newTestService()
	seedDepot(t, engine, 1, 10, 300)
	ctx := context.Background()

	tr, err := svc.Create(ctx, transfer.Input{
		FromBarracksID: 1, ToBarracksID: 2, ItemID: 10, Quantity: ledger.Dec(100),
	})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, tr.ID, "supervisor")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, tr.ID, "supervisor")
	assert.ErrorIs(t, err, ledger.ErrConflict)

	source, _ := engine.CurrentBalance(ctx, ledger.BarrackStock(1, 10))
	assert.True(t, source.Equal(ledger.Dec(200)), "source moved twice: %s", source)
}

func TestApprove_InsufficientStockAtDecisionTime(t *testing.T) {
	// GIVEN: A pending transfer whose source was drained after the request
	// WHEN: It is approved
	// THEN: Approval fails, status stays pending, no stock moves

	svc, fs, engine := newTestService()
	seedDepot(t, engine, 1, 10, 100)
	ctx := context.Background()

	tr, err := svc.Create(ctx, transfer.Input{
		FromBarracksID: 1, ToBarracksID: 2, ItemID: 10, Quantity: ledger.Dec(100),
	})
	require.NoError(t, err)

	// Drain the source before the decision
	_, err = engine.Apply(ctx, ledger.Movement{
		Owner: ledger.BarrackStock(1, 10), Out: ledger.Dec(80), Reference: "Issued to field",
	})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, tr.ID, "supervisor")
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	assert.Equal(t, transfer.StatusPending, fs.transfers[tr.ID].Status)
	dest, _ := engine.CurrentBalance(ctx, ledger.BarrackStock(2, 10))
	assert.True(t, dest.IsZero())
}

func TestApprove_UnknownTransfer(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Approve(context.Background(), 404, "supervisor")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// =============================================================================
// REJECTION TESTS
// =============================================================================

func TestReject_NoStockMoves(t *testing.T) {
	svc, fs, engine := newTestService()
	seedDepot(t, engine, 1, 10, 300)
	ctx := context.Background()

	tr, err := svc.Create(ctx, transfer.Input{
		FromBarracksID: 1, ToBarracksID: 2, ItemID: 10, Quantity: ledger.Dec(100),
	})
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, tr.ID, "supervisor")
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusRejected, rejected.Status)
	assert.Equal(t, transfer.StatusRejected, fs.transfers[tr.ID].Status)

	source, _ := engine.CurrentBalance(ctx, ledger.BarrackStock(1, 10))
	assert.True(t, source.Equal(ledger.Dec(300)))

	// Terminal: cannot approve after rejection
	_, err = svc.Approve(ctx, tr.ID, "supervisor")
	assert.ErrorIs(t, err, ledger.ErrConflict)
}
