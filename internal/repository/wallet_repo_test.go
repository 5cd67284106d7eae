package repository

import (
	"context"
	"strings"
	"sync"
	"testing"

	"tutoring-platform/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWalletRow adapts a scalar value to pgx.Row for fakeWalletExecer's
// QueryRow results.
type fakeWalletRow struct {
	balance int64
	err     error
}

func (r fakeWalletRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	p, ok := dest[0].(*int64)
	if !ok {
		panic("fakeWalletRow: unsupported scan target")
	}
	*p = r.balance
	return nil
}

// fakeWalletExecer stands in for a single wallets row the way Postgres'
// row-level lock would serialize UPDATE ... WHERE balance + $1 >= 0 against
// concurrent writers: every mutation happens under one mutex, the same
// single point of truth a real row lock provides.
type fakeWalletExecer struct {
	mu           sync.Mutex
	balance      int64
	transactions int
	lastOp       models.WalletOperationType
}

func (f *fakeWalletExecer) Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO wallets"):
		return pgx.CommandTag{}, nil
	case strings.Contains(sql, "INSERT INTO wallet_transactions"):
		f.mu.Lock()
		f.transactions++
		f.lastOp = args[3].(models.WalletOperationType)
		f.mu.Unlock()
		return pgx.CommandTag{}, nil
	}
	panic("fakeWalletExecer.Exec: unexpected query: " + sql)
}

func (f *fakeWalletExecer) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if !strings.Contains(sql, "UPDATE wallets") {
		panic("fakeWalletExecer.QueryRow: unexpected query: " + sql)
	}
	delta := args[0].(int64)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balance+delta < 0 {
		return fakeWalletRow{err: pgx.ErrNoRows}
	}
	f.balance += delta
	return fakeWalletRow{balance: f.balance}
}

// TestWalletAdd_ConcurrentCallsComposeCorrectly proves Testable Property 8:
// K concurrent wallet_add calls against the same student never lose a
// delta to a lost-update race, regardless of goroutine interleaving.
func TestWalletAdd_ConcurrentCallsComposeCorrectly(t *testing.T) {
	const (
		goroutines   = 50
		perCallCents = 100
	)
	fake := &fakeWalletExecer{}
	repo := NewWalletRepository()
	studentID := uuid.New()

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.WalletAdd(context.Background(), fake, studentID, perCallCents, "concurrent top-up", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(goroutines*perCallCents), fake.balance)
	assert.Equal(t, goroutines, fake.transactions)
}

// TestWalletDeduct_ConcurrentCallsNeverGoNegative proves the same property
// in the other direction: concurrent deductions racing against a fixed
// starting balance never push it below zero, and every call that would is
// rejected rather than silently clamped.
func TestWalletDeduct_ConcurrentCallsNeverGoNegative(t *testing.T) {
	const (
		goroutines   = 20
		startBalance = 1000
		perCallCents = 100
	)
	fake := &fakeWalletExecer{balance: startBalance}
	repo := NewWalletRepository()
	studentID := uuid.New()

	var wg sync.WaitGroup
	results := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.WalletDeduct(context.Background(), fake, studentID, perCallCents, "concurrent spend", nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInsufficientWalletFunds)
	}

	assert.Equal(t, startBalance/perCallCents, succeeded)
	assert.Equal(t, int64(0), fake.balance)
}

// TestWalletRefund_IsDistinctOperationType asserts WalletRefund records its
// own operation type rather than reusing WalletOperationAdd, so the wallet
// ledger can distinguish a top-up from a dispute-resolution credit.
func TestWalletRefund_IsDistinctOperationType(t *testing.T) {
	fake := &fakeWalletExecer{}
	repo := NewWalletRepository()
	bookingID := uuid.New()

	_, err := repo.WalletRefund(context.Background(), fake, uuid.New(), 500, "dispute resolved in student's favor", &bookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), fake.balance)
	assert.Equal(t, models.WalletOperationRefund, fake.lastOp)
}
