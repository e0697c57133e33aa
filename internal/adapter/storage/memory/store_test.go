package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedWallet(t *testing.T, s *Store, userID string, balance int64) {
	t.Helper()
	created, err := NewWalletRepo(s).Create(context.Background(), nil, domain.NewWallet(userID, balance, time.Now().UTC()))
	require.NoError(t, err)
	require.True(t, created)
}

func TestTx_CommitMakesWritesVisible(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	wallets := NewWalletRepo(s)
	ledger := NewLedgerRepo(s)
	seedWallet(t, s, "hero-1", 1000)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	locked, err := wallets.Lock(ctx, tx, "hero-1", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(700), locked.Balance)
	require.NoError(t, ledger.Append(ctx, tx, domain.NewLedgerEntry("hero-1", domain.LedgerEntryLock, 300, "r", "mint:lock:hero-1:K1", time.Now())))

	// Not visible outside the transaction yet.
	w, err := wallets.GetByUserID(ctx, "hero-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w.Balance)

	// Visible inside it.
	settled, err := wallets.Settle(ctx, tx, "hero-1", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(0), settled.LockedBalance)

	require.NoError(t, tx.Commit(ctx))

	w, err = wallets.GetByUserID(ctx, "hero-1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), w.Balance)
	assert.Equal(t, int64(0), w.LockedBalance)
	assert.Equal(t, int64(3), w.Version)

	entry, err := ledger.GetByIdempotencyKey(ctx, "mint:lock:hero-1:K1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)
}

func TestTx_RollbackDiscardsWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	wallets := NewWalletRepo(s)
	seedWallet(t, s, "hero-1", 1000)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = wallets.Lock(ctx, tx, "hero-1", 300)
	require.NoError(t, err)
	require.NoError(t, NewAuditRepo(s).Create(ctx, tx, &domain.AuditEvent{ID: uuid.New(), EntityType: "wallet", EntityID: "hero-1"}))
	require.NoError(t, tx.Rollback(ctx))

	w, err := wallets.GetByUserID(ctx, "hero-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w.Balance)
	assert.Equal(t, int64(0), w.LockedBalance)

	events, err := NewAuditRepo(s).ListByEntity(ctx, "wallet", "hero-1")
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = wallets.Lock(ctx, tx, "hero-1", 1)
	assert.ErrorIs(t, err, pgx.ErrTxClosed)
}

func TestWalletRepo_ConditionalUpdates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	wallets := NewWalletRepo(s)
	seedWallet(t, s, "hero-1", 1000)

	_, err := wallets.Lock(ctx, nil, "hero-1", 1001)
	assert.ErrorIs(t, err, ports.ErrConditionNotMet)

	_, err = wallets.Settle(ctx, nil, "hero-1", 1)
	assert.ErrorIs(t, err, ports.ErrConditionNotMet)

	_, err = wallets.Unlock(ctx, nil, "hero-1", 1)
	assert.ErrorIs(t, err, ports.ErrConditionNotMet)

	_, err = wallets.Lock(ctx, nil, "ghost", 1)
	assert.ErrorIs(t, err, ports.ErrConditionNotMet)

	w, err := wallets.Lock(ctx, nil, "hero-1", 400)
	require.NoError(t, err)
	w, err = wallets.Unlock(ctx, nil, "hero-1", 400)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w.Balance)

	w, err = wallets.Credit(ctx, nil, "hero-1", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1050), w.Balance)
}

func TestWalletRepo_CreateIsIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	wallets := NewWalletRepo(s)
	seedWallet(t, s, "hero-1", 1000)

	created, err := wallets.Create(ctx, nil, domain.NewWallet("hero-1", 5, time.Now()))
	require.NoError(t, err)
	assert.False(t, created)

	w, err := wallets.GetByUserID(ctx, "hero-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w.Balance)
}

func TestWalletRepo_RowLockSerializesTransactions(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	wallets := NewWalletRepo(s)
	seedWallet(t, s, "hero-1", 500)

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = wallets.Lock(ctx, first, "hero-1", 300)
	require.NoError(t, err)

	// A second transaction waits for the row and gives up with its context.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	second, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = wallets.Lock(waitCtx, second, "hero-1", 300)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, second.Rollback(ctx))

	// Once the first commits, a waiter sees the committed balance.
	done := make(chan error, 1)
	go func() {
		_, err := wallets.Lock(ctx, nil, "hero-1", 300)
		done <- err
	}()
	require.NoError(t, first.Commit(ctx))
	assert.ErrorIs(t, <-done, ports.ErrConditionNotMet, "only 200 credits remain")
}

func TestWalletRepo_ConcurrentLocksNeverOverspend(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	wallets := NewWalletRepo(s)
	seedWallet(t, s, "hero-1", 1000)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := wallets.Lock(ctx, nil, "hero-1", 30); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	w, err := wallets.GetByUserID(ctx, "hero-1")
	require.NoError(t, err)
	assert.Equal(t, 33, success)
	assert.Equal(t, int64(10), w.Balance)
	assert.Equal(t, int64(990), w.LockedBalance)
}

func TestWalletRepo_List(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"c", "a", "b"} {
		seedWallet(t, s, id, 1)
	}
	wallets := NewWalletRepo(s)

	page, err := wallets.List(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].UserID)
	assert.Equal(t, "b", page[1].UserID)

	page, err = wallets.List(context.Background(), "b", 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].UserID)
}

func TestLedgerRepo_UniqueKey(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ledger := NewLedgerRepo(s)
	entry := func() *domain.LedgerEntry {
		return domain.NewLedgerEntry("hero-1", domain.LedgerEntryDeposit, 10, "D1", "deposit:hero-1:D1", time.Now())
	}

	require.NoError(t, ledger.Append(ctx, nil, entry()))
	assert.ErrorIs(t, ledger.Append(ctx, nil, entry()), ports.ErrUniqueViolation)

	// Two transactions racing on a fresh key: the second fails at commit.
	a, _ := s.Begin(ctx)
	b, _ := s.Begin(ctx)
	race := func() *domain.LedgerEntry {
		return domain.NewLedgerEntry("hero-1", domain.LedgerEntryDeposit, 10, "D2", "deposit:hero-1:D2", time.Now())
	}
	require.NoError(t, ledger.Append(ctx, a, race()))
	require.NoError(t, ledger.Append(ctx, b, race()))
	require.NoError(t, a.Commit(ctx))
	assert.ErrorIs(t, b.Commit(ctx), ports.ErrUniqueViolation)

	totals, err := ledger.SumByType(ctx, "hero-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), totals[domain.LedgerEntryDeposit])
}

func TestLedgerRepo_ListByUserNewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	ledger := NewLedgerRepo(s)
	for i, typ := range []domain.LedgerEntryType{domain.LedgerEntryDeposit, domain.LedgerEntryLock, domain.LedgerEntrySpend} {
		key := string(typ) + ":" + string(rune('a'+i))
		require.NoError(t, ledger.Append(ctx, nil, domain.NewLedgerEntry("hero-1", typ, 10, "r", key, time.Now())))
	}
	require.NoError(t, ledger.Append(ctx, nil, domain.NewLedgerEntry("hero-2", domain.LedgerEntryDeposit, 10, "r", "other", time.Now())))

	entries, err := ledger.ListByUser(ctx, "hero-1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.LedgerEntrySpend, entries[0].Type)
	assert.Equal(t, domain.LedgerEntryLock, entries[1].Type)
}

func TestMintRequestRepo_Upsert(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := NewMintRequestRepo(s)
	now := time.Now().UTC()
	newReq := func(key, nonce string, status domain.MintStatus) *domain.MintRequest {
		return &domain.MintRequest{
			ID: uuid.New(), UserID: "hero-1", IdempotencyKey: key, Nonce: nonce,
			PriceCredits: 300, Status: status, CreatedAt: now, UpdatedAt: now,
		}
	}

	failed := "generator unavailable"
	first := newReq("K1", "n1", domain.MintStatusFailed)
	first.Error = &failed
	require.NoError(t, repo.Upsert(ctx, nil, first))

	retry := newReq("K1", "n1", domain.MintStatusProcessing)
	require.NoError(t, repo.Upsert(ctx, nil, retry))
	assert.Equal(t, first.ID, retry.ID)

	stored, err := repo.GetByIdempotencyKey(ctx, "hero-1", "K1")
	require.NoError(t, err)
	assert.Equal(t, domain.MintStatusProcessing, stored.Status)
	assert.Nil(t, stored.Error)

	err = repo.Upsert(ctx, nil, newReq("K2", "n1", domain.MintStatusProcessing))
	assert.ErrorIs(t, err, ports.ErrUniqueViolation)

	msg := "boom"
	require.NoError(t, repo.UpdateStatus(ctx, nil, first.ID, domain.MintStatusFailed, &msg))
	stored, err = repo.GetByIdempotencyKey(ctx, "hero-1", "K1")
	require.NoError(t, err)
	assert.Equal(t, domain.MintStatusFailed, stored.Status)
	assert.Equal(t, "boom", *stored.Error)

	assert.Error(t, repo.UpdateStatus(ctx, nil, uuid.New(), domain.MintStatusFailed, nil))
}

func TestAssetRepo_CreateAndTransition(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := NewAssetRepo(s)
	img := []byte("\x89PNG\r\n\x1a\n")
	a := &domain.NftAsset{
		ID: uuid.New(), TokenID: "tok-1", Status: domain.AssetStatusMinted,
		Attributes: []domain.Attribute{{TraitType: "theme", Value: "noir"}},
		ImageData:  img, ImageMimeType: "image/png",
	}
	require.NoError(t, repo.Create(ctx, nil, a))
	img[0] = 0 // the store keeps its own copy

	assert.ErrorIs(t, repo.Create(ctx, nil, a), ports.ErrUniqueViolation)

	got, err := repo.GetByTokenID(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, got.ImageData)
	assert.Equal(t, "noir", got.Attributes[0].Value)

	data, mimeType, err := repo.GetImage(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, byte(0x89), data[0])
	assert.Equal(t, "image/png", mimeType)

	require.NoError(t, repo.UpdateStatus(ctx, nil, "tok-1", domain.AssetStatusMinted, domain.AssetStatusBurned))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, nil, "tok-1", domain.AssetStatusMinted, domain.AssetStatusBurned), ports.ErrConditionNotMet)

	missing, _, err := repo.GetImage(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReceiptRepo_UniqueAndTxReads(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := NewReceiptRepo(s)
	rc := &domain.MintReceipt{ID: uuid.New(), UserID: "hero-1", IdempotencyKey: "K1", TokenID: "tok-1"}

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, rc))

	inTx, err := repo.GetByIdempotencyKey(ctx, tx, "hero-1", "K1")
	require.NoError(t, err)
	require.NotNil(t, inTx)

	outside, err := repo.GetByIdempotencyKey(ctx, nil, "hero-1", "K1")
	require.NoError(t, err)
	assert.Nil(t, outside)

	require.NoError(t, tx.Commit(ctx))

	byToken, err := repo.GetByTokenID(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, "K1", byToken.IdempotencyKey)

	dup := &domain.MintReceipt{ID: uuid.New(), UserID: "hero-1", IdempotencyKey: "K1", TokenID: "tok-2"}
	assert.ErrorIs(t, repo.Create(ctx, nil, dup), ports.ErrUniqueViolation)
}

func TestTx_RejectsForeignTransactions(t *testing.T) {
	a, b := NewStore(), NewStore()
	tx, err := a.Begin(context.Background())
	require.NoError(t, err)

	_, err = NewWalletRepo(b).Lock(context.Background(), tx, "hero-1", 1)
	assert.ErrorIs(t, err, errForeignTx)

	_, err = tx.Exec(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, errNoSQL)
}

func TestStore_Health(t *testing.T) {
	s := NewStore()
	assert.Equal(t, "memory", s.Name())
	assert.NoError(t, s.Ping(context.Background()))
}
