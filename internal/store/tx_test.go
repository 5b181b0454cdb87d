package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/billstore/internal/store"
	"github.com/daap14/billstore/internal/storetest"
)

var errDomain = errors.New("domain rule violated")

func newTxStore(t *testing.T) *store.Store {
	t.Helper()
	s := storetest.New(t, storetest.Options{MaxConns: 4})

	ctx := context.Background()
	_, err := s.Pool().Exec(ctx, `
		CREATE TABLE IF NOT EXISTS store_tx_probe (
			id   UUID PRIMARY KEY,
			note TEXT NOT NULL
		)`)
	require.NoError(t, err)
	_, err = s.Pool().Exec(ctx, `
		CREATE TABLE IF NOT EXISTS store_tx_deferred (
			id INT,
			CONSTRAINT store_tx_deferred_id_key UNIQUE (id) DEFERRABLE INITIALLY DEFERRED
		)`)
	require.NoError(t, err)
	_, err = s.Pool().Exec(ctx, `TRUNCATE TABLE store_tx_probe, store_tx_deferred`)
	require.NoError(t, err)
	return s
}

func insertProbe(ctx context.Context, tx pgx.Tx, note string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := tx.Exec(ctx, `INSERT INTO store_tx_probe (id, note) VALUES ($1, $2)`, id, note)
	return id, err
}

// probeExists reads on a fresh connection, outside any transaction.
func probeExists(t *testing.T, s *store.Store, id uuid.UUID) bool {
	t.Helper()
	conn, err := s.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(context.Background(),
		`SELECT EXISTS (SELECT 1 FROM store_tx_probe WHERE id = $1)`, id,
	).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func assertReleased(t *testing.T, s *store.Store) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return s.Stats().AcquiredConns() == 0
	}, 2*time.Second, 10*time.Millisecond, "connection is released")
}

func TestInTransaction_CommitIsDurable(t *testing.T) {
	s := newTxStore(t)
	ctx := context.Background()

	id, err := store.InTransaction(ctx, s, func(ctx context.Context, tx pgx.Tx) (uuid.UUID, error) {
		return insertProbe(ctx, tx, "committed")
	})
	require.NoError(t, err)

	assert.True(t, probeExists(t, s, id))
	assertReleased(t, s)
}

func TestInTransaction_FailureRollsBackEveryWrite(t *testing.T) {
	s := newTxStore(t)
	ctx := context.Background()

	var ids []uuid.UUID
	_, err := store.InTransaction(ctx, s, func(ctx context.Context, tx pgx.Tx) (struct{}, error) {
		for _, note := range []string{"first", "second", "third"} {
			id, err := insertProbe(ctx, tx, note)
			if err != nil {
				return struct{}{}, err
			}
			ids = append(ids, id)
		}
		return struct{}{}, errDomain
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrTransactionFailed)
	assert.ErrorIs(t, err, errDomain)
	assert.NotErrorIs(t, err, store.ErrCommit)
	require.Len(t, ids, 3)
	for _, id := range ids {
		assert.False(t, probeExists(t, s, id))
	}
}

func TestInTransaction_StatementErrorRollsBack(t *testing.T) {
	s := newTxStore(t)
	ctx := context.Background()

	var id uuid.UUID
	err := s.Transaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if id, err = insertProbe(ctx, tx, "before"); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO store_tx_probe (id, note) VALUES ($1, NULL)`, uuid.New())
		return err
	})

	assert.ErrorIs(t, err, store.ErrTransactionFailed)
	assert.False(t, probeExists(t, s, id))
}

func TestInTransaction_CommitFailure(t *testing.T) {
	s := newTxStore(t)
	ctx := context.Background()

	var id uuid.UUID
	err := s.Transaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if id, err = insertProbe(ctx, tx, "doomed"); err != nil {
			return err
		}
		// The deferred constraint is only checked at COMMIT.
		_, err = tx.Exec(ctx, `INSERT INTO store_tx_deferred (id) VALUES (1), (1)`)
		return err
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrTransactionFailed)
	assert.ErrorIs(t, err, store.ErrCommit)
	assert.False(t, probeExists(t, s, id))
}

func TestInTransaction_NestedRollbackKeepsOuter(t *testing.T) {
	s := newTxStore(t)
	ctx := context.Background()

	var outerID, innerID uuid.UUID
	var innerDepth int
	err := s.Transaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if outerID, err = insertProbe(ctx, tx, "outer"); err != nil {
			return err
		}

		_, innerErr := store.InTransactionWith(ctx, tx, func(ctx context.Context, tx pgx.Tx) (struct{}, error) {
			innerDepth = store.Depth(ctx)
			var err error
			if innerID, err = insertProbe(ctx, tx, "inner"); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, errDomain
		})
		require.ErrorIs(t, innerErr, store.ErrTransactionFailed)

		// The outer transaction is still usable after the savepoint rollback.
		var n int
		return tx.QueryRow(ctx, `SELECT count(*) FROM store_tx_probe WHERE id = $1`, outerID).Scan(&n)
	})

	require.NoError(t, err)
	assert.Equal(t, 2, innerDepth)
	assert.True(t, probeExists(t, s, outerID))
	assert.False(t, probeExists(t, s, innerID))
}

func TestInTransaction_NestedCommitJoinsOuter(t *testing.T) {
	s := newTxStore(t)
	ctx := context.Background()

	var innerID uuid.UUID
	err := s.Transaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		id, err := store.InTransactionWith(ctx, tx, func(ctx context.Context, tx pgx.Tx) (uuid.UUID, error) {
			return insertProbe(ctx, tx, "inner")
		})
		if err != nil {
			return err
		}
		innerID = id
		return errDomain
	})

	assert.ErrorIs(t, err, errDomain)
	assert.False(t, probeExists(t, s, innerID), "outer rollback discards the released savepoint")
}

func TestInTransaction_NestedFailureNotWrappedTwice(t *testing.T) {
	s := newTxStore(t)
	ctx := context.Background()

	err := s.Transaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := store.InTransactionWith(ctx, tx, func(context.Context, pgx.Tx) (struct{}, error) {
			return struct{}{}, errDomain
		})
		return err
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errDomain)
	assert.Equal(t, 1, strings.Count(err.Error(), store.ErrTransactionFailed.Error()))
}

func TestInTransaction_PanicRollsBack(t *testing.T) {
	s := newTxStore(t)
	ctx := context.Background()

	var id uuid.UUID
	assert.PanicsWithValue(t, "boom", func() {
		_ = s.Transaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			var err error
			if id, err = insertProbe(ctx, tx, "panicked"); err != nil {
				return err
			}
			panic("boom")
		})
	})

	assert.False(t, probeExists(t, s, id))
	assertReleased(t, s)
}

func TestInTransaction_CancellationDiscardsConnection(t *testing.T) {
	s := newTxStore(t)

	conn, err := s.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	ctx, cancel := context.WithCancel(context.Background())
	var id uuid.UUID
	_, err = store.InTransactionWith(ctx, conn, func(ctx context.Context, tx pgx.Tx) (struct{}, error) {
		var err error
		if id, err = insertProbe(ctx, tx, "interrupted"); err != nil {
			return struct{}{}, err
		}
		cancel()
		return struct{}{}, ctx.Err()
	})

	assert.ErrorIs(t, err, store.ErrTransactionFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, conn.Conn().IsClosed(), "interrupted connection is closed, not reused")
	assert.False(t, probeExists(t, s, id))
}

func TestInTransactionWith_PoolReleasesSlotAfterCancellation(t *testing.T) {
	s := storetest.New(t, storetest.Options{MaxConns: 1})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := store.InTransactionWith(ctx, s.Pool(), func(ctx context.Context, tx pgx.Tx) (struct{}, error) {
		if _, err := tx.Exec(ctx, `SELECT 1`); err != nil {
			return struct{}{}, err
		}
		cancel()
		return struct{}{}, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assertReleased(t, s)

	acquireCtx, acquireCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer acquireCancel()
	conn, err := s.Conn(acquireCtx)
	require.NoError(t, err, "the only slot is available again")
	conn.Release()
}

func TestInTransactionWith_PoolReleasesSlotAfterPanic(t *testing.T) {
	s := storetest.New(t, storetest.Options{MaxConns: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.PanicsWithValue(t, "boom", func() {
		_, _ = store.InTransactionWith(ctx, s.Pool(), func(ctx context.Context, tx pgx.Tx) (struct{}, error) {
			cancel()
			panic("boom")
		})
	})
	assertReleased(t, s)

	err := s.Ping(context.Background())
	require.NoError(t, err)
}

func TestDepth_ResetsOnNewConnection(t *testing.T) {
	s := newTxStore(t)
	ctx := context.Background()

	var outer, separate, nested int
	err := s.Transaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		outer = store.Depth(ctx)
		if _, err := store.InTransaction(ctx, s, func(ctx context.Context, _ pgx.Tx) (struct{}, error) {
			separate = store.Depth(ctx)
			return struct{}{}, nil
		}); err != nil {
			return err
		}
		_, err := store.InTransactionWith(ctx, tx, func(ctx context.Context, _ pgx.Tx) (struct{}, error) {
			nested = store.Depth(ctx)
			return struct{}{}, nil
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 1, outer)
	assert.Equal(t, 1, separate, "a scope on another connection is top level")
	assert.Equal(t, 2, nested)
}

func TestInTransaction_BeginFailure(t *testing.T) {
	s := newTxStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	conn, err := s.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	called := false
	_, err = store.InTransactionWith(ctx, conn, func(context.Context, pgx.Tx) (struct{}, error) {
		called = true
		return struct{}{}, nil
	})
	assert.ErrorIs(t, err, store.ErrTransactionFailed)
	assert.False(t, called)
}

func TestDepth_OutsideTransaction(t *testing.T) {
	assert.Equal(t, 0, store.Depth(context.Background()))
}
