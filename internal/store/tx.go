package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// discardTimeout bounds closing a connection whose transaction state is
// unknown.
const discardTimeout = 5 * time.Second

// Beginner starts a transaction. *pgxpool.Pool, *pgxpool.Conn, *pgx.Conn
// and pgx.Tx all satisfy it; on a pgx.Tx the new scope is a savepoint.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxFunc is a unit of work run with exclusive use of a transaction.
type TxFunc[R any] func(ctx context.Context, tx pgx.Tx) (R, error)

type depthKey struct{}

// Depth reports how many transaction scopes enclose ctx on the current
// connection. A scope begun on a fresh connection starts again at 1.
func Depth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// InTransaction acquires a connection from the store and runs fn in a
// transaction on it. The connection is released when the scope ends.
func InTransaction[R any](ctx context.Context, s *Store, fn TxFunc[R]) (R, error) {
	conn, err := s.Conn(ctx)
	if err != nil {
		var zero R
		return zero, err
	}
	defer conn.Release()

	return InTransactionWith(ctx, conn, fn)
}

// InTransactionWith runs fn in a transaction begun on conn. It commits when
// fn succeeds and rolls back when fn fails or the commit is rejected; the
// error then wraps ErrTransactionFailed (and ErrCommit for rejected
// commits). When conn is an open pgx.Tx the scope is a savepoint: rolling
// it back leaves the outer transaction usable.
//
// If ctx is done when the scope ends, or the rollback fails, the physical
// connection is closed so the pool discards it instead of reusing it.
func InTransactionWith[R any](ctx context.Context, conn Beginner, fn TxFunc[R]) (R, error) {
	var zero R

	depth := 1
	if _, nested := conn.(pgx.Tx); nested {
		depth = Depth(ctx) + 1
	}
	ctx = context.WithValue(ctx, depthKey{}, depth)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("beginning transaction: %w: %w", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "transaction panic, rolling back", "depth", depth, "panic", p)
			rollback(ctx, tx, depth)
			panic(p)
		}
	}()

	result, err := fn(ctx, tx)
	if err != nil {
		slog.DebugContext(ctx, "transaction failed, rolling back", "depth", depth, "error", err)
		rollback(ctx, tx, depth)
		if errors.Is(err, ErrTransactionFailed) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		slog.ErrorContext(ctx, "transaction commit failed", "depth", depth, "error", err)
		rollback(ctx, tx, depth)
		return zero, fmt.Errorf("committing transaction: %w: %w: %w", ErrTransactionFailed, ErrCommit, err)
	}

	return result, nil
}

// rollback ends tx. A cancelled ctx leaves the server-side state unknown, so
// the connection is closed rather than rolled back.
func rollback(ctx context.Context, tx pgx.Tx, depth int) {
	if ctx.Err() != nil {
		slog.WarnContext(ctx, "transaction interrupted, discarding connection", "depth", depth, "error", ctx.Err())
		discard(tx)
		return
	}

	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.ErrorContext(ctx, "rollback failed, discarding connection", "depth", depth, "error", err)
		discard(tx)
	}
}

// discard closes the physical connection of tx, then ends tx so a
// transaction begun on a pool gives its slot back. The pool destroys closed
// connections instead of reusing them.
func discard(tx pgx.Tx) {
	ctx, cancel := context.WithTimeout(context.Background(), discardTimeout)
	defer cancel()

	if conn := tx.Conn(); conn != nil && !conn.IsClosed() {
		if err := conn.Close(ctx); err != nil {
			slog.Warn("closing discarded connection", "error", err)
		}
	}
	_ = tx.Rollback(ctx)
}
