package mocks

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
)

// BuildTransaction returns a mocked connection together with an open
// transaction on it, for tests of code that takes a pgx.Tx querier.
// Expectations are set on the returned connection.
func BuildTransaction(ctx context.Context, t *testing.T) (pgxmock.PgxConnIface, pgx.Tx) {
	db, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err.Error())
	}
	db.ExpectBegin()
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("an error '%s' was not expected when Begin a Tx in database", err.Error())
	}
	t.Cleanup(func() {
		_ = tx.Rollback(ctx)
		_ = db.Close(ctx)
	})
	return db, tx
}
