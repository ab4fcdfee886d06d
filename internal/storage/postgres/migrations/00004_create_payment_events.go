package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upPaymentEvents, downPaymentEvents)
}

func upPaymentEvents(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE payment_events
(
    id SERIAL PRIMARY KEY,
    provider TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    status TEXT NOT NULL,
    received_at TIMESTAMPTZ NOT NULL,
    UNIQUE (provider, transaction_id, status)
);`)
	return err
}

func downPaymentEvents(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "DROP TABLE payment_events;")
	return err
}
