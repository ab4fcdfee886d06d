package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upShipments, downShipments)
}

func upShipments(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE shipments
(
    id SERIAL PRIMARY KEY,
    order_number TEXT UNIQUE NOT NULL,
    tracking_number TEXT UNIQUE,
    carrier TEXT NOT NULL,
    destination TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    est_delivery TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);`)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `CREATE TABLE tracking_events
(
    id SERIAL PRIMARY KEY,
    shipment_id INT NOT NULL REFERENCES shipments(id),
    description TEXT NOT NULL,
    location TEXT,
    occurred_at TIMESTAMPTZ NOT NULL
);`)
	return err
}

func downShipments(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, "DROP TABLE tracking_events;"); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DROP TABLE shipments;")
	return err
}
