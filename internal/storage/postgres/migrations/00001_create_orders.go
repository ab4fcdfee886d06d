package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upOrders, downOrders)
}

func upOrders(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE orders
(
    id SERIAL PRIMARY KEY,
    number TEXT UNIQUE NOT NULL,
    buyer_id TEXT NOT NULL,
    subtotal DOUBLE PRECISION NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    payment_status TEXT NOT NULL,
    mpesa_request_id TEXT,
    pesapal_merchant_ref TEXT,
    pesapal_tracking_id TEXT,
    payment_txn_id TEXT,
    shipping_country TEXT NOT NULL DEFAULT '',
    shipping_address TEXT NOT NULL DEFAULT '',
    shipping_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);`)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `CREATE TABLE order_items
(
    id SERIAL PRIMARY KEY,
    order_id INT NOT NULL REFERENCES orders(id),
    listing_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    quantity INT NOT NULL,
    unit_price DOUBLE PRECISION NOT NULL,
    weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0
);`)
	return err
}

func downOrders(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, "DROP TABLE order_items;"); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DROP TABLE orders;")
	return err
}
