package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/soko-arts/marketplace/internal/types/notification"
	"github.com/soko-arts/marketplace/internal/types/order"
	"github.com/soko-arts/marketplace/internal/types/shipment"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/soko-arts/marketplace/internal/storage/postgres/migrations"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &PostgresStorage{db: db}

	if err := s.db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

const orderColumns = `id, number, buyer_id, subtotal, status, payment_status,
    mpesa_request_id, pesapal_merchant_ref, pesapal_tracking_id, payment_txn_id,
    shipping_country, shipping_address, shipping_cost, notes, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.Number, &o.BuyerID, &o.Subtotal, &o.Status, &o.PaymentStatus,
		&o.MpesaRequestID, &o.PesapalMerchantRef, &o.PesapalTrackingID, &o.PaymentTxnID,
		&o.ShippingCountry, &o.ShippingAddress, &o.ShippingCost, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PostgresStorage) CreateOrder(ctx context.Context, o *order.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := `
        INSERT INTO orders (number, buyer_id, subtotal, status, payment_status,
            shipping_country, shipping_address, shipping_cost, notes, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'',$9,$10) RETURNING id`
	if err := tx.QueryRowContext(ctx, q,
		o.Number, o.BuyerID, o.Subtotal, o.Status, o.PaymentStatus,
		o.ShippingCountry, o.ShippingAddress, o.ShippingCost, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID); err != nil {
		return err
	}

	const itemQ = `
        INSERT INTO order_items (order_id, listing_id, title, quantity, unit_price, weight_kg)
        VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := tx.QueryRowContext(ctx, itemQ,
			o.ID, it.ListingID, it.Title, it.Quantity, it.UnitPrice, it.WeightKg,
		).Scan(&it.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStorage) FindOrderByNumber(ctx context.Context, number string) (*order.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE number = $1`
	return scanOrder(s.db.QueryRowContext(ctx, q, number))
}

func (s *PostgresStorage) FindOrderByMpesaRequest(ctx context.Context, merchantRequestID string) (*order.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE mpesa_request_id = $1`
	return scanOrder(s.db.QueryRowContext(ctx, q, merchantRequestID))
}

func (s *PostgresStorage) FindOrderByMerchantRef(ctx context.Context, merchantRef string) (*order.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE pesapal_merchant_ref = $1`
	return scanOrder(s.db.QueryRowContext(ctx, q, merchantRef))
}

func (s *PostgresStorage) ListOrderItems(ctx context.Context, orderID int64) ([]order.LineItem, error) {
	const q = `
        SELECT id, order_id, listing_id, title, quantity, unit_price, weight_kg
        FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.LineItem
	for rows.Next() {
		var it order.LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ListingID, &it.Title, &it.Quantity, &it.UnitPrice, &it.WeightKg); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]order.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`
	return s.listOrders(ctx, q, buyerID)
}

func (s *PostgresStorage) ListOrdersAwaitingPayment(ctx context.Context) ([]order.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders
        WHERE payment_status IN ('PENDING','PROCESSING')
          AND pesapal_tracking_id IS NOT NULL
        ORDER BY created_at`
	return s.listOrders(ctx, q)
}

func (s *PostgresStorage) listOrders(ctx context.Context, q string, args ...any) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) SetMpesaRequest(ctx context.Context, number, merchantRequestID string) (bool, error) {
	const q = `
        UPDATE orders
        SET mpesa_request_id = $2, payment_status = 'PROCESSING', updated_at = $3
        WHERE number = $1 AND payment_status <> 'COMPLETED'`
	res, err := s.db.ExecContext(ctx, q, number, merchantRequestID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PostgresStorage) SetPesapalRequest(ctx context.Context, number, merchantRef, trackingID string) (bool, error) {
	const q = `
        UPDATE orders
        SET pesapal_merchant_ref = $2, pesapal_tracking_id = $3,
            payment_status = 'PROCESSING', updated_at = $4
        WHERE number = $1 AND payment_status <> 'COMPLETED'`
	res, err := s.db.ExecContext(ctx, q, number, merchantRef, trackingID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ApplyPaymentResult records the dedupe key and moves the order's payment
// state in one transaction. The conditional UPDATE serializes concurrent
// duplicate callbacks; a rollback discards the dedupe row too, so a
// transient failure never consumes the provider's retry.
func (s *PostgresStorage) ApplyPaymentResult(ctx context.Context, number, provider, transactionID string, from, to order.PaymentStatus, orderStatus order.OrderStatus, txnID *string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	const evQ = `
        INSERT INTO payment_events (provider, transaction_id, status, received_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (provider, transaction_id, status) DO NOTHING`
	res, err := tx.ExecContext(ctx, evQ, provider, transactionID, string(to), now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	const casQ = `
        UPDATE orders
        SET payment_status = $3, status = $4,
            payment_txn_id = COALESCE($5, payment_txn_id),
            updated_at = $6
        WHERE number = $1 AND payment_status = $2`
	res, err = tx.ExecContext(ctx, casQ, number, from, to, orderStatus, txnID, now)
	if err != nil {
		return false, err
	}
	n, err = res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Lost the race: the winning writer committed its own event row.
		return false, nil
	}
	return true, tx.Commit()
}

func (s *PostgresStorage) AppendOrderNote(ctx context.Context, number, note string) error {
	const q = `
        UPDATE orders
        SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n' || $2 END,
            updated_at = $3
        WHERE number = $1`
	_, err := s.db.ExecContext(ctx, q, number, note, time.Now().UTC())
	return err
}

func (s *PostgresStorage) CreateShipment(ctx context.Context, sh *shipment.Shipment, initialEvent *shipment.TrackingEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := `
        INSERT INTO shipments (order_number, tracking_number, carrier, destination, status, est_delivery, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`
	if err := tx.QueryRowContext(ctx, q,
		sh.OrderNumber, sh.TrackingNumber, sh.Carrier, sh.Destination, sh.Status, sh.EstDelivery, sh.CreatedAt, sh.UpdatedAt,
	).Scan(&sh.ID); err != nil {
		return err
	}

	if initialEvent != nil {
		initialEvent.ShipmentID = sh.ID
		const evQ = `
            INSERT INTO tracking_events (shipment_id, description, location, occurred_at)
            VALUES ($1,$2,$3,$4) RETURNING id`
		if err := tx.QueryRowContext(ctx, evQ,
			sh.ID, initialEvent.Description, initialEvent.Location, initialEvent.OccurredAt,
		).Scan(&initialEvent.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const shipmentColumns = `id, order_number, tracking_number, carrier, destination, status, est_delivery, created_at, updated_at`

func scanShipment(row interface{ Scan(...any) error }) (*shipment.Shipment, error) {
	var sh shipment.Shipment
	err := row.Scan(
		&sh.ID, &sh.OrderNumber, &sh.TrackingNumber, &sh.Carrier, &sh.Destination,
		&sh.Status, &sh.EstDelivery, &sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *PostgresStorage) FindShipmentByOrder(ctx context.Context, orderNumber string) (*shipment.Shipment, error) {
	q := `SELECT ` + shipmentColumns + ` FROM shipments WHERE order_number = $1`
	return scanShipment(s.db.QueryRowContext(ctx, q, orderNumber))
}

func (s *PostgresStorage) FindShipmentByTracking(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
	q := `SELECT ` + shipmentColumns + ` FROM shipments WHERE tracking_number = $1`
	return scanShipment(s.db.QueryRowContext(ctx, q, trackingNumber))
}

func (s *PostgresStorage) ListTrackingEvents(ctx context.Context, shipmentID int64) ([]shipment.TrackingEvent, error) {
	const q = `
        SELECT id, shipment_id, description, location, occurred_at
        FROM tracking_events WHERE shipment_id = $1 ORDER BY occurred_at, id`
	rows, err := s.db.QueryContext(ctx, q, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shipment.TrackingEvent
	for rows.Next() {
		var ev shipment.TrackingEvent
		if err := rows.Scan(&ev.ID, &ev.ShipmentID, &ev.Description, &ev.Location, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) AdvanceShipmentStatus(ctx context.Context, shipmentID int64, from, to shipment.Status, trackingNumber *string, ev *shipment.TrackingEvent) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	const q = `
        UPDATE shipments
        SET status = $3, tracking_number = $4, updated_at = $5
        WHERE id = $1 AND status = $2`
	res, err := tx.ExecContext(ctx, q, shipmentID, from, to, trackingNumber, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	const evQ = `
        INSERT INTO tracking_events (shipment_id, description, location, occurred_at)
        VALUES ($1,$2,$3,$4) RETURNING id`
	if err := tx.QueryRowContext(ctx, evQ, shipmentID, ev.Description, ev.Location, ev.OccurredAt).Scan(&ev.ID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *PostgresStorage) CreateNotification(ctx context.Context, n *notification.Notification) error {
	q := `
        INSERT INTO notifications (order_number, user_id, type, title, message, read, sent, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`
	return s.db.QueryRowContext(ctx, q,
		n.OrderNumber, n.UserID, n.Type, n.Title, n.Message, n.Read, n.Sent, n.CreatedAt,
	).Scan(&n.ID)
}

func (s *PostgresStorage) ListNotificationsByUser(ctx context.Context, userID string) ([]notification.Notification, error) {
	const q = `
        SELECT id, order_number, user_id, type, title, message, read, sent, created_at
        FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.OrderNumber, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.Sent, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
