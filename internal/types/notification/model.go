package notification

import "time"

type Type string

const (
	TypeOrderConfirmed Type = "ORDER_CONFIRMED"
	TypePaymentFailed  Type = "PAYMENT_FAILED"
	TypeShipmentUpdate Type = "SHIPMENT_UPDATE"
)

type Notification struct {
	ID          int64     `db:"id" json:"-"`
	OrderNumber string    `db:"order_number" json:"order_number"`
	UserID      string    `db:"user_id" json:"-"`
	Type        Type      `db:"type" json:"type"`
	Title       string    `db:"title" json:"title"`
	Message     string    `db:"message" json:"message"`
	Read        bool      `db:"read" json:"read"`
	Sent        bool      `db:"sent" json:"sent"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
