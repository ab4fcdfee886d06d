package order

import "time"

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
)

// paymentTransitions is the set of forward moves allowed for a single
// payment attempt. COMPLETED and FAILED are terminal for the attempt;
// a retry stores a fresh correlation id on the same order.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentCompleted, PaymentFailed},
	PaymentProcessing: {PaymentCompleted, PaymentFailed},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type LineItem struct {
	ID        int64   `db:"id" json:"-"`
	OrderID   int64   `db:"order_id" json:"-"`
	ListingID string  `db:"listing_id" json:"listing_id"`
	Title     string  `db:"title" json:"title"`
	Quantity  int     `db:"quantity" json:"quantity"`
	UnitPrice float64 `db:"unit_price" json:"unit_price"`
	WeightKg  float64 `db:"weight_kg" json:"weight_kg,omitempty"`
}

type Order struct {
	ID                 int64         `db:"id" json:"-"`
	Number             string        `db:"number" json:"number"`
	BuyerID            string        `db:"buyer_id" json:"-"`
	Items              []LineItem    `db:"-" json:"items,omitempty"`
	Subtotal           float64       `db:"subtotal" json:"subtotal"`
	Status             OrderStatus   `db:"status" json:"status"`
	PaymentStatus      PaymentStatus `db:"payment_status" json:"payment_status"`
	MpesaRequestID     *string       `db:"mpesa_request_id" json:"-"`
	PesapalMerchantRef *string       `db:"pesapal_merchant_ref" json:"-"`
	PesapalTrackingID  *string       `db:"pesapal_tracking_id" json:"-"`
	PaymentTxnID       *string       `db:"payment_txn_id" json:"-"`
	ShippingCountry    string        `db:"shipping_country" json:"shipping_country"`
	ShippingAddress    string        `db:"shipping_address" json:"-"`
	ShippingCost       float64       `db:"shipping_cost" json:"shipping_cost"`
	Notes              string        `db:"notes" json:"-"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"-"`
}
