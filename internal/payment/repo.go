package payment

import (
	"context"

	"github.com/soko-arts/marketplace/internal/types/notification"
	"github.com/soko-arts/marketplace/internal/types/order"
	"github.com/soko-arts/marketplace/internal/types/shipment"
)

type OrderStore interface {
	FindOrderByNumber(ctx context.Context, number string) (*order.Order, error)
	FindOrderByMpesaRequest(ctx context.Context, merchantRequestID string) (*order.Order, error)
	FindOrderByMerchantRef(ctx context.Context, merchantRef string) (*order.Order, error)
	// SetMpesaRequest / SetPesapalRequest store a fresh correlation id and
	// move the attempt to PROCESSING. They refuse once an order is paid.
	SetMpesaRequest(ctx context.Context, number, merchantRequestID string) (bool, error)
	SetPesapalRequest(ctx context.Context, number, merchantRef, trackingID string) (bool, error)
	// ApplyPaymentResult inserts the (provider, txn, status) dedupe key and
	// compare-and-swaps the order's payment state in a single transaction.
	// A false return means a duplicate delivery or a lost race. An error
	// rolls back the dedupe key too, so the provider's retry can still land.
	ApplyPaymentResult(ctx context.Context, number, provider, transactionID string, from, to order.PaymentStatus, orderStatus order.OrderStatus, txnID *string) (bool, error)
	AppendOrderNote(ctx context.Context, number, note string) error
	ListOrdersAwaitingPayment(ctx context.Context) ([]order.Order, error)
}

type Notifier interface {
	Notify(ctx context.Context, n *notification.Notification) error
}

type ShipmentCreator interface {
	Create(ctx context.Context, orderNumber, carrier, destination, countryCode string, weightKg float64) (*shipment.Shipment, error)
}
