package storage

import (
	"context"

	"github.com/soko-arts/marketplace/internal/types/notification"
	"github.com/soko-arts/marketplace/internal/types/order"
	"github.com/soko-arts/marketplace/internal/types/shipment"
)

// OrderRepository covers order lifecycle and payment correlation lookups.
type OrderRepository interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	FindOrderByNumber(ctx context.Context, number string) (*order.Order, error)
	FindOrderByMpesaRequest(ctx context.Context, merchantRequestID string) (*order.Order, error)
	FindOrderByMerchantRef(ctx context.Context, merchantRef string) (*order.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]order.LineItem, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]order.Order, error)
	ListOrdersAwaitingPayment(ctx context.Context) ([]order.Order, error)
	SetMpesaRequest(ctx context.Context, number, merchantRequestID string) (bool, error)
	SetPesapalRequest(ctx context.Context, number, merchantRef, trackingID string) (bool, error)
	// ApplyPaymentResult commits the payment-event dedupe key and the
	// conditional order update atomically.
	ApplyPaymentResult(ctx context.Context, number, provider, transactionID string, from, to order.PaymentStatus, orderStatus order.OrderStatus, txnID *string) (bool, error)
	AppendOrderNote(ctx context.Context, number, note string) error
}

// ShipmentRepository persists shipments and their append-only event history.
type ShipmentRepository interface {
	CreateShipment(ctx context.Context, s *shipment.Shipment, initialEvent *shipment.TrackingEvent) error
	FindShipmentByOrder(ctx context.Context, orderNumber string) (*shipment.Shipment, error)
	FindShipmentByTracking(ctx context.Context, trackingNumber string) (*shipment.Shipment, error)
	ListTrackingEvents(ctx context.Context, shipmentID int64) ([]shipment.TrackingEvent, error)
	AdvanceShipmentStatus(ctx context.Context, shipmentID int64, from, to shipment.Status, trackingNumber *string, ev *shipment.TrackingEvent) (bool, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *notification.Notification) error
	ListNotificationsByUser(ctx context.Context, userID string) ([]notification.Notification, error)
}

// Storage aggregates every repository plus connection management.
type Storage interface {
	OrderRepository
	ShipmentRepository
	NotificationRepository

	Ping(ctx context.Context) error
	Close() error
}
