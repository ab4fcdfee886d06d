package shipment

import (
	"context"

	"github.com/soko-arts/marketplace/internal/types/shipment"
)

type ShipmentRepository interface {
	CreateShipment(ctx context.Context, s *shipment.Shipment, initialEvent *shipment.TrackingEvent) error
	FindShipmentByOrder(ctx context.Context, orderNumber string) (*shipment.Shipment, error)
	FindShipmentByTracking(ctx context.Context, trackingNumber string) (*shipment.Shipment, error)
	ListTrackingEvents(ctx context.Context, shipmentID int64) ([]shipment.TrackingEvent, error)
	// AdvanceShipmentStatus updates the status and appends the event in one
	// transaction, conditioned on the current status so concurrent updates
	// serialize at the store. Returns false when the condition failed.
	AdvanceShipmentStatus(ctx context.Context, shipmentID int64, from, to shipment.Status, trackingNumber *string, ev *shipment.TrackingEvent) (bool, error)
}
