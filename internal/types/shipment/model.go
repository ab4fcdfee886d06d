package shipment

import "time"

type Status string

const (
	StatusCreated        Status = "CREATED"
	StatusLabelGenerated Status = "LABEL_GENERATED"
	StatusPickedUp       Status = "PICKED_UP"
	StatusInTransit      Status = "IN_TRANSIT"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusReturned       Status = "RETURNED"
	StatusCancelled      Status = "CANCELLED"
)

// forward is the fixed delivery sequence. RETURNED and CANCELLED are
// reachable from any non-terminal state and close the shipment.
var forward = map[Status]Status{
	StatusCreated:        StatusLabelGenerated,
	StatusLabelGenerated: StatusPickedUp,
	StatusPickedUp:       StatusInTransit,
	StatusInTransit:      StatusOutForDelivery,
	StatusOutForDelivery: StatusDelivered,
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusReturned || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusLabelGenerated, StatusPickedUp, StatusInTransit,
		StatusOutForDelivery, StatusDelivered, StatusReturned, StatusCancelled:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == StatusReturned || next == StatusCancelled {
		return true
	}
	return forward[s] == next
}

type TrackingEvent struct {
	ID          int64     `db:"id" json:"-"`
	ShipmentID  int64     `db:"shipment_id" json:"-"`
	Description string    `db:"description" json:"description"`
	Location    *string   `db:"location" json:"location,omitempty"`
	OccurredAt  time.Time `db:"occurred_at" json:"occurred_at"`
}

type Shipment struct {
	ID             int64           `db:"id" json:"-"`
	OrderNumber    string          `db:"order_number" json:"order_number"`
	TrackingNumber *string         `db:"tracking_number" json:"tracking_number,omitempty"`
	Carrier        string          `db:"carrier" json:"carrier"`
	Destination    string          `db:"destination" json:"destination"`
	Status         Status          `db:"status" json:"status"`
	EstDelivery    *time.Time      `db:"est_delivery" json:"est_delivery,omitempty"`
	Events         []TrackingEvent `db:"-" json:"events,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"-"`
}
