package shipment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soko-arts/marketplace/internal/logger"
	"github.com/soko-arts/marketplace/internal/shipping"
	"github.com/soko-arts/marketplace/internal/types/notification"
	"github.com/soko-arts/marketplace/internal/types/order"
	"github.com/soko-arts/marketplace/internal/types/shipment"
	"github.com/soko-arts/marketplace/internal/util/ref"
)

var (
	ErrShipmentExists    = errors.New("shipment already exists for order")
	ErrShipmentNotFound  = errors.New("shipment not found")
	ErrUnknownStatus     = errors.New("unknown shipment status")
	ErrInvalidTransition = errors.New("shipment status transition not allowed")
	ErrStaleUpdate       = errors.New("shipment changed concurrently, retry")
)

const DefaultCarrier = "Soko Express"

// OrderFinder resolves the buyer a shipment notification should target.
type OrderFinder interface {
	FindOrderByNumber(ctx context.Context, number string) (*order.Order, error)
}

type Notifier interface {
	Notify(ctx context.Context, n *notification.Notification) error
}

type Service struct {
	repo     ShipmentRepository
	orders   OrderFinder
	notifier Notifier
}

func NewService(r ShipmentRepository, orders OrderFinder, notifier Notifier) *Service {
	return &Service{repo: r, orders: orders, notifier: notifier}
}

// Create persists the one shipment an order may have. The destination is a
// short descriptor (city, country), not a full address, since it is exposed
// through the public tracking endpoint.
func (s *Service) Create(ctx context.Context, orderNumber, carrier, destination, countryCode string, weightKg float64) (*shipment.Shipment, error) {
	if _, err := s.repo.FindShipmentByOrder(ctx, orderNumber); err == nil {
		return nil, ErrShipmentExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if carrier == "" {
		carrier = DefaultCarrier
	}

	// Subtotal 0: the estimate must not depend on whether shipping was free.
	quote, err := shipping.Calculate(countryCode, weightKg, 0, shipping.TierStandard)
	var eta *time.Time
	if err == nil {
		t := time.Now().UTC().AddDate(0, 0, quote.EstDaysMax)
		eta = &t
	}

	now := time.Now().UTC()
	sh := &shipment.Shipment{
		OrderNumber: orderNumber,
		Carrier:     carrier,
		Destination: destination,
		Status:      shipment.StatusCreated,
		EstDelivery: eta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ev := &shipment.TrackingEvent{
		Description: "Shipment created, label not yet generated",
		OccurredAt:  now,
	}
	if err := s.repo.CreateShipment(ctx, sh, ev); err != nil {
		return nil, err
	}
	sh.Events = []shipment.TrackingEvent{*ev}
	return sh, nil
}

// UpdateStatus advances a shipment referenced by tracking number or order
// number and appends a tracking event. Transitions outside the allowed
// table are rejected.
func (s *Service) UpdateStatus(ctx context.Context, reference string, newStatus shipment.Status, description string, location *string) (*shipment.Shipment, error) {
	if !newStatus.Valid() {
		return nil, ErrUnknownStatus
	}
	sh, err := s.find(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !sh.Status.CanTransitionTo(newStatus) {
		return nil, ErrInvalidTransition
	}

	// The tracking number is assigned when the label is generated.
	trackingNumber := sh.TrackingNumber
	if newStatus == shipment.StatusLabelGenerated && trackingNumber == nil {
		tn := ref.TrackingNumber()
		trackingNumber = &tn
	}

	ev := &shipment.TrackingEvent{
		ShipmentID:  sh.ID,
		Description: description,
		Location:    location,
		OccurredAt:  time.Now().UTC(),
	}
	ok, err := s.repo.AdvanceShipmentStatus(ctx, sh.ID, sh.Status, newStatus, trackingNumber, ev)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStaleUpdate
	}

	sh.Status = newStatus
	sh.TrackingNumber = trackingNumber
	sh.Events = append(sh.Events, *ev)
	s.notifyStatusChange(ctx, sh.OrderNumber, newStatus)
	return sh, nil
}

// notifyStatusChange enqueues the SHIPMENT_UPDATE notification. A failure
// is logged, not returned: the transition already committed.
func (s *Service) notifyStatusChange(ctx context.Context, orderNumber string, status shipment.Status) {
	if s.notifier == nil {
		return
	}
	var userID string
	if s.orders != nil {
		if o, err := s.orders.FindOrderByNumber(ctx, orderNumber); err == nil {
			userID = o.BuyerID
		}
	}
	n := &notification.Notification{
		OrderNumber: orderNumber,
		UserID:      userID,
		Type:        notification.TypeShipmentUpdate,
		Title:       "Shipment update",
		Message:     fmt.Sprintf("Shipment for order %s is now %s", orderNumber, status),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		logger.Log().Warnw("enqueue shipment notification", "order", orderNumber, "error", err)
	}
}

// TrackingView is the public projection of a shipment: no buyer identity,
// no pricing, no full address.
type TrackingView struct {
	TrackingNumber string                   `json:"tracking_number"`
	Carrier        string                   `json:"carrier"`
	Destination    string                   `json:"destination"`
	Status         shipment.Status          `json:"status"`
	EstDelivery    *time.Time               `json:"est_delivery,omitempty"`
	Events         []shipment.TrackingEvent `json:"events"`
}

func (s *Service) TrackingInfo(ctx context.Context, trackingNumber string) (*TrackingView, error) {
	sh, err := s.repo.FindShipmentByTracking(ctx, trackingNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShipmentNotFound
		}
		return nil, err
	}
	events, err := s.repo.ListTrackingEvents(ctx, sh.ID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []shipment.TrackingEvent{}
	}
	return &TrackingView{
		TrackingNumber: trackingNumber,
		Carrier:        sh.Carrier,
		Destination:    sh.Destination,
		Status:         sh.Status,
		EstDelivery:    sh.EstDelivery,
		Events:         events,
	}, nil
}

// Get returns a shipment with its events for admin use.
func (s *Service) Get(ctx context.Context, reference string) (*shipment.Shipment, error) {
	sh, err := s.find(ctx, reference)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListTrackingEvents(ctx, sh.ID)
	if err != nil {
		return nil, err
	}
	sh.Events = events
	return sh, nil
}

func (s *Service) find(ctx context.Context, reference string) (*shipment.Shipment, error) {
	sh, err := s.repo.FindShipmentByTracking(ctx, reference)
	if err == nil {
		return sh, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	sh, err = s.repo.FindShipmentByOrder(ctx, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	return sh, err
}
