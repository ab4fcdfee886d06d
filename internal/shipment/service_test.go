package shipment

import (
	"context"
	"database/sql"
	"testing"

	"github.com/soko-arts/marketplace/internal/types/notification"
	"github.com/soko-arts/marketplace/internal/types/order"
	"github.com/soko-arts/marketplace/internal/types/shipment"
	"github.com/stretchr/testify/assert"
)

type mockNotifier struct {
	sent []notification.Notification
}

func (m *mockNotifier) Notify(ctx context.Context, n *notification.Notification) error {
	m.sent = append(m.sent, *n)
	return nil
}

type mockOrderFinder struct{}

func (mockOrderFinder) FindOrderByNumber(ctx context.Context, number string) (*order.Order, error) {
	return &order.Order{Number: number, BuyerID: "buyer-1"}, nil
}

type mockRepo struct {
	createFn       func(ctx context.Context, s *shipment.Shipment, ev *shipment.TrackingEvent) error
	findByOrderFn  func(ctx context.Context, orderNumber string) (*shipment.Shipment, error)
	findByTrackFn  func(ctx context.Context, trackingNumber string) (*shipment.Shipment, error)
	listEventsFn   func(ctx context.Context, shipmentID int64) ([]shipment.TrackingEvent, error)
	advanceFn      func(ctx context.Context, shipmentID int64, from, to shipment.Status, tn *string, ev *shipment.TrackingEvent) (bool, error)
}

func (m *mockRepo) CreateShipment(ctx context.Context, s *shipment.Shipment, ev *shipment.TrackingEvent) error {
	return m.createFn(ctx, s, ev)
}
func (m *mockRepo) FindShipmentByOrder(ctx context.Context, orderNumber string) (*shipment.Shipment, error) {
	return m.findByOrderFn(ctx, orderNumber)
}
func (m *mockRepo) FindShipmentByTracking(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
	return m.findByTrackFn(ctx, trackingNumber)
}
func (m *mockRepo) ListTrackingEvents(ctx context.Context, shipmentID int64) ([]shipment.TrackingEvent, error) {
	return m.listEventsFn(ctx, shipmentID)
}
func (m *mockRepo) AdvanceShipmentStatus(ctx context.Context, shipmentID int64, from, to shipment.Status, tn *string, ev *shipment.TrackingEvent) (bool, error) {
	return m.advanceFn(ctx, shipmentID, from, to, tn, ev)
}

func TestCreateShipment(t *testing.T) {
	repo := &mockRepo{
		findByOrderFn: func(ctx context.Context, orderNumber string) (*shipment.Shipment, error) {
			return nil, sql.ErrNoRows
		},
		createFn: func(ctx context.Context, s *shipment.Shipment, ev *shipment.TrackingEvent) error {
			s.ID = 7
			return nil
		},
	}
	svc := NewService(repo, nil, nil)

	sh, err := svc.Create(context.Background(), "SOKO-1", "", "Nairobi, KE", "KE", 2)
	assert.NoError(t, err)
	assert.Equal(t, shipment.StatusCreated, sh.Status)
	assert.Equal(t, DefaultCarrier, sh.Carrier)
	assert.Nil(t, sh.TrackingNumber)
	assert.NotNil(t, sh.EstDelivery)
	assert.Len(t, sh.Events, 1)
}

func TestCreateShipmentDuplicate(t *testing.T) {
	repo := &mockRepo{
		findByOrderFn: func(ctx context.Context, orderNumber string) (*shipment.Shipment, error) {
			return &shipment.Shipment{ID: 1, OrderNumber: orderNumber}, nil
		},
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.Create(context.Background(), "SOKO-1", "", "Nairobi, KE", "KE", 2)
	assert.Equal(t, ErrShipmentExists, err)
}

func TestUpdateStatusAssignsTrackingNumber(t *testing.T) {
	var gotTracking *string
	repo := &mockRepo{
		findByTrackFn: func(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
			return nil, sql.ErrNoRows
		},
		findByOrderFn: func(ctx context.Context, orderNumber string) (*shipment.Shipment, error) {
			return &shipment.Shipment{ID: 1, OrderNumber: orderNumber, Status: shipment.StatusCreated}, nil
		},
		advanceFn: func(ctx context.Context, shipmentID int64, from, to shipment.Status, tn *string, ev *shipment.TrackingEvent) (bool, error) {
			gotTracking = tn
			return true, nil
		},
	}
	svc := NewService(repo, nil, nil)

	sh, err := svc.UpdateStatus(context.Background(), "SOKO-1", shipment.StatusLabelGenerated, "Label generated", nil)
	assert.NoError(t, err)
	assert.Equal(t, shipment.StatusLabelGenerated, sh.Status)
	assert.NotNil(t, gotTracking)
	assert.Equal(t, gotTracking, sh.TrackingNumber)
}

func TestUpdateStatusRejectsSkip(t *testing.T) {
	repo := &mockRepo{
		findByTrackFn: func(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
			return &shipment.Shipment{ID: 1, Status: shipment.StatusCreated}, nil
		},
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "TRK-1", shipment.StatusDelivered, "Delivered", nil)
	assert.Equal(t, ErrInvalidTransition, err)
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	svc := NewService(&mockRepo{}, nil, nil)
	_, err := svc.UpdateStatus(context.Background(), "TRK-1", "TELEPORTED", "", nil)
	assert.Equal(t, ErrUnknownStatus, err)
}

func TestUpdateStatusTerminalState(t *testing.T) {
	repo := &mockRepo{
		findByTrackFn: func(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
			return &shipment.Shipment{ID: 1, Status: shipment.StatusDelivered}, nil
		},
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "TRK-1", shipment.StatusReturned, "Returned", nil)
	assert.Equal(t, ErrInvalidTransition, err)
}

func TestUpdateStatusCancelFromTransit(t *testing.T) {
	repo := &mockRepo{
		findByTrackFn: func(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
			tn := trackingNumber
			return &shipment.Shipment{ID: 1, Status: shipment.StatusInTransit, TrackingNumber: &tn}, nil
		},
		advanceFn: func(ctx context.Context, shipmentID int64, from, to shipment.Status, tn *string, ev *shipment.TrackingEvent) (bool, error) {
			return true, nil
		},
	}
	svc := NewService(repo, nil, nil)

	sh, err := svc.UpdateStatus(context.Background(), "TRK-1", shipment.StatusCancelled, "Shipment cancelled", nil)
	assert.NoError(t, err)
	assert.Equal(t, shipment.StatusCancelled, sh.Status)
}

func TestUpdateStatusStale(t *testing.T) {
	repo := &mockRepo{
		findByTrackFn: func(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
			tn := trackingNumber
			return &shipment.Shipment{ID: 1, Status: shipment.StatusPickedUp, TrackingNumber: &tn}, nil
		},
		advanceFn: func(ctx context.Context, shipmentID int64, from, to shipment.Status, tn *string, ev *shipment.TrackingEvent) (bool, error) {
			return false, nil
		},
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "TRK-1", shipment.StatusInTransit, "Departed Nairobi hub", nil)
	assert.Equal(t, ErrStaleUpdate, err)
}

func TestTrackingInfoProjection(t *testing.T) {
	tn := "TRK-9"
	loc := "Nairobi"
	repo := &mockRepo{
		findByTrackFn: func(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
			return &shipment.Shipment{
				ID:             3,
				OrderNumber:    "SOKO-9",
				TrackingNumber: &tn,
				Carrier:        "Soko Express",
				Destination:    "Kampala, UG",
				Status:         shipment.StatusDelivered,
			}, nil
		},
		listEventsFn: func(ctx context.Context, shipmentID int64) ([]shipment.TrackingEvent, error) {
			return []shipment.TrackingEvent{
				{ShipmentID: 3, Description: "Delivered to recipient", Location: &loc},
			}, nil
		},
	}
	svc := NewService(repo, nil, nil)

	view, err := svc.TrackingInfo(context.Background(), "TRK-9")
	assert.NoError(t, err)
	assert.Equal(t, shipment.StatusDelivered, view.Status)
	assert.Len(t, view.Events, 1)
	assert.Equal(t, "Delivered to recipient", view.Events[0].Description)
}

func TestTrackingInfoNotFound(t *testing.T) {
	repo := &mockRepo{
		findByTrackFn: func(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
			return nil, sql.ErrNoRows
		},
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.TrackingInfo(context.Background(), "TRK-NOPE")
	assert.Equal(t, ErrShipmentNotFound, err)
}

func TestUpdateStatusEmitsNotification(t *testing.T) {
	repo := &mockRepo{
		findByTrackFn: func(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
			tn := trackingNumber
			return &shipment.Shipment{ID: 1, OrderNumber: "SOKO-1", Status: shipment.StatusPickedUp, TrackingNumber: &tn}, nil
		},
		advanceFn: func(ctx context.Context, shipmentID int64, from, to shipment.Status, tn *string, ev *shipment.TrackingEvent) (bool, error) {
			return true, nil
		},
	}
	notifier := &mockNotifier{}
	svc := NewService(repo, mockOrderFinder{}, notifier)

	_, err := svc.UpdateStatus(context.Background(), "TRK-1", shipment.StatusInTransit, "Departed Nairobi hub", nil)
	assert.NoError(t, err)
	assert.Len(t, notifier.sent, 1)
	assert.Equal(t, notification.TypeShipmentUpdate, notifier.sent[0].Type)
	assert.Equal(t, "SOKO-1", notifier.sent[0].OrderNumber)
	assert.Equal(t, "buyer-1", notifier.sent[0].UserID)
	assert.Contains(t, notifier.sent[0].Message, string(shipment.StatusInTransit))
}

func TestUpdateStatusNoNotificationOnRejection(t *testing.T) {
	repo := &mockRepo{
		findByTrackFn: func(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
			return &shipment.Shipment{ID: 1, OrderNumber: "SOKO-1", Status: shipment.StatusCreated}, nil
		},
	}
	notifier := &mockNotifier{}
	svc := NewService(repo, mockOrderFinder{}, notifier)

	_, err := svc.UpdateStatus(context.Background(), "TRK-1", shipment.StatusDelivered, "Delivered", nil)
	assert.Equal(t, ErrInvalidTransition, err)
	assert.Empty(t, notifier.sent)
}

func TestStatusTransitionTable(t *testing.T) {
	assert.True(t, shipment.StatusCreated.CanTransitionTo(shipment.StatusLabelGenerated))
	assert.True(t, shipment.StatusOutForDelivery.CanTransitionTo(shipment.StatusDelivered))
	assert.True(t, shipment.StatusCreated.CanTransitionTo(shipment.StatusCancelled))
	assert.False(t, shipment.StatusCreated.CanTransitionTo(shipment.StatusInTransit))
	assert.False(t, shipment.StatusDelivered.CanTransitionTo(shipment.StatusReturned))
	assert.False(t, shipment.StatusCancelled.CanTransitionTo(shipment.StatusCreated))
}
