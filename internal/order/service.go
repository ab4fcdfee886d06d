package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/soko-arts/marketplace/internal/shipping"
	"github.com/soko-arts/marketplace/internal/types/order"
	"github.com/soko-arts/marketplace/internal/util/money"
	"github.com/soko-arts/marketplace/internal/util/ref"
)

var (
	ErrEmptyOrder     = errors.New("order has no items")
	ErrInvalidItem    = errors.New("order item is invalid")
	ErrMissingCountry = errors.New("shipping country is required")
	ErrOrderNotFound  = errors.New("order not found")
	ErrNotOrderOwner  = errors.New("order belongs to another buyer")
)

type Service struct {
	repo OrderRepository
}

func NewService(r OrderRepository) *Service {
	return &Service{repo: r}
}

type CheckoutItem struct {
	ListingID string  `json:"listing_id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	WeightKg  float64 `json:"weight_kg"`
}

// Checkout captures unit prices at order time, prices shipping for the
// destination and persists the order in its initial PENDING/PENDING state.
func (s *Service) Checkout(ctx context.Context, buyerID string, items []CheckoutItem, countryCode, address string, tier shipping.Tier) (*order.Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if countryCode == "" {
		return nil, ErrMissingCountry
	}

	var subtotal, weight float64
	lines := make([]order.LineItem, 0, len(items))
	for _, it := range items {
		if it.ListingID == "" || it.Quantity < 1 || it.UnitPrice < 0 {
			return nil, ErrInvalidItem
		}
		subtotal += it.UnitPrice * float64(it.Quantity)
		weight += it.WeightKg * float64(it.Quantity)
		lines = append(lines, order.LineItem{
			ListingID: it.ListingID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			WeightKg:  it.WeightKg,
		})
	}
	subtotal = money.Round2(subtotal)

	quote, err := shipping.Calculate(countryCode, weight, subtotal, tier)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o := &order.Order{
		Number:          ref.OrderNumber(),
		BuyerID:         buyerID,
		Items:           lines,
		Subtotal:        subtotal,
		Status:          order.StatusPending,
		PaymentStatus:   order.PaymentPending,
		ShippingCountry: countryCode,
		ShippingAddress: address,
		ShippingCost:    quote.CostKES,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Get returns an order with its items. Non-admin callers only see their own.
func (s *Service) Get(ctx context.Context, number, buyerID string, isAdmin bool) (*order.Order, error) {
	o, err := s.repo.FindOrderByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !isAdmin && o.BuyerID != buyerID {
		return nil, ErrNotOrderOwner
	}
	items, err := s.repo.ListOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID string) ([]order.Order, error) {
	return s.repo.ListOrdersByBuyer(ctx, buyerID)
}
