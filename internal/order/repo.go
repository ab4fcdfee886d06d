package order

import (
	"context"

	"github.com/soko-arts/marketplace/internal/types/order"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	FindOrderByNumber(ctx context.Context, number string) (*order.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]order.LineItem, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]order.Order, error)
	AppendOrderNote(ctx context.Context, number, note string) error
}
