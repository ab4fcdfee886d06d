package router

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/soko-arts/marketplace/internal/logger"
	"github.com/soko-arts/marketplace/internal/middleware"
	"github.com/soko-arts/marketplace/internal/notify"
	"github.com/soko-arts/marketplace/internal/order"
	"github.com/soko-arts/marketplace/internal/payment"
	"github.com/soko-arts/marketplace/internal/shipment"
	"github.com/soko-arts/marketplace/internal/shipping"
)

func NewRouter(
	shippingH *shipping.Handler,
	shipmentH *shipment.Handler,
	orderH *order.Handler,
	paymentH *payment.Handler,
	notifyH *notify.Handler,
	jwtSecret []byte,
) chi.Router {
	r := chi.NewRouter()

	r.Use(logger.WithLogging)
	r.Use(chiMiddleware.Recoverer)

	r.Use(middleware.GzipHandler)

	// Public: quotes, tracking, provider webhooks.
	r.Post("/api/shipping", shippingH.Quote)
	r.Get("/api/tracking", shipmentH.Tracking)
	r.Post("/api/payments/mpesa/callback", paymentH.MpesaCallback)
	r.Post("/api/payments/pesapal/ipn", paymentH.PesapalIPN)

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware(jwtSecret))

		r.Post("/api/orders", orderH.Checkout)
		r.Get("/api/orders", orderH.ListOrders)
		r.Get("/api/orders/{number}", orderH.GetOrder)
		r.Get("/api/notifications", notifyH.ListNotifications)
		r.Post("/api/payments/mpesa/initiate", paymentH.InitiateMpesa)
		r.Post("/api/payments/pesapal/initiate", paymentH.InitiatePesapal)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware(jwtSecret))
		r.Use(middleware.RequireAdmin)

		r.Post("/api/admin/shipments", shipmentH.CreateShipment)
		r.Post("/api/admin/shipments/{ref}/status", shipmentH.UpdateStatus)
		r.Get("/api/admin/shipments/{ref}", shipmentH.GetShipment)
	})

	return r
}
