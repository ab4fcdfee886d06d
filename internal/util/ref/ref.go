package ref

import (
	"strings"

	"github.com/google/uuid"
)

// OrderNumber returns a new order reference, e.g. SOKO-9F8A3C21.
func OrderNumber() string {
	return "SOKO-" + short()
}

// TrackingNumber returns a new shipment tracking reference, e.g. TRK-4B0E77D1.
func TrackingNumber() string {
	return "TRK-" + short()
}

// MerchantRef returns a PesaPal merchant reference tied to an order number.
// The suffix makes each payment attempt a distinct correlation key.
func MerchantRef(orderNumber string) string {
	return orderNumber + "-" + short()
}

func short() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
