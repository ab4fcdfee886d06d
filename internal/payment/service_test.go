package payment

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/soko-arts/marketplace/internal/types/notification"
	"github.com/soko-arts/marketplace/internal/types/order"
	"github.com/soko-arts/marketplace/internal/types/shipment"
	"github.com/stretchr/testify/assert"
)

// fakeStore emulates the transactional semantics of the Postgres layer:
// ApplyPaymentResult dedupes on (provider, txn, status) and applies the
// order update only when the expected status still holds, committing or
// discarding both together.
type fakeStore struct {
	mu       sync.Mutex
	orders   map[string]*order.Order
	events   map[string]bool
	notes    []string
	applyErr error
}

func newFakeStore(orders ...*order.Order) *fakeStore {
	s := &fakeStore{
		orders: map[string]*order.Order{},
		events: map[string]bool{},
	}
	for _, o := range orders {
		s.orders[o.Number] = o
	}
	return s
}

func (s *fakeStore) FindOrderByNumber(ctx context.Context, number string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[number]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *fakeStore) FindOrderByMpesaRequest(ctx context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.MpesaRequestID != nil && *o.MpesaRequestID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeStore) FindOrderByMerchantRef(ctx context.Context, ref string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PesapalMerchantRef != nil && *o.PesapalMerchantRef == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeStore) SetMpesaRequest(ctx context.Context, number, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[number]
	if !ok || o.PaymentStatus == order.PaymentCompleted {
		return false, nil
	}
	o.MpesaRequestID = &id
	o.PaymentStatus = order.PaymentProcessing
	return true, nil
}

func (s *fakeStore) SetPesapalRequest(ctx context.Context, number, ref, trackingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[number]
	if !ok || o.PaymentStatus == order.PaymentCompleted {
		return false, nil
	}
	o.PesapalMerchantRef = &ref
	o.PesapalTrackingID = &trackingID
	o.PaymentStatus = order.PaymentProcessing
	return true, nil
}

func (s *fakeStore) ApplyPaymentResult(ctx context.Context, number, provider, transactionID string, from, to order.PaymentStatus, orderStatus order.OrderStatus, txnID *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		err := s.applyErr
		s.applyErr = nil
		return false, err
	}
	key := provider + "|" + transactionID + "|" + string(to)
	if s.events[key] {
		return false, nil
	}
	o, ok := s.orders[number]
	if !ok || o.PaymentStatus != from {
		return false, nil
	}
	s.events[key] = true
	o.PaymentStatus = to
	o.Status = orderStatus
	if txnID != nil {
		o.PaymentTxnID = txnID
	}
	return true, nil
}

func (s *fakeStore) AppendOrderNote(ctx context.Context, number, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, note)
	return nil
}

func (s *fakeStore) ListOrdersAwaitingPayment(ctx context.Context) ([]order.Order, error) {
	return nil, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, msg *notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, *msg)
	return nil
}

type fakeShipments struct {
	mu      sync.Mutex
	created []string
}

func (f *fakeShipments) Create(ctx context.Context, orderNumber, carrier, destination, countryCode string, weightKg float64) (*shipment.Shipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, orderNumber)
	return &shipment.Shipment{OrderNumber: orderNumber}, nil
}

func pendingOrder(number, merchantRequestID string) *order.Order {
	return &order.Order{
		Number:          number,
		BuyerID:         "buyer-1",
		Subtotal:        4500,
		Status:          order.StatusPending,
		PaymentStatus:   order.PaymentProcessing,
		MpesaRequestID:  &merchantRequestID,
		ShippingCountry: "KE",
	}
}

func successCallback(merchantRequestID string) *MpesaCallback {
	cb := &MpesaCallback{}
	cb.Body.StkCallback.MerchantRequestID = merchantRequestID
	cb.Body.StkCallback.ResultCode = 0
	cb.Body.StkCallback.CallbackMetadata.Item = []MpesaMetadataItem{
		{Name: "Amount", Value: 4850.0},
		{Name: "MpesaReceiptNumber", Value: "RK12XY89ZQ"},
		{Name: "PhoneNumber", Value: 254712345678.0},
	}
	return cb
}

func newTestService(store *fakeStore, notifier *fakeNotifier, shipments *fakeShipments) *Service {
	return NewService(store, notifier, shipments, nil, nil, []byte("ipn-secret"))
}

func TestMpesaCallbackSuccess(t *testing.T) {
	store := newFakeStore(pendingOrder("SOKO-1", "mr-1"))
	notifier := &fakeNotifier{}
	shipments := &fakeShipments{}
	svc := newTestService(store, notifier, shipments)

	err := svc.HandleMpesaCallback(context.Background(), successCallback("mr-1"))
	assert.NoError(t, err)

	o := store.orders["SOKO-1"]
	assert.Equal(t, order.PaymentCompleted, o.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.NotNil(t, o.PaymentTxnID)
	assert.Equal(t, "RK12XY89ZQ", *o.PaymentTxnID)
	assert.Equal(t, []string{"SOKO-1"}, shipments.created)
	assert.Len(t, notifier.sent, 1)
	assert.Equal(t, notification.TypeOrderConfirmed, notifier.sent[0].Type)
	assert.Len(t, store.notes, 1)
	assert.Contains(t, store.notes[0], "RK12XY89ZQ")
}

func TestMpesaCallbackIdempotent(t *testing.T) {
	store := newFakeStore(pendingOrder("SOKO-1", "mr-1"))
	notifier := &fakeNotifier{}
	shipments := &fakeShipments{}
	svc := newTestService(store, notifier, shipments)

	assert.NoError(t, svc.HandleMpesaCallback(context.Background(), successCallback("mr-1")))
	assert.NoError(t, svc.HandleMpesaCallback(context.Background(), successCallback("mr-1")))

	assert.Equal(t, order.PaymentCompleted, store.orders["SOKO-1"].PaymentStatus)
	assert.Len(t, notifier.sent, 1)
	assert.Len(t, shipments.created, 1)
	assert.Len(t, store.notes, 1)
}

func TestMpesaCallbackRetryAfterStoreError(t *testing.T) {
	store := newFakeStore(pendingOrder("SOKO-1", "mr-1"))
	store.applyErr = errors.New("connection reset by peer")
	notifier := &fakeNotifier{}
	shipments := &fakeShipments{}
	svc := newTestService(store, notifier, shipments)

	err := svc.HandleMpesaCallback(context.Background(), successCallback("mr-1"))
	assert.Error(t, err)
	assert.Equal(t, order.PaymentProcessing, store.orders["SOKO-1"].PaymentStatus)
	assert.Empty(t, notifier.sent)
	assert.Empty(t, shipments.created)

	// The failed attempt must not consume the dedupe key: the provider
	// retries on a non-2xx response and that retry has to land.
	assert.NoError(t, svc.HandleMpesaCallback(context.Background(), successCallback("mr-1")))
	assert.Equal(t, order.PaymentCompleted, store.orders["SOKO-1"].PaymentStatus)
	assert.Len(t, notifier.sent, 1)
	assert.Len(t, shipments.created, 1)
}

func TestMpesaCallbackFailure(t *testing.T) {
	store := newFakeStore(pendingOrder("SOKO-2", "mr-2"))
	notifier := &fakeNotifier{}
	shipments := &fakeShipments{}
	svc := newTestService(store, notifier, shipments)

	cb := &MpesaCallback{}
	cb.Body.StkCallback.MerchantRequestID = "mr-2"
	cb.Body.StkCallback.ResultCode = 1032
	cb.Body.StkCallback.ResultDesc = "Request cancelled by user"

	assert.NoError(t, svc.HandleMpesaCallback(context.Background(), cb))

	o := store.orders["SOKO-2"]
	assert.Equal(t, order.PaymentFailed, o.PaymentStatus)
	assert.Equal(t, order.StatusCancelled, o.Status)
	assert.Empty(t, shipments.created)
	assert.Len(t, notifier.sent, 1)
	assert.Equal(t, notification.TypePaymentFailed, notifier.sent[0].Type)
}

func TestMpesaCallbackUnknownRequestAcked(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	shipments := &fakeShipments{}
	svc := newTestService(store, notifier, shipments)

	err := svc.HandleMpesaCallback(context.Background(), successCallback("mr-ghost"))
	assert.NoError(t, err)
	assert.Empty(t, notifier.sent)
	assert.Empty(t, store.notes)
}

func TestMpesaCallbackAfterTerminalState(t *testing.T) {
	o := pendingOrder("SOKO-3", "mr-3")
	o.PaymentStatus = order.PaymentCompleted
	o.Status = order.StatusConfirmed
	store := newFakeStore(o)
	notifier := &fakeNotifier{}
	shipments := &fakeShipments{}
	svc := newTestService(store, notifier, shipments)

	cb := &MpesaCallback{}
	cb.Body.StkCallback.MerchantRequestID = "mr-3"
	cb.Body.StkCallback.ResultCode = 1

	assert.NoError(t, svc.HandleMpesaCallback(context.Background(), cb))
	assert.Equal(t, order.PaymentCompleted, store.orders["SOKO-3"].PaymentStatus)
	assert.Empty(t, notifier.sent)
}

func TestExtractReceipt(t *testing.T) {
	r := extractReceipt([]MpesaMetadataItem{
		{Name: "Amount", Value: 1500.5},
		{Name: "MpesaReceiptNumber", Value: "AB1CD2EF34"},
		{Name: "PhoneNumber", Value: "254700000001"},
		{Name: "Balance", Value: nil},
	})
	assert.Equal(t, "AB1CD2EF34", r.ReceiptNumber)
	assert.Equal(t, 1500.5, r.Amount)
	assert.Equal(t, "254700000001", r.PhoneNumber)

	// Amounts sometimes arrive as strings.
	r = extractReceipt([]MpesaMetadataItem{
		{Name: "Amount", Value: "2350.75"},
		{Name: "MpesaReceiptNumber", Value: "ZZ9YX8WV76"},
	})
	assert.Equal(t, 2350.75, r.Amount)
	assert.Equal(t, "ZZ9YX8WV76", r.ReceiptNumber)

	r = extractReceipt([]MpesaMetadataItem{{Name: "Amount", Value: "not-a-number"}})
	assert.Equal(t, 0.0, r.Amount)
}

func TestInitiateMpesaValidation(t *testing.T) {
	store := newFakeStore(pendingOrder("SOKO-1", "mr-1"))
	svc := newTestService(store, &fakeNotifier{}, &fakeShipments{})

	_, err := svc.InitiateMpesa(context.Background(), "SOKO-1", "buyer-1", "0712345678")
	assert.Equal(t, ErrInvalidPhone, err)

	_, err = svc.InitiateMpesa(context.Background(), "SOKO-404", "buyer-1", "254712345678")
	assert.Equal(t, ErrOrderNotFound, err)

	_, err = svc.InitiateMpesa(context.Background(), "SOKO-1", "somebody-else", "254712345678")
	assert.Equal(t, ErrNotOrderOwner, err)
}

type fakePusher struct {
	result *STKPushResult
}

func (f *fakePusher) STKPush(ctx context.Context, phone string, amount float64, accountRef string) (*STKPushResult, error) {
	return f.result, nil
}

func TestInitiateMpesaStoresCorrelation(t *testing.T) {
	o := pendingOrder("SOKO-1", "old-request")
	o.PaymentStatus = order.PaymentPending
	store := newFakeStore(o)
	svc := NewService(store, &fakeNotifier{}, &fakeShipments{},
		&fakePusher{result: &STKPushResult{MerchantRequestID: "mr-new", CheckoutRequestID: "chk-new"}},
		nil, []byte("ipn-secret"))

	res, err := svc.InitiateMpesa(context.Background(), "SOKO-1", "buyer-1", "254712345678")
	assert.NoError(t, err)
	assert.Equal(t, "mr-new", res.MerchantRequestID)

	stored := store.orders["SOKO-1"]
	assert.Equal(t, "mr-new", *stored.MpesaRequestID)
	assert.Equal(t, order.PaymentProcessing, stored.PaymentStatus)
}

func TestInitiateMpesaAlreadyPaid(t *testing.T) {
	o := pendingOrder("SOKO-1", "mr-1")
	o.PaymentStatus = order.PaymentCompleted
	store := newFakeStore(o)
	svc := newTestService(store, &fakeNotifier{}, &fakeShipments{})

	_, err := svc.InitiateMpesa(context.Background(), "SOKO-1", "buyer-1", "254712345678")
	assert.Equal(t, ErrAlreadyPaid, err)
}

func TestConcurrentCallbacksSingleApply(t *testing.T) {
	store := newFakeStore(pendingOrder("SOKO-1", "mr-1"))
	notifier := &fakeNotifier{}
	shipments := &fakeShipments{}
	svc := newTestService(store, notifier, shipments)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.HandleMpesaCallback(context.Background(), successCallback("mr-1"))
		}()
	}
	wg.Wait()

	assert.Equal(t, order.PaymentCompleted, store.orders["SOKO-1"].PaymentStatus)
	assert.Len(t, notifier.sent, 1)
	assert.Len(t, shipments.created, 1)
}

func TestNoteIncludesProviderTag(t *testing.T) {
	store := newFakeStore(pendingOrder("SOKO-1", "mr-1"))
	svc := newTestService(store, &fakeNotifier{}, &fakeShipments{})

	assert.NoError(t, svc.HandleMpesaCallback(context.Background(), successCallback("mr-1")))
	assert.Len(t, store.notes, 1)
	assert.True(t, strings.Contains(store.notes[0], "[mpesa]"))
}
