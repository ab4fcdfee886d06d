package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soko-arts/marketplace/internal/logger"
	"github.com/soko-arts/marketplace/internal/shipment"
	"github.com/soko-arts/marketplace/internal/types/notification"
	"github.com/soko-arts/marketplace/internal/types/order"
	"github.com/soko-arts/marketplace/internal/util/phone"
	"github.com/soko-arts/marketplace/internal/util/ref"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNotOrderOwner = errors.New("order belongs to another buyer")
	ErrAlreadyPaid   = errors.New("order is already paid")
	ErrInvalidPhone  = errors.New("invalid phone number")
	ErrBadSignature  = errors.New("ipn signature mismatch")
)

const (
	providerMpesa   = "mpesa"
	providerPesapal = "pesapal"
)

// STKPusher abstracts the M-Pesa client for tests.
type STKPusher interface {
	STKPush(ctx context.Context, phone string, amount float64, accountRef string) (*STKPushResult, error)
}

// OrderSubmitter abstracts the PesaPal client for tests.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, merchantRef string, amount float64, currency, description string) (*PesapalOrder, error)
}

type Service struct {
	orders    OrderStore
	notifier  Notifier
	shipments ShipmentCreator

	mpesa         STKPusher
	pesapal       OrderSubmitter
	pesapalSecret []byte
}

func NewService(orders OrderStore, notifier Notifier, shipments ShipmentCreator, mpesa STKPusher, pesapal OrderSubmitter, pesapalSecret []byte) *Service {
	return &Service{
		orders:        orders,
		notifier:      notifier,
		shipments:     shipments,
		mpesa:         mpesa,
		pesapal:       pesapal,
		pesapalSecret: pesapalSecret,
	}
}

// InitiateMpesa sends an STK push for the order total and stores the
// merchant request id as the correlation key for the result callback.
func (s *Service) InitiateMpesa(ctx context.Context, orderNumber, buyerID, msisdn string) (*STKPushResult, error) {
	if !phone.Validate(msisdn) {
		return nil, ErrInvalidPhone
	}
	o, err := s.findOwned(ctx, orderNumber, buyerID)
	if err != nil {
		return nil, err
	}

	res, err := s.mpesa.STKPush(ctx, msisdn, o.Subtotal+o.ShippingCost, o.Number)
	if err != nil {
		return nil, err
	}

	ok, err := s.orders.SetMpesaRequest(ctx, o.Number, res.MerchantRequestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyPaid
	}
	return res, nil
}

// InitiatePesapal registers a payment request with an exact merchant
// reference generated for this attempt.
func (s *Service) InitiatePesapal(ctx context.Context, orderNumber, buyerID string) (*PesapalOrder, error) {
	o, err := s.findOwned(ctx, orderNumber, buyerID)
	if err != nil {
		return nil, err
	}

	merchantRef := ref.MerchantRef(o.Number)
	res, err := s.pesapal.SubmitOrder(ctx, merchantRef, o.Subtotal+o.ShippingCost, "KES", "Soko order "+o.Number)
	if err != nil {
		return nil, err
	}

	ok, err := s.orders.SetPesapalRequest(ctx, o.Number, merchantRef, res.OrderTrackingID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyPaid
	}
	return res, nil
}

// HandleMpesaCallback applies an STK push result. An unmatched correlation
// id is acknowledged without error: Daraja retries on non-2xx responses and
// retrying cannot make the order appear.
func (s *Service) HandleMpesaCallback(ctx context.Context, cb *MpesaCallback) error {
	stk := cb.Body.StkCallback
	o, err := s.orders.FindOrderByMpesaRequest(ctx, stk.MerchantRequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Log().Warnw("mpesa callback for unknown request", "merchant_request_id", stk.MerchantRequestID)
			return nil
		}
		return err
	}

	if stk.ResultCode != 0 {
		res := reconcileResult{
			provider:      providerMpesa,
			transactionID: stk.MerchantRequestID,
			payment:       order.PaymentFailed,
			order:         order.StatusCancelled,
			note:          fmt.Sprintf("[mpesa] result=%d desc=%q", stk.ResultCode, stk.ResultDesc),
			notifyType:    notification.TypePaymentFailed,
			notifyTitle:   "Payment failed",
			notifyMessage: fmt.Sprintf("M-Pesa payment for order %s failed: %s", o.Number, stk.ResultDesc),
		}
		return s.apply(ctx, o, res)
	}

	receipt := extractReceipt(stk.CallbackMetadata.Item)
	res := reconcileResult{
		provider:      providerMpesa,
		transactionID: stk.MerchantRequestID,
		payment:       order.PaymentCompleted,
		order:         order.StatusConfirmed,
		txnID:         receipt.ReceiptNumber,
		note:          fmt.Sprintf("[mpesa] result=0 receipt=%s amount=%.2f phone=%s", receipt.ReceiptNumber, receipt.Amount, receipt.PhoneNumber),
		notifyType:    notification.TypeOrderConfirmed,
		notifyTitle:   "Order confirmed",
		notifyMessage: fmt.Sprintf("Payment received for order %s, receipt %s", o.Number, receipt.ReceiptNumber),
	}
	return s.apply(ctx, o, res)
}

// HandlePesapalIPN verifies the signature and applies the reported status.
func (s *Service) HandlePesapalIPN(ctx context.Context, ipn *PesapalIPN, signature string) error {
	if !VerifyIPNSignature(s.pesapalSecret, ipn.OrderTrackingID, ipn.OrderMerchantReference, signature) {
		return ErrBadSignature
	}
	return s.ApplyPesapalStatus(ctx, ipn.OrderTrackingID, ipn.OrderMerchantReference, ipn.Status)
}

// ApplyPesapalStatus reconciles a provider status string against the order
// correlated by its exact merchant reference. Shared by the IPN handler and
// the status poller. Unrecognized statuses are a logged no-op.
func (s *Service) ApplyPesapalStatus(ctx context.Context, trackingID, merchantRef, status string) error {
	o, err := s.orders.FindOrderByMerchantRef(ctx, merchantRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Log().Warnw("pesapal status for unknown reference", "merchant_ref", merchantRef)
			return nil
		}
		return err
	}

	mapping, ok := mapPesapalStatus(status)
	if !ok {
		logger.Log().Warnw("pesapal status not in vocabulary, ignoring",
			"order", o.Number, "status", status)
		return nil
	}

	var res reconcileResult
	switch mapping.payment {
	case order.PaymentCompleted:
		res = reconcileResult{
			provider:      providerPesapal,
			transactionID: trackingID,
			payment:       order.PaymentCompleted,
			order:         order.StatusConfirmed,
			txnID:         trackingID,
			note:          fmt.Sprintf("[pesapal] status=%s tracking=%s ref=%s", status, trackingID, merchantRef),
			notifyType:    notification.TypeOrderConfirmed,
			notifyTitle:   "Order confirmed",
			notifyMessage: fmt.Sprintf("Payment received for order %s", o.Number),
		}
	case order.PaymentFailed:
		res = reconcileResult{
			provider:      providerPesapal,
			transactionID: trackingID,
			payment:       order.PaymentFailed,
			order:         order.StatusCancelled,
			note:          fmt.Sprintf("[pesapal] status=%s tracking=%s ref=%s", status, trackingID, merchantRef),
			notifyType:    notification.TypePaymentFailed,
			notifyTitle:   "Payment failed",
			notifyMessage: fmt.Sprintf("PesaPal payment for order %s did not complete (%s)", o.Number, status),
		}
	default:
		// PENDING: nothing to move, the attempt is already underway.
		return nil
	}
	return s.apply(ctx, o, res)
}

type reconcileResult struct {
	provider      string
	transactionID string
	payment       order.PaymentStatus
	order         order.OrderStatus
	txnID         string
	note          string
	notifyType    notification.Type
	notifyTitle   string
	notifyMessage string
}

// apply is the idempotent core: the dedupe key and the order state commit
// in one transaction, then side effects run exactly once. A transient store
// failure rolls back the key as well, leaving the provider's retry free to
// land. A duplicate delivery or a lost race acknowledges silently because
// the first delivery already did the work.
func (s *Service) apply(ctx context.Context, o *order.Order, res reconcileResult) error {
	if !o.PaymentStatus.CanTransitionTo(res.payment) {
		logger.Log().Warnw("payment status transition rejected",
			"order", o.Number, "from", o.PaymentStatus, "to", res.payment)
		return nil
	}

	var txnID *string
	if res.txnID != "" {
		txnID = &res.txnID
	}
	applied, err := s.orders.ApplyPaymentResult(ctx, o.Number, res.provider, res.transactionID, o.PaymentStatus, res.payment, res.order, txnID)
	if err != nil {
		return err
	}
	if !applied {
		logger.Log().Infow("duplicate payment event ignored",
			"order", o.Number, "provider", res.provider, "txn", res.transactionID)
		return nil
	}

	note := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), res.note)
	if err := s.orders.AppendOrderNote(ctx, o.Number, note); err != nil {
		logger.Log().Errorw("append order note", "order", o.Number, "error", err)
	}

	n := &notification.Notification{
		OrderNumber: o.Number,
		UserID:      o.BuyerID,
		Type:        res.notifyType,
		Title:       res.notifyTitle,
		Message:     res.notifyMessage,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		logger.Log().Errorw("enqueue notification", "order", o.Number, "error", err)
	}

	if res.payment == order.PaymentCompleted {
		var weight float64
		for _, it := range o.Items {
			weight += it.WeightKg * float64(it.Quantity)
		}
		_, err := s.shipments.Create(ctx, o.Number, "", o.ShippingCountry, o.ShippingCountry, weight)
		if err != nil && !errors.Is(err, shipment.ErrShipmentExists) {
			logger.Log().Errorw("create shipment", "order", o.Number, "error", err)
		}
	}
	return nil
}

func (s *Service) findOwned(ctx context.Context, number, buyerID string) (*order.Order, error) {
	o, err := s.orders.FindOrderByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, ErrNotOrderOwner
	}
	if o.PaymentStatus == order.PaymentCompleted {
		return nil, ErrAlreadyPaid
	}
	return o, nil
}
