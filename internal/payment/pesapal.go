package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/soko-arts/marketplace/internal/types/order"
)

// PesapalIPN is the instant payment notification body.
type PesapalIPN struct {
	OrderTrackingID        string `json:"OrderTrackingId"`
	OrderMerchantReference string `json:"OrderMerchantReference"`
	Status                 string `json:"Status"`
}

// SignIPN computes the HMAC-SHA256 signature over tracking id and merchant
// reference. Used both to verify inbound IPNs and in tests.
func SignIPN(secret []byte, trackingID, merchantRef string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(trackingID + merchantRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyIPNSignature compares in constant time.
func VerifyIPNSignature(secret []byte, trackingID, merchantRef, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(trackingID + merchantRef))
	return hmac.Equal(got, mac.Sum(nil))
}

type statusMapping struct {
	payment order.PaymentStatus
	order   order.OrderStatus
}

// pesapalStatuses is the fixed provider vocabulary. Anything outside it
// leaves the order untouched.
var pesapalStatuses = map[string]statusMapping{
	"COMPLETED": {order.PaymentCompleted, order.StatusConfirmed},
	"PAID":      {order.PaymentCompleted, order.StatusConfirmed},
	"PENDING":   {order.PaymentPending, order.StatusPending},
	"FAILED":    {order.PaymentFailed, order.StatusCancelled},
	"INVALID":   {order.PaymentFailed, order.StatusCancelled},
	"CANCELLED": {order.PaymentFailed, order.StatusCancelled},
}

func mapPesapalStatus(status string) (statusMapping, bool) {
	m, ok := pesapalStatuses[strings.ToUpper(strings.TrimSpace(status))]
	return m, ok
}

// PesapalClient drives the PesaPal API v3 order and status endpoints.
type PesapalClient struct {
	Client         *http.Client
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	IPNID          string
}

type PesapalOrder struct {
	OrderTrackingID string `json:"order_tracking_id"`
	RedirectURL     string `json:"redirect_url"`
}

func (c *PesapalClient) token(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"consumer_key":    c.ConsumerKey,
		"consumer_secret": c.ConsumerSecret,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/Auth/RequestToken", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	return result.Token, nil
}

// SubmitOrder registers a payment request and returns the tracking id the
// IPN and status endpoints reference.
func (c *PesapalClient) SubmitOrder(ctx context.Context, merchantRef string, amount float64, currency, description string) (*PesapalOrder, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"id":              merchantRef,
		"currency":        currency,
		"amount":          amount,
		"description":     description,
		"callback_url":    c.CallbackURL,
		"notification_id": c.IPNID,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/Transactions/SubmitOrderRequest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create order request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submit order status %d", resp.StatusCode)
	}

	var result PesapalOrder
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	return &result, nil
}

// TransactionStatus queries the provider's view of a payment. Used by the
// reconciliation poller for orders whose IPN never arrived.
func (c *PesapalClient) TransactionStatus(ctx context.Context, trackingID string) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	url := c.BaseURL + "/api/Transactions/GetTransactionStatus?orderTrackingId=" + trackingID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request status: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", nil
	default:
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		PaymentStatusDescription string `json:"payment_status_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode status: %w", err)
	}
	return result.PaymentStatusDescription, nil
}
