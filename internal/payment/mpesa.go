package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// MpesaCallback is the STK push result envelope Daraja posts back.
type MpesaCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []MpesaMetadataItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type MpesaMetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// MpesaReceipt is what the metadata list carries on a successful payment.
type MpesaReceipt struct {
	ReceiptNumber string
	Amount        float64
	PhoneNumber   string
}

// extractReceipt scans the metadata items by name. Providers do not
// guarantee item order and numbers may arrive as json.Number-style floats
// or strings, so everything is coerced defensively.
func extractReceipt(items []MpesaMetadataItem) MpesaReceipt {
	var r MpesaReceipt
	for _, it := range items {
		switch it.Name {
		case "MpesaReceiptNumber":
			if s, ok := it.Value.(string); ok {
				r.ReceiptNumber = s
			}
		case "Amount":
			switch v := it.Value.(type) {
			case float64:
				r.Amount = v
			case string:
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					r.Amount = f
				}
			}
		case "PhoneNumber":
			switch v := it.Value.(type) {
			case string:
				r.PhoneNumber = v
			case float64:
				r.PhoneNumber = fmt.Sprintf("%.0f", v)
			}
		}
	}
	return r
}

// MpesaClient drives the Daraja OAuth and STK push endpoints.
type MpesaClient struct {
	Client         *http.Client
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

type STKPushResult struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	CustomerMessage   string `json:"CustomerMessage"`
}

func (c *MpesaClient) token(ctx context.Context) (string, error) {
	url := c.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.ConsumerKey, c.ConsumerSecret)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	return body.AccessToken, nil
}

// STKPush sends a payment prompt to the payer's phone. The returned
// MerchantRequestID is the correlation id the result callback carries.
func (c *MpesaClient) STKPush(ctx context.Context, phone string, amount float64, accountRef string) (*STKPushResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.ShortCode + c.Passkey + timestamp))

	payload := map[string]interface{}{
		"BusinessShortCode": c.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            int(amount + 0.5),
		"PartyA":            phone,
		"PartyB":            c.ShortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.CallbackURL,
		"AccountReference":  accountRef,
		"TransactionDesc":   "Soko order " + accountRef,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := c.BaseURL + "/mpesa/stkpush/v1/processrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do push request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stk push status %d", resp.StatusCode)
	}

	var result STKPushResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	return &result, nil
}
