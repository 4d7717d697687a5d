// Package payment implements C3: the Lightning payment adapter (spec.md
// §4.3), an HTTP client for an LNbits wallet.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nostrdvm.backend/internal/domain/repositories"
	domainerrors "nostrdvm.backend/internal/domain/errors"
)

// LNbitsClient implements repositories.WalletClient against an LNbits
// instance's REST API.
type LNbitsClient struct {
	baseURL     string
	invoiceKey  string
	adminKey    string
	httpClient  *http.Client
}

// NewLNbitsClient builds a client. invoiceKey/adminKey may be empty;
// CreateInvoice/Refund then fail with WalletUnavailable, per spec.md §4.3.
func NewLNbitsClient(baseURL, invoiceKey, adminKey string) *LNbitsClient {
	return &LNbitsClient{
		baseURL:    baseURL,
		invoiceKey: invoiceKey,
		adminKey:   adminKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

var _ repositories.WalletClient = (*LNbitsClient)(nil)

type createInvoiceRequest struct {
	Out    bool   `json:"out"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

type createInvoiceResponse struct {
	PaymentHash string `json:"payment_hash"`
	PaymentReq  string `json:"payment_request"`
}

// CreateInvoice mints a bolt11 invoice for amountSats.
func (c *LNbitsClient) CreateInvoice(ctx context.Context, amountSats int64, memo string) (string, string, error) {
	if c.invoiceKey == "" {
		return "", "", domainerrors.WalletUnavailable()
	}

	body := createInvoiceRequest{Out: false, Amount: amountSats, Memo: memo}
	var resp createInvoiceResponse
	if err := c.post(ctx, "/api/v1/payments", c.invoiceKey, body, &resp); err != nil {
		return "", "", err
	}
	return resp.PaymentReq, resp.PaymentHash, nil
}

type paymentStatusResponse struct {
	Paid   bool `json:"paid"`
	Details struct {
		Expired bool `json:"expired"`
	} `json:"details"`
}

// Poll checks a previously created invoice's settlement state.
func (c *LNbitsClient) Poll(ctx context.Context, paymentHash string) (repositories.InvoiceState, error) {
	var resp paymentStatusResponse
	key := c.invoiceKey
	if key == "" {
		key = c.adminKey
	}
	if err := c.get(ctx, "/api/v1/payments/"+paymentHash, key, &resp); err != nil {
		return "", err
	}
	if resp.Paid {
		return repositories.InvoicePaid, nil
	}
	if resp.Details.Expired {
		return repositories.InvoiceExpired, nil
	}
	return repositories.InvoiceUnpaid, nil
}

type payInvoiceRequest struct {
	Out       bool   `json:"out"`
	Bolt11    string `json:"bolt11,omitempty"`
	LNURLData string `json:"-"`
}

// Refund pays amountSats out to a lightning address. LNbits accepts a
// lightning-address payment via its LNURL-pay bridge endpoint; this client
// resolves lightningAddress to a bolt11 invoice first, then pays it.
func (c *LNbitsClient) Refund(ctx context.Context, lightningAddress string, amountSats int64, memo string) (string, error) {
	if c.adminKey == "" {
		return "", domainerrors.WalletUnavailable()
	}
	if lightningAddress == "" {
		return "", domainerrors.NoLightningAddress()
	}

	bolt11, err := resolveLightningAddress(ctx, c.httpClient, lightningAddress, amountSats, memo)
	if err != nil {
		return "", domainerrors.WalletUnavailable()
	}

	var resp createInvoiceResponse
	body := payInvoiceRequest{Out: true, Bolt11: bolt11}
	if err := c.post(ctx, "/api/v1/payments", c.adminKey, body, &resp); err != nil {
		return "", err
	}
	return resp.PaymentHash, nil
}

func (c *LNbitsClient) post(ctx context.Context, path, key string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", key)
	return c.do(req, out)
}

func (c *LNbitsClient) get(ctx context.Context, path, key string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", key)
	return c.do(req, out)
}

func (c *LNbitsClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domainerrors.WalletUnavailable()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("lnbits request failed with status %d: %s", resp.StatusCode, raw)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
