package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "nostrdvm.backend/internal/domain/errors"
	"nostrdvm.backend/internal/domain/repositories"
)

func TestCreateInvoice_NoInvoiceKeyIsWalletUnavailable(t *testing.T) {
	client := NewLNbitsClient("https://example.com", "", "")
	_, _, err := client.CreateInvoice(context.Background(), 100, "memo")
	assert.ErrorIs(t, err, domainerrors.ErrWalletUnavailable)
}

func TestCreateInvoice_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payments", r.URL.Path)
		assert.Equal(t, "invkey", r.Header.Get("X-Api-Key"))
		json.NewEncoder(w).Encode(createInvoiceResponse{PaymentHash: "hash1", PaymentReq: "lnbc1..."})
	}))
	defer server.Close()

	client := NewLNbitsClient(server.URL, "invkey", "")
	bolt11, hash, err := client.CreateInvoice(context.Background(), 100, "memo")
	require.NoError(t, err)
	assert.Equal(t, "lnbc1...", bolt11)
	assert.Equal(t, "hash1", hash)
}

func TestPoll_ReportsPaid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(paymentStatusResponse{Paid: true})
	}))
	defer server.Close()

	client := NewLNbitsClient(server.URL, "invkey", "")
	state, err := client.Poll(context.Background(), "hash1")
	require.NoError(t, err)
	assert.Equal(t, repositories.InvoicePaid, state)
}

func TestPoll_ReportsExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := paymentStatusResponse{Paid: false}
		resp.Details.Expired = true
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewLNbitsClient(server.URL, "invkey", "")
	state, err := client.Poll(context.Background(), "hash1")
	require.NoError(t, err)
	assert.Equal(t, repositories.InvoiceExpired, state)
}

func TestRefund_NoAdminKeyIsWalletUnavailable(t *testing.T) {
	client := NewLNbitsClient("https://example.com", "", "")
	_, err := client.Refund(context.Background(), "alice@example.com", 40, "refund")
	assert.ErrorIs(t, err, domainerrors.ErrWalletUnavailable)
}

func TestRefund_NoLightningAddress(t *testing.T) {
	client := NewLNbitsClient("https://example.com", "", "adminkey")
	_, err := client.Refund(context.Background(), "", 40, "refund")
	assert.ErrorIs(t, err, domainerrors.ErrNoLightningAddr)
}
