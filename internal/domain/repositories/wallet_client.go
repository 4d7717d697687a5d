package repositories

import "context"

// InvoiceState is the result of polling a payment hash.
type InvoiceState string

const (
	InvoicePaid    InvoiceState = "paid"
	InvoiceUnpaid  InvoiceState = "unpaid"
	InvoiceExpired InvoiceState = "expired"
)

// WalletClient is the Payment Adapter's external collaborator contract
// (spec.md §4.3, C3) — a Lightning wallet's HTTP surface. Out of scope
// per spec.md §1; implementations (LNbits, a Lightning node's REST API)
// are external, but every DVM needs one, so payment.LNbitsClient provides
// a concrete implementation of this interface.
type WalletClient interface {
	// CreateInvoice mints a bolt11 invoice for amountSats. Returns
	// WalletUnavailable if no invoice key is configured.
	CreateInvoice(ctx context.Context, amountSats int64, memo string) (bolt11 string, paymentHash string, err error)

	// Poll checks a previously created invoice's settlement state.
	Poll(ctx context.Context, paymentHash string) (InvoiceState, error)

	// Refund pays amountSats out to a lightning address. Returns
	// NoLightningAddress or WalletUnavailable on failure.
	Refund(ctx context.Context, lightningAddress string, amountSats int64, memo string) (paymentHash string, err error)
}

// CashuResult is the outcome of redeeming a cashu token (spec.md §4.3).
type CashuResult struct {
	OK              bool
	Message         string
	CreditedAmount  int64
	FeesSats        int64
}

// CashuRedeemer is the bearer-ecash redemption collaborator (spec.md §1,
// listed as out of scope: "the Cashu token redeemer").
type CashuRedeemer interface {
	Redeem(ctx context.Context, token string, expectedAmountSats int64) (CashuResult, error)
}
