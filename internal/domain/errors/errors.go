// Package errors is the DVM's error taxonomy, per spec.md §7: one sentinel
// value and one policy-carrying constructor per failure kind the
// orchestrator must distinguish.
package errors

import "errors"

// Sentinel leaf errors. Wrap these with AppError when a human-readable
// message needs to travel alongside the cause.
var (
	ErrUnsupported       = errors.New("task not supported")
	ErrBlacklisted       = errors.New("requester is blacklisted")
	ErrMalformedTag      = errors.New("malformed tag")
	ErrPaymentRejected   = errors.New("payment rejected")
	ErrDependencyPending = errors.New("dependency job not yet resolved")
	ErrWorkerError       = errors.New("worker error")
	ErrPostProcessError  = errors.New("post-processing error")
	ErrInvoiceExpired    = errors.New("invoice expired")
	ErrRelaySendFailure  = errors.New("relay send failure")
	ErrWalletUnavailable = errors.New("wallet unavailable")
	ErrNoLightningAddr   = errors.New("requester has no lightning address")
	ErrNotFound          = errors.New("not found")
)

// AppError pairs a sentinel with a human-readable message and an optional
// wrapped cause.
type AppError struct {
	Sentinel error
	Message  string
	Err      error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Sentinel.Error()
}

func (e *AppError) Unwrap() error { return e.Sentinel }

func newAppError(sentinel error, message string, cause error) *AppError {
	return &AppError{Sentinel: sentinel, Message: message, Err: cause}
}

// Unsupported: task tag not in the dispatcher's catalogue. Policy: silent drop.
func Unsupported(task string) *AppError {
	return newAppError(ErrUnsupported, "unsupported task: "+task, nil)
}

// Blacklisted: requester rejected outright. Policy: emit `error`, drop.
func Blacklisted() *AppError {
	return newAppError(ErrBlacklisted, "blacklisted requester", nil)
}

// MalformedTag: e.g. a truncated `i` tag. Policy: log, drop.
func MalformedTag(detail string) *AppError {
	return newAppError(ErrMalformedTag, detail, nil)
}

// PaymentRejected: cashu redemption failed, or a zap underpaid the quote.
// Policy: emit `error` (cashu) or `payment-rejected` (zap) with the diagnostic.
func PaymentRejected(reason string) *AppError {
	return newAppError(ErrPaymentRejected, reason, nil)
}

// DependencyPending: an `i` tag of kind=job references an unresolved
// result. Policy: hold up to 20 minutes on the HoldList.
func DependencyPending(eventID string) *AppError {
	return newAppError(ErrDependencyPending, "dependency job not resolved: "+eventID, nil)
}

// WorkerError: the worker's Run returned an error. Policy: emit a generic
// `error` ("An error occurred" — never the wrapped cause) and refund if paid.
func WorkerError(cause error) *AppError {
	return newAppError(ErrWorkerError, "An error occurred", cause)
}

// PostProcessError: PostProcess returned an error. Policy: same refund
// path as WorkerError, but the cause IS safe to expose to the requester.
func PostProcessError(cause error) *AppError {
	msg := "An error occurred"
	if cause != nil {
		msg = cause.Error()
	}
	return newAppError(ErrPostProcessError, msg, cause)
}

// InvoiceExpired: the wallet declared the invoice stale. Policy: drop the
// ledger entry silently — the payer never paid.
func InvoiceExpired(paymentHash string) *AppError {
	return newAppError(ErrInvoiceExpired, "invoice expired: "+paymentHash, nil)
}

// RelaySendFailure: transport-layer failure, retried by the underlying
// client per its own policy. Policy here: log only.
func RelaySendFailure(cause error) *AppError {
	return newAppError(ErrRelaySendFailure, "relay send failed", cause)
}

// WalletUnavailable: no invoice key configured, so an invoice cannot be
// minted. Policy: caller must still emit `payment-required` without one.
func WalletUnavailable() *AppError {
	return newAppError(ErrWalletUnavailable, "wallet unavailable: no invoice key configured", nil)
}

// NoLightningAddress: a refund was attempted but the requester has none on file.
func NoLightningAddress() *AppError {
	return newAppError(ErrNoLightningAddr, "requester has no lightning address", nil)
}

// NotFound: a referenced resource (user row, feedback event) doesn't exist.
func NotFound(what string) *AppError {
	return newAppError(ErrNotFound, what+" not found", nil)
}
