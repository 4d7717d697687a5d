package entities

// Kind ranges recognized on the network (spec.md §6).
const (
	KindNIP90ExtractTextStart = 5000
	KindNIP90GenericEnd       = 5999
	KindDM                    = 4
	KindZap                   = 9735
	KindFeedback              = 7000
	KindHandlerAnnouncement   = 31990
	// ReplyKindOffset: a reply to a request of kind K is published as K+1000.
	ReplyKindOffset = 1000
)

// FeedbackStatus is the status value carried on a feedback event (spec.md §4.5).
type FeedbackStatus string

const (
	StatusPaymentRequired FeedbackStatus = "payment-required"
	StatusPaymentRejected FeedbackStatus = "payment-rejected"
	StatusProcessing      FeedbackStatus = "processing"
	StatusSuccess         FeedbackStatus = "success"
	StatusError           FeedbackStatus = "error"
	StatusChainScheduled  FeedbackStatus = "chain-scheduled"
)

// Quoted reports whether this status, per spec.md §4.5, must carry an
// ["amount", millisats, bolt11?] tag — not just the invoice itself, but
// any processing/success feedback that still quotes a price against the
// job (free-path processing at amount 0, success issued before payment).
func (s FeedbackStatus) Quoted() bool {
	return s == StatusPaymentRequired || s == StatusProcessing || s == StatusSuccess
}
