// Package status implements C5: building and publishing feedback and
// reply events (spec.md §4.5), with optional per-recipient encryption for
// privately-addressed requests.
package status

import (
	"encoding/json"
	"strconv"

	"nostrdvm.backend/internal/domain/entities"
	"nostrdvm.backend/internal/infrastructure/codec"
)

// Emitter builds feedback and reply events and hands them to a publisher
// function — it does not own the network connection itself.
type Emitter struct {
	ownPubKey string
	envelope  *codec.Envelope
	publish   func(entities.Event) error
}

// New builds an Emitter. envelope may be nil; encrypted requests are then
// served without encryption: the inner tags go out as plain tags and the
// result as plain content, a degraded mode only acceptable when no payload
// key is configured.
func New(ownPubKey string, envelope *codec.Envelope, publish func(entities.Event) error) *Emitter {
	return &Emitter{ownPubKey: ownPubKey, envelope: envelope, publish: publish}
}

// Feedback publishes a feedback event of kind KindFeedback for req,
// carrying status and, when the status is quoted, an amount tag.
func (e *Emitter) Feedback(req entities.JobRequest, status entities.FeedbackStatus, amountSats int64, bolt11, altText string) error {
	inner := []entities.Tag{
		{"status", string(status)},
		{"e", req.ID()},
		{"alt", altText},
	}
	if status.Quoted() {
		amountTag := entities.Tag{"amount", strconv.FormatInt(amountSats*1000, 10)}
		if bolt11 != "" {
			amountTag = append(amountTag, bolt11)
		}
		inner = append(inner, amountTag)
	}

	ev, err := e.buildEvent(req, entities.KindFeedback, inner, nil)
	if err != nil {
		return err
	}
	return e.publish(ev)
}

// Reply publishes the final result event of kind request.kind+1000
// (spec.md §4.5). resultContent is the (possibly-to-be-encrypted) payload.
func (e *Emitter) Reply(req entities.JobRequest, resultContent []byte) error {
	requestJSON, err := json.Marshal(req.Event)
	if err != nil {
		return err
	}

	inner := []entities.Tag{
		{"request", string(requestJSON)},
		{"e", req.ID()},
		{"alt", "job result"},
		{"status", string(entities.StatusSuccess)},
	}
	if !req.Encrypted {
		for _, input := range req.Inputs {
			inner = append(inner, entities.Tag{"i", input.Value, string(input.Kind), input.Relay, input.Marker})
		}
	}

	ev, err := e.buildEvent(req, req.Event.Kind+entities.ReplyKindOffset, inner, resultContent)
	if err != nil {
		return err
	}
	return e.publish(ev)
}

// buildEvent assembles an outbound event for req. For unencrypted
// requests, inner tags become the event's plain tag list plus a `p` tag.
// For encrypted requests, `p` is hoisted to the outer (plaintext) tag set
// alongside the `encrypted` marker, and inner is JSON-serialized and
// encrypted into the content (spec.md §4.5).
func (e *Emitter) buildEvent(req entities.JobRequest, kind int, inner []entities.Tag, rawContent []byte) (entities.Event, error) {
	requester := req.RequesterPubKey()

	if !req.Encrypted || e.envelope == nil {
		tags := append(append([]entities.Tag{}, inner...), entities.Tag{"p", requester})
		content := string(rawContent)
		return entities.Event{PubKey: e.ownPubKey, Kind: kind, Tags: tags, Content: content}, nil
	}

	if len(rawContent) > 0 {
		inner = append(inner, entities.Tag{"result", string(rawContent)})
	}
	ciphertext, err := e.envelope.EncryptTags(inner)
	if err != nil {
		return entities.Event{}, err
	}
	outer := []entities.Tag{
		{"p", requester},
		{"encrypted"},
	}
	return entities.Event{PubKey: e.ownPubKey, Kind: kind, Tags: outer, Content: ciphertext}, nil
}
