// Package codec implements C1: parsing inbound request events into the
// domain's JobRequest shape, and the encrypted-tag envelope used by
// privately-addressed requests (spec.md §4.1).
package codec

import (
	"strconv"

	"nostrdvm.backend/internal/domain/entities"
	domainerrors "nostrdvm.backend/internal/domain/errors"
)

// DecodeJobRequest parses ev's tags into a JobRequest. Task resolution
// (kind+tags → catalogue key) is left to the dispatcher; this only
// extracts the tag-shaped fields spec.md §4.1 recognizes.
func DecodeJobRequest(ev entities.Event) (entities.JobRequest, error) {
	req := entities.JobRequest{
		Event:  ev,
		Params: map[string][]string{},
	}

	for _, tag := range ev.Tags {
		switch tag.Name() {
		case "i":
			input, err := decodeInputTag(tag)
			if err != nil {
				return entities.JobRequest{}, err
			}
			req.Inputs = append(req.Inputs, input)
		case "p":
			req.PTag = tag.Value()
		case "bid":
			amount, err := strconv.ParseInt(tag.Value(), 10, 64)
			if err != nil {
				return entities.JobRequest{}, domainerrors.MalformedTag("bid: " + tag.Value())
			}
			req.BidMillisat = amount
			req.HasBid = true
		case "cashu":
			req.CashuToken = tag.Value()
		case "encrypted":
			req.Encrypted = true
		case "output":
			req.Outputs = append(req.Outputs, tag.Value())
		case "param":
			if len(tag) < 2 {
				continue
			}
			key := tag.Value()
			req.Params[key] = append(req.Params[key], tag.At(2))
		}
	}

	return req, nil
}

// decodeInputTag parses [i, value, kind, relay?, marker?]. Fewer than
// three elements is malformed per spec.md §4.1.
func decodeInputTag(tag entities.Tag) (entities.Input, error) {
	if len(tag) < 3 {
		return entities.Input{}, domainerrors.MalformedTag("i: truncated input tag")
	}

	kind := entities.InputKind(tag.At(2))
	switch kind {
	case entities.InputKindURL, entities.InputKindText, entities.InputKindEvent, entities.InputKindJob:
	default:
		return entities.Input{}, domainerrors.MalformedTag("i: unrecognized input kind " + string(kind))
	}

	return entities.Input{
		Value:  tag.At(1),
		Kind:   kind,
		Relay:  tag.At(3),
		Marker: tag.At(4),
	}, nil
}
