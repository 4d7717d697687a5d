package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nostrdvm.backend/internal/domain/repositories"
)

// cashuToken mirrors the minimal fields of a serialized "cashuA..." token:
// a mint URL and a list of proofs, base64-encoded as JSON per NUT-00.
type cashuToken struct {
	Token []struct {
		Mint   string `json:"mint"`
		Proofs []struct {
			Amount int64  `json:"amount"`
			ID     string `json:"id"`
			Secret string `json:"secret"`
			C      string `json:"C"`
		} `json:"proofs"`
	} `json:"token"`
}

// MintRedeemer implements repositories.CashuRedeemer by posting a token's
// proof secrets to the issuing mint's /v1/checkstate endpoint; a 2xx reply
// counts as redeemed. The proofs are not melted or swapped.
type MintRedeemer struct {
	httpClient *http.Client
}

// NewMintRedeemer builds a redeemer using a bounded-timeout HTTP client.
func NewMintRedeemer() *MintRedeemer {
	return &MintRedeemer{httpClient: &http.Client{Timeout: 15 * time.Second}}
}

var _ repositories.CashuRedeemer = (*MintRedeemer)(nil)

// Redeem decodes a "cashuA..." token and submits its proofs to the
// token's own mint for a balance check, per spec.md §4.3's
// redeem_cashu(token, expected_amount) contract.
func (r *MintRedeemer) Redeem(ctx context.Context, token string, expectedAmountSats int64) (repositories.CashuResult, error) {
	parsed, err := decodeCashuToken(token)
	if err != nil {
		return repositories.CashuResult{OK: false, Message: "malformed cashu token"}, nil
	}
	if len(parsed.Token) == 0 {
		return repositories.CashuResult{OK: false, Message: "empty cashu token"}, nil
	}

	mintURL := parsed.Token[0].Mint
	var total int64
	for _, p := range parsed.Token[0].Proofs {
		total += p.Amount
	}
	if total < expectedAmountSats {
		return repositories.CashuResult{OK: false, Message: fmt.Sprintf("token carries %d sats, expected %d", total, expectedAmountSats)}, nil
	}

	checkURL := strings.TrimRight(mintURL, "/") + "/v1/checkstate"
	body, err := json.Marshal(map[string]any{"Ys": proofSecrets(parsed)})
	if err != nil {
		return repositories.CashuResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, checkURL, bytes.NewReader(body))
	if err != nil {
		return repositories.CashuResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return repositories.CashuResult{OK: false, Message: "mint unreachable"}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return repositories.CashuResult{OK: false, Message: fmt.Sprintf("mint rejected proofs: status %d", resp.StatusCode)}, nil
	}

	return repositories.CashuResult{OK: true, CreditedAmount: total}, nil
}

func proofSecrets(t cashuToken) []string {
	var out []string
	for _, entry := range t.Token {
		for _, p := range entry.Proofs {
			out = append(out, p.Secret)
		}
	}
	return out
}

func decodeCashuToken(token string) (cashuToken, error) {
	const prefix = "cashuA"
	if !strings.HasPrefix(token, prefix) {
		return cashuToken{}, fmt.Errorf("unsupported cashu token version")
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, prefix))
	if err != nil {
		// tokens are also commonly padded base64url
		raw, err = base64.URLEncoding.DecodeString(strings.TrimPrefix(token, prefix))
		if err != nil {
			return cashuToken{}, err
		}
	}
	var out cashuToken
	if err := json.Unmarshal(raw, &out); err != nil {
		return cashuToken{}, err
	}
	return out, nil
}
