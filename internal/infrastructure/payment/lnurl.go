package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type lnurlPayResponse struct {
	Callback    string `json:"callback"`
	MinSendable int64  `json:"minSendable"`
	MaxSendable int64  `json:"maxSendable"`
}

type lnurlCallbackResponse struct {
	Pr     string `json:"pr"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// resolveLightningAddress turns a lud16 address (user@domain) into a
// bolt11 invoice for amountSats via the LNURL-pay protocol.
func resolveLightningAddress(ctx context.Context, client *http.Client, address string, amountSats int64, memo string) (string, error) {
	parts := strings.SplitN(address, "@", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed lightning address: %s", address)
	}
	user, domain := parts[0], parts[1]

	wellKnownURL := fmt.Sprintf("https://%s/.well-known/lnurlp/%s", domain, user)
	var meta lnurlPayResponse
	if err := fetchJSON(ctx, client, wellKnownURL, &meta); err != nil {
		return "", err
	}

	amountMillisat := amountSats * 1000
	if meta.MinSendable > 0 && amountMillisat < meta.MinSendable {
		return "", fmt.Errorf("amount below the address's minimum sendable")
	}
	if meta.MaxSendable > 0 && amountMillisat > meta.MaxSendable {
		return "", fmt.Errorf("amount above the address's maximum sendable")
	}

	sep := "?"
	if strings.Contains(meta.Callback, "?") {
		sep = "&"
	}
	callbackURL := fmt.Sprintf("%s%samount=%d", meta.Callback, sep, amountMillisat)

	var cb lnurlCallbackResponse
	if err := fetchJSON(ctx, client, callbackURL, &cb); err != nil {
		return "", err
	}
	if cb.Status == "ERROR" {
		return "", fmt.Errorf("lnurl callback error: %s", cb.Reason)
	}
	if cb.Pr == "" {
		return "", fmt.Errorf("lnurl callback returned no invoice")
	}
	return cb.Pr, nil
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("lnurl request to %s failed with status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
