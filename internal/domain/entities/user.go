package entities

import "time"

// User is the DVM's view of a requester, keyed by their network pubkey.
// Persisted in the durable user/balance store (see repositories.UserRepository);
// in-flight job state never lives here.
type User struct {
	PubKey           string    `json:"pubkey"`
	Name             string    `json:"name"`
	NIP05            string    `json:"nip05,omitempty"`
	LightningAddress string    `json:"lud16,omitempty"`
	BalanceSats      int64     `json:"balanceSats"`
	IsWhitelisted    bool      `json:"isWhitelisted"`
	IsBlacklisted    bool      `json:"isBlacklisted"`
	LastActive       time.Time `json:"lastActive"`
}

// HasLightningAddress reports whether a refund destination is on file.
func (u *User) HasLightningAddress() bool {
	return u != nil && u.LightningAddress != ""
}
