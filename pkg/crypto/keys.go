package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// GenerateKeypair returns a fresh hex-encoded secp256k1 private key and its
// x-only public key, suitable for PRIVATE_KEY/PUBLIC_KEY (spec.md §6).
func GenerateKeypair() (privateKeyHex, publicKeyHex string, err error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return "", "", fmt.Errorf("generating key seed: %w", err)
	}
	priv := secp256k1.PrivKeyFromBytes(seed[:])
	return hex.EncodeToString(priv.Serialize()), DerivePublicKey(hex.EncodeToString(priv.Serialize())), nil
}

// DerivePublicKey returns the 32-byte x-only public key (schnorr/BIP-340
// convention, as used for a signed event's pubkey field) for a hex-encoded
// secp256k1 private key. Returns "" if privateKeyHex is not a valid key.
func DerivePublicKey(privateKeyHex string) string {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil || len(raw) != 32 {
		return ""
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	pub := priv.PubKey()
	// x-only: drop the leading parity byte from the compressed encoding.
	compressed := pub.SerializeCompressed()
	return hex.EncodeToString(compressed[1:])
}
