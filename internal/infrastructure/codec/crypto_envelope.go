package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"

	"nostrdvm.backend/internal/domain/entities"
)

// Envelope is an AES-GCM symmetric envelope for a request's tag list,
// grounded on the session store's encrypt/decrypt pair. The DVM's actual
// peer-to-peer scheme (NIP-04/NIP-44 shared-secret derivation) is an
// external signing concern; this envelope operates on the already-shared
// symmetric key the network client derives per counterparty.
type Envelope struct {
	key []byte
}

// NewEnvelope builds an Envelope from a 32-byte hex key.
func NewEnvelope(keyHex string) (*Envelope, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, errors.New("invalid encryption key hex")
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes (64 hex chars)")
	}
	return &Envelope{key: key}, nil
}

// DecryptTags decrypts ciphertextHex into the ordered tag list it encodes.
func (e *Envelope) DecryptTags(ciphertextHex string) ([]entities.Tag, error) {
	plaintext, err := e.decrypt(ciphertextHex)
	if err != nil {
		return nil, err
	}
	var tags []entities.Tag
	if err := json.Unmarshal(plaintext, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// EncryptTags encrypts an ordered tag list for placement in an event's content.
func (e *Envelope) EncryptTags(tags []entities.Tag) (string, error) {
	plaintext, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return e.encrypt(plaintext)
}

// DecodeEncryptedEvent implements spec.md §4.1's encrypted-request branch:
// if the event carries an `encrypted` marker tag, its content is decrypted
// and the tag list is replaced, preserving id/pubkey/kind/created-at.
// Decryption failure is not surfaced — spec.md: "the event is dropped".
func (e *Envelope) DecodeEncryptedEvent(ev entities.Event) (entities.Event, bool) {
	if ev.FirstTag("encrypted") == nil {
		return ev, true
	}
	tags, err := e.DecryptTags(ev.Content)
	if err != nil {
		return entities.Event{}, false
	}
	ev.Tags = tags
	return ev, true
}

func (e *Envelope) encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return hex.EncodeToString(ciphertext), nil
}

func (e *Envelope) decrypt(ciphertextHex string) ([]byte, error) {
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
