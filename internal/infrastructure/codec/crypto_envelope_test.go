package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostrdvm.backend/internal/domain/entities"
)

func validTestKey() string {
	// 32 bytes = 64 hex chars.
	return strings.Repeat("ab", 32)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEnvelope(validTestKey())
	require.NoError(t, err)

	tags := []entities.Tag{
		{"i", "https://example.com", "url"},
		{"p", "npub1dvm"},
		{"bid", "1000"},
	}

	ciphertext, err := env.EncryptTags(tags)
	require.NoError(t, err)

	decoded, err := env.DecryptTags(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, tags, decoded)
}

func TestEnvelope_DecryptFailureIsNotFatal(t *testing.T) {
	env, err := NewEnvelope(validTestKey())
	require.NoError(t, err)

	_, err = env.DecryptTags("not-valid-hex-ciphertext")
	assert.Error(t, err)
}

func TestNewEnvelope_RejectsWrongKeyLength(t *testing.T) {
	_, err := NewEnvelope("abcd")
	assert.Error(t, err)
}

func TestDecodeEncryptedEvent_DropsOnDecryptFailure(t *testing.T) {
	env, err := NewEnvelope(validTestKey())
	require.NoError(t, err)

	ev := entities.Event{
		ID:      "evt1",
		Tags:    []entities.Tag{{"encrypted"}},
		Content: "garbage",
	}

	_, ok := env.DecodeEncryptedEvent(ev)
	assert.False(t, ok)
}

func TestDecodeEncryptedEvent_RewritesTagsOnSuccess(t *testing.T) {
	env, err := NewEnvelope(validTestKey())
	require.NoError(t, err)

	innerTags := []entities.Tag{{"i", "hello", "text"}}
	ciphertext, err := env.EncryptTags(innerTags)
	require.NoError(t, err)

	ev := entities.Event{
		ID:      "evt1",
		PubKey:  "npub1requester",
		Kind:    5000,
		Tags:    []entities.Tag{{"encrypted"}},
		Content: ciphertext,
	}

	decoded, ok := env.DecodeEncryptedEvent(ev)
	require.True(t, ok)
	assert.Equal(t, "evt1", decoded.ID)
	assert.Equal(t, innerTags, decoded.Tags)
}

func TestDecodeEncryptedEvent_PassthroughWhenNotEncrypted(t *testing.T) {
	env, err := NewEnvelope(validTestKey())
	require.NoError(t, err)

	ev := entities.Event{ID: "evt2", Tags: []entities.Tag{{"i", "x", "text"}}}
	decoded, ok := env.DecodeEncryptedEvent(ev)
	require.True(t, ok)
	assert.Equal(t, ev, decoded)
}
