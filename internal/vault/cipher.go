package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// keySize is the secretbox key length.
const keySize = 32

// Cipher seals and opens credential payloads at rest using
// NaCl secretbox, keyed by VAULT_MASTER_KEY.
type Cipher struct {
	key [keySize]byte
}

// NewCipher derives a Cipher from a base64 or raw 32-byte master key.
func NewCipher(masterKey string) (*Cipher, error) {
	raw, err := decodeMasterKey(masterKey)
	if err != nil {
		return nil, err
	}
	c := &Cipher{}
	copy(c.key[:], raw)
	return c, nil
}

func decodeMasterKey(masterKey string) ([]byte, error) {
	if masterKey == "" {
		return nil, fmt.Errorf("VAULT_MASTER_KEY is not set")
	}
	if decoded, err := base64.StdEncoding.DecodeString(masterKey); err == nil && len(decoded) == keySize {
		return decoded, nil
	}
	if len(masterKey) == keySize {
		return []byte(masterKey), nil
	}
	return nil, fmt.Errorf("VAULT_MASTER_KEY must decode to exactly %d bytes", keySize)
}

// Seal JSON-encodes payload and encrypts it, prefixing the output with a
// fresh random nonce as secretbox expects.
func (c *Cipher) Seal(payload map[string]any) ([]byte, error) {
	plain, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return secretbox.Seal(nonce[:], plain, &nonce, &c.key), nil
}

// Open decrypts a blob produced by Seal and decodes it back to a payload map.
func (c *Cipher) Open(blob []byte) (map[string]any, error) {
	if len(blob) < 24 {
		return nil, fmt.Errorf("credential blob too short")
	}
	var nonce [24]byte
	copy(nonce[:], blob[:24])

	plain, ok := secretbox.Open(nil, blob[24:], &nonce, &c.key)
	if !ok {
		return nil, fmt.Errorf("decrypting credential blob: authentication failed")
	}

	var payload map[string]any
	if err := json.Unmarshal(plain, &payload); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}
	return payload, nil
}
