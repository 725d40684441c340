package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"ai_orchestrator/internal/models"
)

// sealedPrefix marks values produced by SealSecret.
const sealedPrefix = "enc:"

var errNoKey = errors.New("encrypted value found but no encryption key is configured")

// Encryption seals provider credentials with AES-GCM before they reach the
// database. A nil *Encryption is valid and stores secrets in the clear.
type Encryption struct {
	aead cipher.AEAD
}

func checkKeySize(n int) error {
	switch n {
	case 16, 24, 32:
		return nil
	}
	return fmt.Errorf("invalid key size: must be 16, 24, or 32 bytes, got %d", n)
}

// NewEncryption builds the cipher once for a raw AES-128/192/256 key.
func NewEncryption(key []byte) (*Encryption, error) {
	if err := checkKeySize(len(key)); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm mode: %w", err)
	}
	return &Encryption{aead: aead}, nil
}

// NewEncryptionFromBase64 decodes ENCRYPTION_KEY style values.
func NewEncryptionFromBase64(encodedKey string) (*Encryption, error) {
	if encodedKey == "" {
		return nil, errors.New("encryption key cannot be empty")
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return NewEncryption(key)
}

// GenerateKey returns a fresh random key, base64 encoded.
func GenerateKey(keySize int) (string, error) {
	if err := checkKeySize(keySize); err != nil {
		return "", err
	}
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("read random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// seal returns base64(nonce || ciphertext). scope is authenticated but not stored.
func (e *Encryption) seal(plaintext []byte, scope string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := e.aead.Seal(nonce, nonce, plaintext, []byte(scope))
	return base64.StdEncoding.EncodeToString(out), nil
}

func (e *Encryption) open(encoded string, scope string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	n := e.aead.NonceSize()
	if len(raw) < n {
		return nil, errors.New("ciphertext too short")
	}
	plaintext, err := e.aead.Open(nil, raw[:n], raw[n:], []byte(scope))
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// Encrypt seals plaintext without a scope.
func (e *Encryption) Encrypt(plaintext []byte) (string, error) {
	return e.seal(plaintext, "")
}

// Decrypt opens a value produced by Encrypt.
func (e *Encryption) Decrypt(ciphertext string) ([]byte, error) {
	return e.open(ciphertext, "")
}

// SealSecret encrypts a credential bound to scope, typically the owning
// provider and field. The same scope must be passed to OpenSecret.
func (e *Encryption) SealSecret(plaintext, scope string) (string, error) {
	if e == nil || plaintext == "" {
		return plaintext, nil
	}
	sealed, err := e.seal([]byte(plaintext), scope)
	if err != nil {
		return "", err
	}
	return sealedPrefix + sealed, nil
}

// OpenSecret reverses SealSecret. Unsealed values pass through so rows
// written before a key was configured stay readable.
func (e *Encryption) OpenSecret(stored, scope string) (string, error) {
	encoded, sealed := strings.CutPrefix(stored, sealedPrefix)
	if !sealed {
		return stored, nil
	}
	if e == nil {
		return "", errNoKey
	}
	plaintext, err := e.open(encoded, scope)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// SealProvider returns a copy of p with its API key and header values encrypted.
func (e *Encryption) SealProvider(p models.Provider) (models.Provider, error) {
	return e.mapSecrets(p, e.SealSecret)
}

// OpenProvider returns a copy of p with its credentials decrypted.
func (e *Encryption) OpenProvider(p models.Provider) (models.Provider, error) {
	return e.mapSecrets(p, e.OpenSecret)
}

func apiKeyScope(providerID string) string { return providerID + "/api_key" }

func headerScope(providerID, name string) string { return providerID + "/header/" + name }

func (e *Encryption) mapSecrets(p models.Provider, fn func(value, scope string) (string, error)) (models.Provider, error) {
	out := p.Clone()

	key, err := fn(p.Config.APIKey, apiKeyScope(p.ID))
	if err != nil {
		return models.Provider{}, fmt.Errorf("provider %s api key: %w", p.ID, err)
	}
	out.Config.APIKey = key

	for name, value := range out.Config.Headers {
		v, err := fn(value, headerScope(p.ID, name))
		if err != nil {
			return models.Provider{}, fmt.Errorf("provider %s header %s: %w", p.ID, name, err)
		}
		out.Config.Headers[name] = v
	}
	return out, nil
}
