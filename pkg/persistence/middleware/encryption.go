package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/ports"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// envelopeClass marks the single record that carries an encrypted log.
const envelopeClass = "__encrypted__"

type encryptionMiddleware struct {
	next   ports.LogStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts logs using AES-GCM.
// The wrapped store only ever sees an envelope: a one-record log whose info
// holds the ciphertext, so snapshots, task names and file paths stay hidden.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.LogStore) ports.LogStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, name string, log domain.Log) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	plainText, err := domain.EncodeLog(log)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal log: %v", domain.ErrPersistence, err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("%w: failed to encrypt log: %v", domain.ErrPersistence, err)
	}

	envelope := domain.NewRecord(nil, envelopeClass)
	envelope.Info[envelopeClass] = base64.StdEncoding.EncodeToString(ciphertext)
	return m.next.Save(ctx, name, domain.Log{domain.Leaf(envelope)})
}

func (m *encryptionMiddleware) Load(ctx context.Context, name string) (domain.Log, error) {
	stored, err := m.next.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	// A plain log is refused rather than passed through: once encryption is
	// configured every stored log is expected to be an envelope.
	if len(stored) != 1 || stored[0].IsGroup() || stored[0].Record.TaskClass != envelopeClass {
		return nil, fmt.Errorf("%w: log %q is missing encrypted data envelope", domain.ErrPersistence, name)
	}
	encryptedStr, ok := stored[0].Record.Info[envelopeClass].(string)
	if !ok {
		return nil, fmt.Errorf("%w: log %q has a malformed envelope", domain.ErrPersistence, name)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode ciphertext base64: %v", domain.ErrPersistence, err)
	}

	// Try the active key, then the fallbacks.
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt log: %v", domain.ErrPersistence, err)
	}

	log, err := domain.DecodeLog(plainText)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal decrypted log: %v", domain.ErrPersistence, err)
	}
	return log, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, name string) error {
	return m.next.Delete(ctx, name)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

// ParseKey decodes a base64 AES-256 key, as given in configuration.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: encryption key is not base64: %v", domain.ErrConfiguration, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: encryption key must be 32 bytes, got %d", domain.ErrConfiguration, len(key))
	}
	return key, nil
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	// Try active key first
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	// Try fallbacks in order
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
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

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
