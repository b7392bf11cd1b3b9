// Package crypto resolves the keeper's admin signing key from configuration
// and provides password-based encryption for keys kept on disk.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	currentVersion   = 1
)

// encryptedKeyJSON is the on-disk format for an encrypted private key.
type encryptedKeyJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// KeyConfig carries the information LoadKey needs to resolve a private key.
type KeyConfig struct {
	// Secret is an inline key in the chain's text encoding.
	Secret string
	// Keyfile is a file holding the key in the chain's text encoding.
	Keyfile string
	// EncryptedKeyPath is a JSON file produced by EncryptKey.
	EncryptedKeyPath string
	KeyPassword      string
}

// SecretParser turns a chain-specific text encoding into raw key bytes.
type SecretParser func(text string) ([]byte, error)

// EncryptKey encrypts raw key bytes with a password using PBKDF2-HMAC-SHA256
// key derivation and AES-256-GCM. It returns the JSON blob suitable for
// writing to disk.
func EncryptKey(key []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if len(key) != 32 && len(key) != 64 {
		return nil, fmt.Errorf("crypto: expected 32 or 64 byte key, got %d bytes", len(key))
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	out := encryptedKeyJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, key, nil)),
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecryptKey decrypts a JSON blob produced by EncryptKey.
func DecryptKey(encryptedJSON []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	var stored encryptedKeyJSON
	if err := json.Unmarshal(encryptedJSON, &stored); err != nil {
		return nil, fmt.Errorf("crypto: parsing encrypted key JSON: %w", err)
	}
	if stored.Version != currentVersion {
		return nil, fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: nonce must be %d bytes", gcm.NonceSize())
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	return plaintext, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}

// LoadKey resolves raw key bytes from cfg. The key is read once at startup
// and held for the process lifetime.
//
// Resolution order:
//  1. Secret, decoded with parse.
//  2. Keyfile, read and decoded with parse.
//  3. EncryptedKeyPath, decrypted with KeyPassword.
//
// Every failure wraps domain.ErrConfiguration.
func LoadKey(cfg KeyConfig, parse SecretParser) ([]byte, error) {
	switch {
	case cfg.Secret != "":
		key, err := parse(strings.TrimSpace(cfg.Secret))
		if err != nil {
			return nil, fmt.Errorf("%w: wallet secret: %v", domain.ErrConfiguration, err)
		}
		return key, nil

	case cfg.Keyfile != "":
		data, err := os.ReadFile(cfg.Keyfile)
		if err != nil {
			return nil, fmt.Errorf("%w: reading keyfile: %v", domain.ErrConfiguration, err)
		}
		key, err := parse(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: keyfile %s: %v", domain.ErrConfiguration, cfg.Keyfile, err)
		}
		return key, nil

	case cfg.EncryptedKeyPath != "":
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: reading encrypted key file: %v", domain.ErrConfiguration, err)
		}
		key, err := DecryptKey(data, cfg.KeyPassword)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
		}
		return key, nil
	}

	return nil, fmt.Errorf("%w: no private key source configured (set wallet.secret, wallet.keyfile or wallet.encrypted_key_path)", domain.ErrConfiguration)
}

// ParseHexKey decodes a hex private key with or without a 0x prefix.
func ParseHexKey(text string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto: expected 32-byte key, got %d bytes", len(key))
	}
	return key, nil
}
