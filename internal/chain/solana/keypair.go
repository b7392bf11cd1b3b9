package solana

import (
	"encoding/json"
	"fmt"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
)

// ParseSecret decodes a Solana secret key given either as a solana-keygen
// JSON byte array or as a base58 string.
func ParseSecret(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") {
		var raw []byte
		var ints []int
		if err := json.Unmarshal([]byte(text), &ints); err != nil {
			return nil, fmt.Errorf("solana: keypair JSON: %w", err)
		}
		raw = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("solana: keypair byte %d out of range", i)
			}
			raw[i] = byte(v)
		}
		if len(raw) != 64 {
			return nil, fmt.Errorf("solana: keypair must be 64 bytes, got %d", len(raw))
		}
		return raw, nil
	}

	pk, err := solanago.PrivateKeyFromBase58(text)
	if err != nil {
		return nil, fmt.Errorf("solana: base58 secret: %w", err)
	}
	if len(pk) != 64 {
		return nil, fmt.Errorf("solana: secret must be 64 bytes, got %d", len(pk))
	}
	return []byte(pk), nil
}
