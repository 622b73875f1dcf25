package cryptoutil

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the length of payload and config keys.
const KeySize = 32

// ParseKey decodes a 32-byte key given as "base64:<..>", "hex:<..>" or bare
// base64/hex.
func ParseKey(key string) ([]byte, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, errors.New("encryption key is empty")
	}

	var data []byte
	var err error
	if rest, ok := strings.CutPrefix(trimmed, "base64:"); ok {
		data, err = base64.StdEncoding.DecodeString(rest)
	} else if rest, ok := strings.CutPrefix(trimmed, "hex:"); ok {
		data, err = hex.DecodeString(rest)
	} else if data, err = base64.StdEncoding.DecodeString(trimmed); err != nil || len(data) != KeySize {
		data, err = hex.DecodeString(trimmed)
	}
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(data) != KeySize {
		return nil, fmt.Errorf("invalid key length: %d (expected %d bytes)", len(data), KeySize)
	}
	return data, nil
}
