// Package auth issues and verifies identity tokens and derives the
// credentials that name identities.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// keyLength is the PASETO v4.local symmetric key size.
const keyLength = 32

// keyFile holds the hex-encoded token key under the data path.
const keyFile = "auth.key"

// LoadOrGenerateKey returns the identity token key stored in
// <dataPath>/auth.key, generating and saving one on first start. Every
// issued token becomes unverifiable if the file is lost.
func LoadOrGenerateKey(dataPath string) ([]byte, error) {
	keyPath := filepath.Join(dataPath, keyFile)

	key, err := readKey(keyPath)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	key = make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate auth key: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("save auth key: %w", err)
	}
	return key, nil
}

func readKey(keyPath string) ([]byte, error) {
	//#nosec G304 -- path is derived from the configured data path
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	keyHex := strings.TrimSpace(string(raw))
	if len(keyHex) != keyLength*2 {
		return nil, fmt.Errorf("invalid auth key in %s: expected %d hex chars, got %d", keyPath, keyLength*2, len(keyHex))
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid auth key in %s: %w", keyPath, err)
	}
	return key, nil
}
