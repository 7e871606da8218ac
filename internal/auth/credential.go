package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// CredentialLength is the length of a credential in hex characters.
const CredentialLength = blake2b.Size256 * 2

// DeriveCredential returns the identity credential for a token subject:
// the hex BLAKE2b-256 digest of issuer and subject. The same subject from
// the same issuer always maps to the same identity.
func DeriveCredential(issuer, subject string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(issuer))
	h.Write([]byte{0})
	h.Write([]byte(subject))
	return hex.EncodeToString(h.Sum(nil))
}

// ValidCredential reports whether s has the shape of a derived credential.
func ValidCredential(s string) bool {
	if len(s) != CredentialLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
