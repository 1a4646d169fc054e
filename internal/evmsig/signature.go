// Package evmsig implements EIP-191 personal-message signature recovery and
// address normalization for the signed token-metadata update pipeline.
package evmsig

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rexmedia/mediavault/internal/apperr"
)

// NormalizeAddress lowercases addr, ensures a 0x prefix, and validates it is
// exactly 40 hex characters after the prefix.
func NormalizeAddress(addr string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(a, "0x") {
		a = "0x" + a
	}
	if len(a) != 42 {
		return "", apperr.Newf(apperr.KindValidation, "address %q is not 20 bytes", addr)
	}
	for _, r := range a[2:] {
		if !isHexDigit(r) {
			return "", apperr.Newf(apperr.KindValidation, "address %q contains non-hex characters", addr)
		}
	}
	return a, nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}

// BuildMessage constructs the canonical message signed by the token owner.
// The exact wording and line breaks are part of the wire contract: changing
// them changes every signature's validity.
func BuildMessage(chainID int64, normalizedTokenAddress string, timestamp int64) string {
	return fmt.Sprintf("RexPump Metadata Update\nChain: %d\nToken: %s\nTimestamp: %d",
		chainID, normalizedTokenAddress, timestamp)
}

// eip191Hash computes keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
func eip191Hash(msg string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return crypto.Keccak256([]byte(prefixed))
}

// RecoverSigner recovers the address that produced sig over msg under the
// EIP-191 personal-message convention. sig must be 65 bytes [R||S||V]; V
// may be given in either the 0/1 or 27/28 convention.
func RecoverSigner(msg string, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", apperr.Newf(apperr.KindInvalidSignature, "signature must be 65 bytes, got %d", len(sig))
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	hash := eip191Hash(msg)
	pubKey, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindInvalidSignature, "recover signer")
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pubKey).Hex()), nil
}
