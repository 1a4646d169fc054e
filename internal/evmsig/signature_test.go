package evmsig

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("0xABCDEF0000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", got)

	got, err = NormalizeAddress("ABCDEF0000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", got)

	_, err = NormalizeAddress("0x123")
	assert.Error(t, err)

	_, err = NormalizeAddress("0xzzzzzz0000000000000000000000000000000001")
	assert.Error(t, err)
}

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage(1, "0xabc", 12345)
	assert.Equal(t, "RexPump Metadata Update\nChain: 1\nToken: 0xabc\nTimestamp: 12345", msg)
}

func TestRecoverSignerRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	msg := BuildMessage(1, "0xtoken", 1690000000)
	hash := eip191Hash(msg)

	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)

	recovered, err := RecoverSigner(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, toLowerHex(address), recovered)
}

func TestRecoverSignerRejectsBadLength(t *testing.T) {
	_, err := RecoverSigner("msg", []byte{1, 2, 3})
	assert.Error(t, err)
}

func toLowerHex(s string) string {
	out := make([]byte, len(s))
	for i, c := range []byte(s) {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
