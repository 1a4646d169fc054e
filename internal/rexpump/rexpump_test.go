package rexpump

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/config"
	"github.com/rexmedia/mediavault/internal/evmsig"
	"github.com/rexmedia/mediavault/internal/models"
	"github.com/rexmedia/mediavault/internal/obslog"
	"github.com/rexmedia/mediavault/internal/store/blob"
	"github.com/rexmedia/mediavault/internal/store/meta"
	"github.com/rexmedia/mediavault/internal/upload"
)

func creatorRPCServer(t *testing.T, creator string) *httptest.Server {
	t.Helper()
	word := "0x000000000000000000000000" + creator[2:]
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"` + word + `"}`))
	}))
}

func testEngine(t *testing.T, rpcURL, ownerAddr string) *Engine {
	t.Helper()
	dir := t.TempDir()
	metaStore, err := meta.Open(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = metaStore.Close() })

	blobStore, err := blob.New(dir, 2)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Upload.AllowedImageTypes = []string{"image/png"}
	cfg.RexPump.Enabled = true
	cfg.RexPump.SignatureMaxAgeSeconds = 300
	cfg.RexPump.UpdateCooldownSeconds = 3600
	cfg.RexPump.Networks = map[string]config.NetworkConfig{
		"testnet": {ChainID: 1, RPCURL: rpcURL},
	}

	logger, err := obslog.New(obslog.Config{Environment: "development", LogLevel: "debug"})
	require.NoError(t, err)

	uploadEngine := upload.NewEngine(metaStore, blobStore, &cfg, logger)
	rpcClients := map[string]*evmsig.RPCClient{"testnet": evmsig.NewRPCClient("testnet")}
	return NewEngine(metaStore, uploadEngine, rpcClients, &cfg, logger)
}

func signedRequest(t *testing.T, chainID int64, tokenAddr string) (models.SocialLink, UpdateRequest, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	owner := crypto.PubkeyToAddress(key.PublicKey).Hex()

	ts := time.Now().Unix()
	msg := evmsig.BuildMessage(chainID, normalizeOrFail(t, tokenAddr), ts)
	sig, err := crypto.Sign(hashMessage(msg), key)
	require.NoError(t, err)

	desc := "hello world"
	req := UpdateRequest{
		ChainID: chainID, TokenAddress: tokenAddr, TokenOwner: owner,
		Timestamp: ts, Signature: sig, Description: &desc,
	}
	return models.SocialLink{}, req, owner
}

func normalizeOrFail(t *testing.T, addr string) string {
	t.Helper()
	n, err := evmsig.NormalizeAddress(addr)
	require.NoError(t, err)
	return n
}

// hashMessage duplicates evmsig's unexported eip191Hash for test fixture
// construction, since the engine test lives in a different package.
func hashMessage(msg string) []byte {
	prefixed := "\x19Ethereum Signed Message:\n" + itoa(len(msg)) + msg
	return crypto.Keccak256([]byte(prefixed))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestSignedUpdateHappyPath(t *testing.T) {
	tokenAddr := "0x0000000000000000000000000000000000000001"
	_, req, owner := signedRequest(t, 1, tokenAddr)

	srv := creatorRPCServer(t, owner)
	defer srv.Close()

	e := testEngine(t, srv.URL, owner)
	tm, err := e.SignedUpdate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "hello world", tm.Description)
	assert.Equal(t, normalizeOrFail(t, owner), tm.LastUpdateBy)
}

func TestSignedUpdateRejectsWrongCreator(t *testing.T) {
	tokenAddr := "0x0000000000000000000000000000000000000002"
	_, req, owner := signedRequest(t, 1, tokenAddr)

	someoneElse := "0x00000000000000000000000000000000000000ff"
	srv := creatorRPCServer(t, someoneElse)
	defer srv.Close()

	e := testEngine(t, srv.URL, owner)
	_, err := e.SignedUpdate(context.Background(), req)
	ae, ok := apperr.Of(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotAuthorized, ae.Kind)
}

func TestSignedUpdateRejectsLockedToken(t *testing.T) {
	tokenAddr := "0x0000000000000000000000000000000000000003"
	_, req, owner := signedRequest(t, 1, tokenAddr)

	srv := creatorRPCServer(t, owner)
	defer srv.Close()

	e := testEngine(t, srv.URL, owner)
	require.NoError(t, e.AdminLock(1, tokenAddr, models.LockTypeLocked, "spam", "admin"))

	_, err := e.SignedUpdate(context.Background(), req)
	ae, ok := apperr.Of(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindTokenLocked, ae.Kind)
}

func TestAdminLockWithDefaultsThenPublicGet(t *testing.T) {
	tokenAddr := "0x0000000000000000000000000000000000000004"
	owner := "0x0000000000000000000000000000000000000099"
	e := testEngine(t, "", owner)

	desc := "Original content"
	_, err := e.AdminUpdate(1, tokenAddr, &desc, nil, nil, nil, "", "")
	require.NoError(t, err)

	require.NoError(t, e.AdminLock(1, tokenAddr, models.LockTypeLockedWithDefaults, "", "admin"))

	resp, err := e.PublicGet(1, tokenAddr, "https://cdn.example")
	require.NoError(t, err)
	assert.Equal(t, "", resp.Description)
	assert.Equal(t, "https://cdn.example/m/default", resp.ImageLightURL)
}

func TestAdminLockUnlockRoundTrip(t *testing.T) {
	tokenAddr := "0x0000000000000000000000000000000000000005"
	e := testEngine(t, "", "")
	require.NoError(t, e.AdminLock(1, tokenAddr, models.LockTypeLocked, "", "admin"))

	existed, err := e.AdminUnlock(1, tokenAddr)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = e.AdminUnlock(1, tokenAddr)
	require.NoError(t, err)
	assert.False(t, existed)
}
