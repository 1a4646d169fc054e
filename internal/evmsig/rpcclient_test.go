package evmsig

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, result string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rpcResponse{Result: result})
	}))
}

func TestCreatorOfParsesLow20Bytes(t *testing.T) {
	word := "0x000000000000000000000000abcdefabcdefabcdefabcdefabcdefabcdefab01"
	srv := rpcServer(t, word)
	defer srv.Close()

	c := NewRPCClient("test")
	addr, err := c.CreatorOf(context.Background(), srv.URL, "", "0xcontract")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdefabcdefabcdefabcdefabcdefabcdefab01", addr)
}

func TestCreatorOfFallsBackOnPrimaryFailure(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	word := "0x000000000000000000000000111111111111111111111111111111111111111a"
	good := rpcServer(t, word)
	defer good.Close()

	c := NewRPCClient("test2")
	addr, err := c.CreatorOf(context.Background(), bad.URL, good.URL, "0xcontract")
	require.NoError(t, err)
	assert.Equal(t, "0x111111111111111111111111111111111111111a", addr)
}

func TestCreatorOfFailsWithoutFallback(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	c := NewRPCClient("test3")
	_, err := c.CreatorOf(context.Background(), bad.URL, "", "0xcontract")
	assert.Error(t, err)
}

func TestParseCreatorResult(t *testing.T) {
	_, err := parseCreatorResult("0x1234")
	assert.Error(t, err)
}
