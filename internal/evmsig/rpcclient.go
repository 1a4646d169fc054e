package evmsig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/rexmedia/mediavault/internal/apperr"
)

// creatorSelector is the 4-byte selector of creator().
const creatorSelector = "0x02d05d3f"

const rpcTimeout = 10 * time.Second

// RPCClient queries a chain's creator() accessor via eth_call, retrying the
// primary endpoint through a circuit breaker before falling back to a
// secondary RPC URL.
type RPCClient struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker

	// OnFailure, if set, is invoked with "primary" or "fallback" each time
	// that endpoint's call fails, letting the caller feed a metrics
	// counter without this package importing one.
	OnFailure func(endpoint string)
}

// NewRPCClient builds an RPCClient. name identifies the breaker in metrics
// and logs (typically the network name, e.g. "ethereum").
func NewRPCClient(name string) *RPCClient {
	settings := gobreaker.Settings{
		Name:        "evm-rpc-" + name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &RPCClient{
		httpClient: &http.Client{Timeout: rpcTimeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcCallParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *RPCClient) ethCall(ctx context.Context, rpcURL, contractAddress string) (string, error) {
	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_call",
		Params: []interface{}{
			rpcCallParams{To: contractAddress, Data: creatorSelector},
			"latest",
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rpc endpoint returned status %d", resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	return decoded.Result, nil
}

// parseCreatorResult extracts the low 20 bytes (40 hex chars) of the
// returned 32-byte word as a lowercased 0x-address.
func parseCreatorResult(result string) (string, error) {
	hex := strings.TrimPrefix(result, "0x")
	if len(hex) < 40 {
		return "", fmt.Errorf("unexpected eth_call result length %d", len(hex))
	}
	return "0x" + strings.ToLower(hex[len(hex)-40:]), nil
}

func (c *RPCClient) callWithRetry(ctx context.Context, rpcURL, contractAddress string) (string, error) {
	var result string
	op := func() error {
		r, err := c.ethCall(ctx, rpcURL, contractAddress)
		if err != nil {
			return err
		}
		result = r
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return result, nil
}

// CreatorOf queries creator() on contractAddress against primaryRPCURL
// (through the circuit breaker, with retry), falling back to
// fallbackRPCURL on any failure. An empty fallbackRPCURL disables the
// fallback.
func (c *RPCClient) CreatorOf(ctx context.Context, primaryRPCURL, fallbackRPCURL, contractAddress string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.callWithRetry(ctx, primaryRPCURL, contractAddress)
	})
	if err == nil {
		return parseCreatorResult(raw.(string))
	}
	c.notifyFailure("primary")

	if fallbackRPCURL == "" {
		return "", apperr.Wrap(err, apperr.KindInternal, "on-chain creator lookup failed and no fallback RPC is configured")
	}

	result, fallbackErr := c.callWithRetry(ctx, fallbackRPCURL, contractAddress)
	if fallbackErr != nil {
		c.notifyFailure("fallback")
		return "", apperr.Wrap(fallbackErr, apperr.KindInternal, "on-chain creator lookup failed on both primary and fallback RPC")
	}
	return parseCreatorResult(result)
}

func (c *RPCClient) notifyFailure(endpoint string) {
	if c.OnFailure != nil {
		c.OnFailure(endpoint)
	}
}
