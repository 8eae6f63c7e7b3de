// Package utxo is the UTXO-style chain adapter (SPEC_FULL §4.2): bitcoind
// JSON-RPC over HTTP, block/tx fetch, and the Transfer/Balance/Link/
// Relation/Coinbase modules.
//
// No JSON-RPC client library appears anywhere in the retrieval pack, and
// bitcoind's RPC surface is a plain HTTP POST of a JSON-RPC 1.0 envelope;
// this client follows original_source's own warehouse HTTP client pattern
// (net/http + encoding/json) rather than reaching for an unproven
// out-of-pack dependency. See DESIGN.md.
package utxo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/barreleye-go/indexer/internal/chain"
)

const (
	rpcRetryAttempts = 10
	rpcRetryPause    = time.Second
	warmupErrorCode  = -28 // bitcoind RPC_IN_WARMUP
)

// Client is a minimal bitcoind JSON-RPC 1.0 client.
type Client struct {
	endpoint chain.Endpoint
	http     *http.Client
}

func NewClient(ep chain.Endpoint) *Client {
	return &Client{endpoint: ep, http: &http.Client{Timeout: 30 * time.Second}}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Call invokes method with params, retrying up to rpcRetryAttempts times on
// a transport error or an RPC_IN_WARMUP response (SPEC_FULL §5).
func (c *Client) Call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < rpcRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rpcRetryPause):
			}
		}

		err := c.callOnce(ctx, method, params, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var re *rpcError
		if errors.As(err, &re) && re.Code == warmupErrorCode {
			continue
		}
		if isTransportErr(err) {
			continue
		}
		return err
	}
	return errors.Wrapf(lastErr, "utxo rpc: %s failed after %d attempts", method, rpcRetryAttempts)
}

func (c *Client) callOnce(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "1.0", ID: "barreleye", Method: method, Params: params})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.endpoint.Username != "" {
		req.SetBasicAuth(c.endpoint.Username, c.endpoint.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportErr{err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErr{err}
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return errors.Wrapf(err, "utxo rpc: decode %s response", method)
	}
	if rr.Error != nil {
		return rr.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(rr.Result, out)
}

func (e *rpcError) Error() string { return e.Message }

type transportErr struct{ error }

func isTransportErr(err error) bool {
	var te transportErr
	return errors.As(err, &te)
}
