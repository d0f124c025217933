package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexsniper/sniperd/internal/domain"
)

// ExplorerClient is a REST client for an Etherscan-compatible block explorer
// API. It answers the two questions risk analysis has for an explorer: is
// the contract source verified, and when did the contract first appear.
type ExplorerClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewExplorerClient creates a new explorer client.
//
// baseURL is the API root, e.g. "https://api.etherscan.io/api".
func NewExplorerClient(baseURL, apiKey string) *ExplorerClient {
	return &ExplorerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// explorerEnvelope is the standard Etherscan response envelope.
type explorerEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// IsVerified reports whether the contract's source code is published on the
// explorer.
func (e *ExplorerClient) IsVerified(ctx context.Context, addr common.Address) (bool, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getsourcecode")
	params.Set("address", addr.Hex())

	raw, err := e.doGet(ctx, params)
	if err != nil {
		return false, fmt.Errorf("chain/explorer: get source code: %w", err)
	}

	var result []struct {
		SourceCode string `json:"SourceCode"`
		ABI        string `json:"ABI"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return false, fmt.Errorf("chain/explorer: decode source code: %w", err)
	}
	if len(result) == 0 {
		return false, nil
	}
	// unverified contracts come back with an empty SourceCode and a
	// sentinel ABI string
	if result[0].SourceCode == "" || strings.Contains(result[0].ABI, "not verified") {
		return false, nil
	}
	return true, nil
}

// FirstSeen returns the timestamp of the address's earliest transaction,
// which for a token contract is its deployment. Returns the zero time when
// the explorer has no transactions for the address.
func (e *ExplorerClient) FirstSeen(ctx context.Context, addr common.Address) (time.Time, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", addr.Hex())
	params.Set("page", "1")
	params.Set("offset", "1")
	params.Set("sort", "asc")

	raw, err := e.doGet(ctx, params)
	if err != nil {
		if strings.Contains(err.Error(), "No transactions found") {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("chain/explorer: get first tx: %w", err)
	}

	var result []struct {
		TimeStamp string `json:"timeStamp"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return time.Time{}, fmt.Errorf("chain/explorer: decode tx list: %w", err)
	}
	if len(result) == 0 {
		return time.Time{}, nil
	}
	ts, err := strconv.ParseInt(result[0].TimeStamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("chain/explorer: parse timestamp %q: %w", result[0].TimeStamp, err)
	}
	return time.Unix(ts, 0).UTC(), nil
}

func (e *ExplorerClient) doGet(ctx context.Context, params url.Values) (json.RawMessage, error) {
	if e.apiKey != "" {
		params.Set("apikey", e.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope explorerEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	// the explorer uses status "0" both for errors and for empty result
	// sets; surface the message and let callers classify
	if envelope.Status != "1" {
		return nil, fmt.Errorf("explorer error: %s", envelope.Message)
	}
	return envelope.Result, nil
}
