package bridgeClient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/transportSigner"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
)

// APIError is a non-2xx response from a bridge node
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bridge node returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("bridge node returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the response code back onto the ledger error it came from, so callers can use errors.Is
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "INVALID_AMOUNT":
		return types.ErrInvalidAmount
	case "INVALID_SIGNATURE":
		return types.ErrInvalidSignature
	case "NOT_OWNER":
		return types.ErrNotOwner
	case "TRANSFER_FAILED":
		return types.ErrTransferFailed
	case "INSUFFICIENT_BALANCE":
		return types.ErrInsufficientBalance
	case "REPLAYED_AUTHORIZATION":
		return types.ErrReplayedAuthorization
	case "UNAUTHENTICATED":
		return types.ErrUnauthenticated
	case "REPLAYED_REQUEST":
		return types.ErrReplayedRequest
	}
	return nil
}

// BridgeClient talks to the HTTP API of a bridge node
type BridgeClient struct {
	baseURL    string
	httpClient *http.Client
	signer     transportSigner.ITransportSigner
	maxRetries uint64
	logger     *zap.Logger
}

// NewBridgeClient creates a client for the node at baseURL. Requests that act on behalf of an
// account are signed by signer and act as its address; signer may be nil for a read-only client.
func NewBridgeClient(baseURL string, signer transportSigner.ITransportSigner, logger *zap.Logger) *BridgeClient {
	return &BridgeClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		signer:     signer,
		maxRetries: 3,
		logger:     logger,
	}
}

// Address is the account signed requests act as
func (c *BridgeClient) Address() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

// doSigned signs body for path once and sends it. Retries resend the same message, which the
// node accepts because rate limited and failed requests are rejected before they are recorded.
func (c *BridgeClient) doSigned(ctx context.Context, path string, body, out interface{}) error {
	if c.signer == nil {
		return fmt.Errorf("%w: client has no signer for %s", types.ErrUnauthenticated, path)
	}
	msg, err := transportSigner.SignRequest(c.signer, path, body, time.Now())
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, msg, out)
}

// do sends one request, retrying while the node is rate limiting or unavailable.
// Ledger rejections are returned immediately.
func (c *BridgeClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
			var errResp types.ErrorResponse
			if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
				apiErr.Message = errResp.Error
				apiErr.Code = errResp.Code
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		c.logger.Sugar().Debugw("Retrying bridge request", "path", path, "wait", wait, "error", err)
	})
}

// Lock locks amount of the signer's underlying asset for destination on the sidechain
func (c *BridgeClient) Lock(ctx context.Context, amount *big.Int, destination common.Address) (*types.Event, error) {
	var resp types.EventResponse
	err := c.doSigned(ctx, "/mainchain/lock", &types.LockRequest{Amount: amount, Destination: destination}, &resp)
	return resp.Event, err
}

// Unlock submits a release to the main-chain ledger
func (c *BridgeClient) Unlock(ctx context.Context, att *types.Attestation) (*types.Event, error) {
	var resp types.EventResponse
	err := c.do(ctx, http.MethodPost, "/mainchain/unlock", releaseRequest(att), &resp)
	return resp.Event, err
}

// Mint submits a release to the sidechain ledger
func (c *BridgeClient) Mint(ctx context.Context, att *types.Attestation) (*types.Event, error) {
	var resp types.EventResponse
	err := c.do(ctx, http.MethodPost, "/sidechain/mint", releaseRequest(att), &resp)
	return resp.Event, err
}

func releaseRequest(att *types.Attestation) *types.ReleaseRequest {
	return &types.ReleaseRequest{
		Recipient:  att.Recipient,
		Amount:     att.Amount,
		Nonce:      att.Nonce,
		Signatures: att.Signatures,
	}
}

func (c *BridgeClient) Burn(ctx context.Context, amount *big.Int) (*types.Event, error) {
	var resp types.EventResponse
	err := c.doSigned(ctx, "/sidechain/burn", &types.BurnRequest{Amount: amount}, &resp)
	return resp.Event, err
}

// Transfer moves the signer's wrapped tokens to another sidechain account and returns the signer's new balance
func (c *BridgeClient) Transfer(ctx context.Context, to common.Address, amount *big.Int) (*big.Int, error) {
	var resp types.BalanceResponse
	err := c.doSigned(ctx, "/sidechain/transfer", &types.TransferRequest{To: to, Amount: amount}, &resp)
	return resp.Amount, err
}

// SetValidator installs members as the validator set of chain. The signer must own the ledger.
// A threshold of zero with one member installs a single validator.
func (c *BridgeClient) SetValidator(ctx context.Context, chain types.ChainName, members []common.Address, threshold int) (*types.ValidatorSet, error) {
	var resp types.ValidatorSet
	err := c.doSigned(ctx, "/"+chain.String()+"/validator", &types.SetValidatorRequest{
		Members:   members,
		Threshold: threshold,
	}, &resp)
	return &resp, err
}

// Approve sets the allowance of the main-chain ledger over the signer's underlying asset
func (c *BridgeClient) Approve(ctx context.Context, amount *big.Int) (*big.Int, error) {
	var resp types.BalanceResponse
	err := c.doSigned(ctx, "/asset/approve", &types.ApproveRequest{Amount: amount}, &resp)
	return resp.Amount, err
}

// Faucet mints underlying asset to account on a dev node
func (c *BridgeClient) Faucet(ctx context.Context, account common.Address, amount *big.Int) (*big.Int, error) {
	var resp types.BalanceResponse
	err := c.do(ctx, http.MethodPost, "/asset/faucet", &types.FaucetRequest{Account: account, Amount: amount}, &resp)
	return resp.Amount, err
}

// Attest asks a dev node's authority to sign a release on chain
func (c *BridgeClient) Attest(ctx context.Context, chain types.ChainName, recipient common.Address, amount *big.Int, nonce uint64) (*types.Attestation, error) {
	var resp types.AttestationResponse
	err := c.do(ctx, http.MethodPost, "/authority/attest", &types.AttestRequest{
		Chain:     chain,
		Recipient: recipient,
		Amount:    amount,
		Nonce:     nonce,
	}, &resp)
	return resp.Attestation, err
}

func (c *BridgeClient) balance(ctx context.Context, path string) (*big.Int, error) {
	var resp types.BalanceResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Amount, nil
}

func (c *BridgeClient) Custody(ctx context.Context) (*big.Int, error) {
	return c.balance(ctx, "/mainchain/custody")
}

func (c *BridgeClient) SideBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.balance(ctx, "/sidechain/balance?address="+account.Hex())
}

func (c *BridgeClient) Supply(ctx context.Context) (*big.Int, error) {
	return c.balance(ctx, "/sidechain/supply")
}

func (c *BridgeClient) AssetBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.balance(ctx, "/asset/balance?address="+account.Hex())
}

// Events lists events of chain with a sequence above from, from the ledger or the node's archive
func (c *BridgeClient) Events(ctx context.Context, chain types.ChainName, from uint64, archive bool) ([]*types.Event, error) {
	q := url.Values{}
	q.Set("chain", chain.String())
	q.Set("from", strconv.FormatUint(from, 10))
	if archive {
		q.Set("archive", "true")
	}

	var resp types.EventsResponse
	if err := c.do(ctx, http.MethodGet, "/events?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *BridgeClient) Health(ctx context.Context) (*types.HealthResponse, error) {
	var resp types.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ParseSignatures decodes comma separated hex signatures
func ParseSignatures(raw string) ([]hexutil.Bytes, error) {
	var sigs []hexutil.Bytes
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sig, err := hexutil.Decode(part)
		if err != nil {
			return nil, fmt.Errorf("invalid signature %q: %w", part, err)
		}
		sigs = append(sigs, sig)
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("no signatures given")
	}
	return sigs, nil
}
