package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
)

const maxRequestBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, code string) {
	writeJSON(w, status, &types.ErrorResponse{Error: message, Code: code})
}

// writeLedgerError maps a ledger failure onto an HTTP status
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_AMOUNT")
	case errors.Is(err, types.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, err.Error(), "INVALID_SIGNATURE")
	case errors.Is(err, types.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error(), "NOT_OWNER")
	case errors.Is(err, types.ErrTransferFailed):
		writeError(w, http.StatusConflict, err.Error(), "TRANSFER_FAILED")
	case errors.Is(err, types.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, err.Error(), "INSUFFICIENT_BALANCE")
	case errors.Is(err, types.ErrReplayedAuthorization):
		writeError(w, http.StatusConflict, err.Error(), "REPLAYED_AUTHORIZATION")
	default:
		writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	}
}

// decode reads a JSON body into v, answering the request itself when that fails
func decode(w http.ResponseWriter, r *http.Request, method string, v interface{}) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return false
	}
	if method == http.MethodGet {
		return true
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err), "BAD_REQUEST")
		return false
	}
	return true
}

func addressParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := r.URL.Query().Get("address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "address must be a hex address", "BAD_REQUEST")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// manualNonce rejects a domain-bound nonce from the range the relay signs with
func manualNonce(w http.ResponseWriter, domain *types.Domain, nonce uint64) bool {
	if domain == nil || types.IsManualNonce(nonce) {
		return true
	}
	writeError(w, http.StatusBadRequest, fmt.Sprintf("nonce must be at least %d, lower nonces are reserved for the relay", types.ManualNonceBase), "BAD_REQUEST")
	return false
}

func toAttestation(req *types.ReleaseRequest) *types.Attestation {
	return &types.Attestation{
		Authorization: types.Authorization{
			Recipient: req.Recipient,
			Amount:    req.Amount,
			Nonce:     req.Nonce,
		},
		Signatures: req.Signatures,
	}
}

// handleLock handles POST /mainchain/lock
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var req types.LockRequest
	caller, ok := s.authenticate(w, r, &req)
	if !ok {
		return
	}
	ev, err := s.node.MainChain.Lock(caller, req.Amount, req.Destination)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &types.EventResponse{Event: ev})
}

// handleUnlock handles POST /mainchain/unlock
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req types.ReleaseRequest
	if !decode(w, r, http.MethodPost, &req) {
		return
	}
	if len(req.Signatures) == 0 {
		writeError(w, http.StatusBadRequest, "at least one signature is required", "BAD_REQUEST")
		return
	}

	if req.Nonce != 0 && !manualNonce(w, s.node.MainChain.Domain(), req.Nonce) {
		return
	}

	var ev *types.Event
	var err error
	if len(req.Signatures) == 1 && req.Nonce == 0 {
		ev, err = s.node.MainChain.Unlock(req.Recipient, req.Amount, req.Signatures[0])
	} else {
		ev, err = s.node.MainChain.Release(toAttestation(&req))
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &types.EventResponse{Event: ev})
}

// handleMint handles POST /sidechain/mint
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req types.ReleaseRequest
	if !decode(w, r, http.MethodPost, &req) {
		return
	}
	if len(req.Signatures) == 0 {
		writeError(w, http.StatusBadRequest, "at least one signature is required", "BAD_REQUEST")
		return
	}

	if req.Nonce != 0 && !manualNonce(w, s.node.SideChain.Domain(), req.Nonce) {
		return
	}

	var ev *types.Event
	var err error
	if len(req.Signatures) == 1 && req.Nonce == 0 {
		ev, err = s.node.SideChain.Mint(req.Recipient, req.Amount, req.Signatures[0])
	} else {
		ev, err = s.node.SideChain.MintAttested(toAttestation(&req))
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &types.EventResponse{Event: ev})
}

// handleBurn handles POST /sidechain/burn
func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req types.BurnRequest
	caller, ok := s.authenticate(w, r, &req)
	if !ok {
		return
	}
	ev, err := s.node.SideChain.Burn(caller, req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &types.EventResponse{Event: ev})
}

// handleTransfer handles POST /sidechain/transfer
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req types.TransferRequest
	caller, ok := s.authenticate(w, r, &req)
	if !ok {
		return
	}
	if err := s.node.SideChain.Transfer(caller, req.To, req.Amount); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &types.BalanceResponse{Address: caller, Amount: s.node.SideChain.BalanceOf(caller)})
}

// handleSetValidator handles POST /{chain}/validator. A request without a threshold installs a single validator.
func (s *Server) handleSetValidator(base *ledger.Base) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SetValidatorRequest
		caller, ok := s.authenticate(w, r, &req)
		if !ok {
			return
		}

		var err error
		switch {
		case len(req.Members) == 1 && req.Threshold <= 1:
			err = base.SetValidator(caller, req.Members[0])
		default:
			err = base.SetValidatorSet(caller, req.Members, req.Threshold)
		}
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, base.Validators())
	}
}

// handleCustody handles GET /mainchain/custody
func (s *Server) handleCustody(w http.ResponseWriter, r *http.Request) {
	if !decode(w, r, http.MethodGet, nil) {
		return
	}
	writeJSON(w, http.StatusOK, &types.BalanceResponse{
		Address: s.node.MainChain.Address(),
		Amount:  s.node.MainChain.CustodyBalance(),
	})
}

// handleSideBalance handles GET /sidechain/balance
func (s *Server) handleSideBalance(w http.ResponseWriter, r *http.Request) {
	if !decode(w, r, http.MethodGet, nil) {
		return
	}
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, &types.BalanceResponse{Address: addr, Amount: s.node.SideChain.BalanceOf(addr)})
}

// handleSupply handles GET /sidechain/supply
func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	if !decode(w, r, http.MethodGet, nil) {
		return
	}
	writeJSON(w, http.StatusOK, &types.BalanceResponse{Amount: s.node.SideChain.TotalSupply()})
}

// handleApprove handles POST /asset/approve
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req types.ApproveRequest
	caller, ok := s.authenticate(w, r, &req)
	if !ok {
		return
	}
	if req.Amount == nil || req.Amount.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "amount must be a non-negative integer", "INVALID_AMOUNT")
		return
	}
	spender := s.node.MainChain.Address()
	if err := s.node.Asset.Approve(caller, spender, req.Amount); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return
	}
	writeJSON(w, http.StatusOK, &types.BalanceResponse{Address: caller, Amount: s.node.Asset.Allowance(caller, spender)})
}

// handleFaucet handles POST /asset/faucet on dev nodes
func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if !s.node.DevMode {
		http.NotFound(w, r)
		return
	}
	var req types.FaucetRequest
	if !decode(w, r, http.MethodPost, &req) {
		return
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive", "INVALID_AMOUNT")
		return
	}
	if err := s.node.Asset.Mint(req.Account, req.Amount); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return
	}
	writeJSON(w, http.StatusOK, &types.BalanceResponse{Address: req.Account, Amount: s.node.Asset.BalanceOf(req.Account)})
}

// handleAssetBalance handles GET /asset/balance
func (s *Server) handleAssetBalance(w http.ResponseWriter, r *http.Request) {
	if !decode(w, r, http.MethodGet, nil) {
		return
	}
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, &types.BalanceResponse{Address: addr, Amount: s.node.Asset.BalanceOf(addr)})
}

// handleEvents handles GET /events. With archive=true events are read from persistence instead of the ledger.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !decode(w, r, http.MethodGet, nil) {
		return
	}

	q := r.URL.Query()
	chain := types.ChainName(q.Get("chain"))

	var from uint64
	if raw := q.Get("from"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be an unsigned integer", "BAD_REQUEST")
			return
		}
		from = parsed
	}

	var source interface {
		EventsSince(after uint64) []*types.Event
	}
	switch chain {
	case types.ChainName_MainChain:
		source = s.node.MainChain
	case types.ChainName_SideChain:
		source = s.node.SideChain
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("chain must be %q or %q", types.ChainName_MainChain, types.ChainName_SideChain), "BAD_REQUEST")
		return
	}

	if q.Get("archive") == "true" {
		events, err := s.node.store.ListEvents(chain, from)
		if err != nil {
			s.node.logger.Sugar().Errorw("Failed to list archived events", "chain", chain, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal error", "")
			return
		}
		writeJSON(w, http.StatusOK, &types.EventsResponse{Events: events})
		return
	}
	writeJSON(w, http.StatusOK, &types.EventsResponse{Events: source.EventsSince(from)})
}

// handleAttest handles POST /authority/attest on dev nodes. The authorization is bound to
// the domain of the chain it will be submitted to when that ledger requires it. Domain-bound
// nonces must come from the manual range so they never consume a nonce the relay will use.
func (s *Server) handleAttest(w http.ResponseWriter, r *http.Request) {
	if !s.node.DevMode {
		http.NotFound(w, r)
		return
	}
	var req types.AttestRequest
	if !decode(w, r, http.MethodPost, &req) {
		return
	}

	var domain *types.Domain
	switch req.Chain {
	case types.ChainName_MainChain:
		domain = s.node.MainChain.Domain()
	case types.ChainName_SideChain:
		domain = s.node.SideChain.Domain()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("chain must be %q or %q", types.ChainName_MainChain, types.ChainName_SideChain), "BAD_REQUEST")
		return
	}

	auth := &types.Authorization{Recipient: req.Recipient, Amount: req.Amount}
	if domain != nil {
		if !manualNonce(w, domain, req.Nonce) {
			return
		}
		auth.Nonce = req.Nonce
		auth.Domain = domain
	}

	att, err := s.node.Authority.Attest(r.Context(), auth)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &types.AttestationResponse{Attestation: att})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !decode(w, r, http.MethodGet, nil) {
		return
	}
	resp := &types.HealthResponse{
		Status:              "ok",
		AuthorityAddress:    s.node.Authority.Identity(),
		AuthorityIdentities: s.node.Authority.Identities(),
		MainChainLedger:     s.node.MainChain.Address(),
		SideChainLedger:     s.node.SideChain.Address(),
		MainChainSequence:   s.node.MainChain.LastSequence(),
		SideChainSequence:   s.node.SideChain.LastSequence(),
	}
	if err := s.node.store.HealthCheck(); err != nil {
		resp.Status = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

