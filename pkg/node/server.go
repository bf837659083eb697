package node

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

/*
Server exposes the bridge devnet over HTTP.

Endpoints marked * act on behalf of an account and take a transportSigner.SignedMessage
whose payload is a types.RequestEnvelope wrapping the body shown. The acting account is the
recovered signer. Envelopes are bound to their path, valid for requestValidity around the
node clock and accepted once.

Main chain:
  POST /mainchain/lock      *{ amount, destination }             -> Locked event
  POST /mainchain/unlock     { recipient, amount, nonce, signatures } -> Unlocked event
  POST /mainchain/validator *{ members, threshold } (owner)
  GET  /mainchain/custody

Sidechain:
  POST /sidechain/mint       { recipient, amount, nonce, signatures } -> Minted event
  POST /sidechain/burn      *{ amount }                          -> Burned event
  POST /sidechain/transfer  *{ to, amount }
  POST /sidechain/validator *{ members, threshold } (owner)
  GET  /sidechain/balance?address=
  GET  /sidechain/supply

Underlying asset:
  POST /asset/approve       *{ amount } (spender is the main-chain ledger)
  POST /asset/faucet         { account, amount } (dev mode only)
  GET  /asset/balance?address=

Other:
  GET  /events?chain=&from=&archive=
  POST /authority/attest     { chain, recipient, amount, nonce } (dev mode only)
  GET  /health

Ledger failures map to statuses: invalid signature 401, not owner 403,
transfer failed / insufficient balance / replayed authorization 409, invalid amount 400.
Unauthenticated requests get 401 and replayed request envelopes 409.
*/

const requestIDHeader = "X-Request-Id"

// Server handles HTTP requests for the node
type Server struct {
	node       *Node
	httpServer *http.Server
	limiter    *rate.Limiter
	guard      *requestGuard
	now        func() time.Time
}

// NewServer creates a new server instance
func NewServer(node *Node, port int, rateLimit float64, rateBurst int) *Server {
	if rateLimit <= 0 {
		rateLimit = 50
	}
	if rateBurst < 1 {
		rateBurst = 100
	}

	s := &Server{
		node:    node,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), rateBurst),
		guard:   newRequestGuard(rateLimit, rateBurst),
		now:     time.Now,
	}

	mux := http.NewServeMux()

	// Main chain endpoints
	mux.HandleFunc("/mainchain/lock", s.handleLock)
	mux.HandleFunc("/mainchain/unlock", s.handleUnlock)
	mux.HandleFunc("/mainchain/validator", s.handleSetValidator(node.MainChain.Base))
	mux.HandleFunc("/mainchain/custody", s.handleCustody)

	// Sidechain endpoints
	mux.HandleFunc("/sidechain/mint", s.handleMint)
	mux.HandleFunc("/sidechain/burn", s.handleBurn)
	mux.HandleFunc("/sidechain/transfer", s.handleTransfer)
	mux.HandleFunc("/sidechain/validator", s.handleSetValidator(node.SideChain.Base))
	mux.HandleFunc("/sidechain/balance", s.handleSideBalance)
	mux.HandleFunc("/sidechain/supply", s.handleSupply)

	// Underlying asset endpoints
	mux.HandleFunc("/asset/approve", s.handleApprove)
	mux.HandleFunc("/asset/faucet", s.handleFaucet)
	mux.HandleFunc("/asset/balance", s.handleAssetBalance)

	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/authority/attest", s.handleAttest)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.withRequestID(s.withRateLimit(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// withRateLimit rejects requests beyond the node-wide token bucket
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "RATE_LIMITED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestID tags every request with an ID, honouring one supplied by the caller
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.node.logger.Sugar().Debugw("HTTP request",
			"requestId", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.node.logger.Sugar().Infow("Starting HTTP server", "port", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.node.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
