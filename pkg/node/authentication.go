package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"

	"github.com/Layr-Labs/eigenx-bridge-go/pkg/transportSigner"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
)

// requestValidity is how far a signed request's timestamp may be from the node clock
const requestValidity = 5 * time.Minute

// requestGuard remembers the hashes of accepted signed requests for their validity window.
// Every request passes the rate limiter first, so capacity is sized to hold every request
// accepted within one window and an entry is never evicted while it could still be replayed.
type requestGuard struct {
	mu   sync.Mutex
	seen lru.BasicLRU[common.Hash, int64]
}

func newRequestGuard(rateLimit float64, rateBurst int) *requestGuard {
	capacity := int(rateLimit*(2*requestValidity).Seconds()) + rateBurst
	if capacity < 1024 {
		capacity = 1024
	}
	return &requestGuard{seen: lru.NewBasicLRU[common.Hash, int64](capacity)}
}

// remember records hash and reports false if it was already accepted
func (g *requestGuard) remember(hash common.Hash, timestamp int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen.Contains(hash) {
		return false
	}
	g.seen.Add(hash, timestamp)
	return true
}

// authenticate reads a signed request envelope, checks it is bound to this endpoint, fresh and
// unseen, decodes its body into v and returns the signer. It answers the request itself on failure.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, v interface{}) (common.Address, bool) {
	var msg transportSigner.SignedMessage
	if !decode(w, r, http.MethodPost, &msg) {
		return common.Address{}, false
	}

	caller, err := transportSigner.VerifyAuthenticatedMessage(&msg)
	if err != nil {
		writeAuthError(w, err)
		return common.Address{}, false
	}

	var env types.RequestEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request envelope: %v", err), "BAD_REQUEST")
		return common.Address{}, false
	}
	if env.Path != r.URL.Path {
		writeAuthError(w, fmt.Errorf("%w: request was signed for %s", types.ErrUnauthenticated, env.Path))
		return common.Address{}, false
	}
	age := s.now().Sub(time.Unix(env.Timestamp, 0))
	if age > requestValidity || age < -requestValidity {
		writeAuthError(w, fmt.Errorf("%w: request timestamp outside the %s window", types.ErrUnauthenticated, requestValidity))
		return common.Address{}, false
	}
	if err := json.Unmarshal(env.Body, v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err), "BAD_REQUEST")
		return common.Address{}, false
	}
	if !s.guard.remember(msg.Hash, env.Timestamp) {
		writeAuthError(w, fmt.Errorf("%w: %s", types.ErrReplayedRequest, msg.Hash.Hex()))
		return common.Address{}, false
	}

	s.node.logger.Sugar().Debugw("Authenticated request",
		"path", env.Path,
		"caller", caller.String(),
		"requestId", env.RequestId,
	)
	return caller, true
}

func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, types.ErrReplayedRequest) {
		writeError(w, http.StatusConflict, err.Error(), "REPLAYED_REQUEST")
		return
	}
	writeError(w, http.StatusUnauthorized, err.Error(), "UNAUTHENTICATED")
}
