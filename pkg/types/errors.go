package types

import "errors"

// Ledger failure taxonomy. Every ledger call that returns one of these has left state untouched.
var (
	ErrTransferFailed        = errors.New("transfer failed")
	ErrInvalidSignature      = errors.New("invalid signature")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrNotOwner              = errors.New("caller is not the owner")
	ErrReplayedAuthorization = errors.New("authorization already consumed")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrValidatorNotSet       = errors.New("validator identity not set")
)

// Request authentication failures of the node API
var (
	ErrUnauthenticated = errors.New("request not authenticated")
	ErrReplayedRequest = errors.New("request already processed")
)
