package common

import "errors"

// Error taxonomy (spec §7): kinds, not type names. Subsystems reduce these
// to "drop and continue" internally; only user-initiated operations
// propagate them to a caller.
var (
	ErrIO               = errors.New("io-error")
	ErrCrypto           = errors.New("crypto-error")
	ErrHandshakeFailed  = errors.New("handshake-failed")
	ErrParse            = errors.New("parse-error")
	ErrRoutingDrop      = errors.New("routing-drop")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotConnected     = errors.New("not-connected")
	ErrReplayDetected   = errors.New("replay-detected")
	ErrStorageIO        = errors.New("storage-io")
	ErrCorruptIdentity  = errors.New("corrupt-identity")
)
