package auth

import "errors"

var (
	// ErrRefreshFailed wraps token-endpoint failures. Cached state is left
	// untouched so the caller may retry or re-authenticate from scratch.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrLoginFailed wraps session-mint failures and carries the upstream
	// status and body for diagnosis.
	ErrLoginFailed = errors.New("session login failed")

	// ErrPoolExhausted means no healthy material is available and minting
	// did not produce any.
	ErrPoolExhausted = errors.New("auth pool exhausted")

	// ErrDecode means an authData blob did not survive the inverse transform.
	ErrDecode = errors.New("malformed auth data")

	// ErrNonceLength is a caller bug: a supplied nonce was not exactly 4 bytes.
	ErrNonceLength = errors.New("nonce must be exactly 4 bytes")
)
