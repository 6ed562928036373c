package repository

import (
	"crypto/subtle"
	"time"

	"go-account-auth/internal/model"
)

// classifyConsume explains why a compare-and-clear of a pending secret did not
// match any row, given the secret state currently stored for the user.
func classifyConsume(purpose model.Purpose, hash string, issuedAt *time.Time, params model.ConsumeSecret) error {
	if hash == "" || purpose != params.Purpose || issuedAt == nil {
		return model.ErrNoPendingToken
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(params.Hash)) != 1 {
		return model.ErrTokenMismatch
	}
	if !issuedAt.After(params.IssuedAfter) {
		return model.ErrTokenExpired
	}
	// The secret was consumed between the failed write and this read.
	return model.ErrNoPendingToken
}

func copySettings(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
