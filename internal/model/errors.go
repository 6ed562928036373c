package model

import (
	"errors"
	"strings"
)

var (
	// Identity errors
	ErrUserNotFound              = errors.New("user not found")
	ErrDuplicateIdentity         = errors.New("duplicate identity")
	ErrNotRegistered             = errors.New("account is not registered")
	ErrNotRegisteredOrUnverified = errors.New("account is not registered or verified")
	ErrAccountUnverified         = errors.New("account is not verified")
	ErrAlreadyVerified           = errors.New("account is already verified")
	ErrInvalidCredentials        = errors.New("invalid credentials")

	// Access errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Session token errors
	ErrInvalidToken    = errors.New("invalid token")
	ErrPurposeMismatch = errors.New("token purpose mismatch")

	// Secret token errors
	ErrNoPendingToken = errors.New("no pending token")
	ErrTokenMismatch  = errors.New("token mismatch")
	ErrTokenExpired   = errors.New("token expired")

	// Delivery errors
	ErrMailDispatchFailed = errors.New("mail dispatch failed")

	ErrInvalidInput = errors.New("invalid input")
)

// DuplicateIdentityError names the identity fields that collided with an
// existing account.
type DuplicateIdentityError struct {
	Email    bool
	Username bool
}

func (e *DuplicateIdentityError) Error() string {
	return "a user with the specified " + e.Fields() + " exists"
}

func (e *DuplicateIdentityError) Is(target error) bool {
	return target == ErrDuplicateIdentity
}

func (e *DuplicateIdentityError) Fields() string {
	parts := make([]string, 0, 2)
	if e.Email {
		parts = append(parts, "email")
	}
	if e.Username {
		parts = append(parts, "username")
	}
	if len(parts) == 0 {
		return "identity"
	}
	return strings.Join(parts, " and ")
}
