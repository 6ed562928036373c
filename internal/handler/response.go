package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-account-auth/internal/model"
	"go-account-auth/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError is the single place where account errors become HTTP responses.
// Only the fixed messages below reach the client.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var (
		apiErr *apierror.APIError
		dupErr *model.DuplicateIdentityError
	)
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.As(err, &dupErr) {
		status = http.StatusConflict
		body.Code = "DUPLICATE_IDENTITY"
		body.Message = dupErr.Error()
		body.Details = dupErr.Fields()
	} else if errors.Is(err, model.ErrDuplicateIdentity) {
		status = http.StatusConflict
		body.Code = "DUPLICATE_IDENTITY"
		body.Message = "A user with the specified identity exists"
	} else if errors.Is(err, model.ErrMailDispatchFailed) {
		status = http.StatusBadRequest
		body.Code = "MAIL_DISPATCH_FAILED"
		body.Message = "Your account was created but the verification email could not be sent. Request a new token to verify your account"
	} else if errors.Is(err, model.ErrNotRegistered) {
		status = http.StatusNotFound
		body.Code = "NOT_REGISTERED"
		body.Message = "Account is not registered"
	} else if errors.Is(err, model.ErrNotRegisteredOrUnverified) {
		status = http.StatusBadRequest
		body.Code = "NOT_REGISTERED_OR_UNVERIFIED"
		body.Message = "Account is not registered or not verified"
	} else if errors.Is(err, model.ErrAccountUnverified) {
		status = http.StatusForbidden
		body.Code = "ACCOUNT_UNVERIFIED"
		body.Message = "Please verify your account before signing in"
	} else if errors.Is(err, model.ErrAlreadyVerified) {
		status = http.StatusForbidden
		body.Code = "ALREADY_VERIFIED"
		body.Message = "Account is already verified"
	} else if errors.Is(err, model.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
		body.Code = "INVALID_CREDENTIALS"
		body.Message = "Invalid credentials"
	} else if errors.Is(err, model.ErrUnauthorized) ||
		errors.Is(err, model.ErrInvalidToken) ||
		errors.Is(err, model.ErrPurposeMismatch) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrForbidden) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else if errors.Is(err, model.ErrNoPendingToken) {
		status = http.StatusBadRequest
		body.Code = "NO_PENDING_TOKEN"
		body.Message = "There is no pending token for this account"
	} else if errors.Is(err, model.ErrTokenMismatch) {
		status = http.StatusBadRequest
		body.Code = "TOKEN_MISMATCH"
		body.Message = "Invalid token"
	} else if errors.Is(err, model.ErrTokenExpired) {
		status = http.StatusBadRequest
		body.Code = "TOKEN_EXPIRED"
		body.Message = "Token has expired"
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "User not found"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
	} else {
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
