package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-account-auth/internal/middleware"
	"go-account-auth/internal/model"
	"go-account-auth/internal/service"
	"go-account-auth/pkg/apierror"
)

type flowCookies interface {
	HasCookie(r *http.Request, purpose model.Purpose) bool
}

type AuthHandler struct {
	service *service.AccountService
	cookies flowCookies
}

func NewAuthHandler(service *service.AccountService, cookies flowCookies) *AuthHandler {
	return &AuthHandler{service: service, cookies: cookies}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload model.SignupRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.Signup(r.Context(), w, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var payload model.SigninRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.Signin(r.Context(), w, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

// Signout answers before the session state is persisted.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	var payload model.SignoutRequest
	if err := decodeJSON(w, r, &payload, true); err != nil {
		writeError(w, err)
		return
	}

	resp, _ := h.service.Signout(r.Context(), w, r, payload)
	writeSuccess(w, http.StatusOK, resp)
}

func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	reason := chi.URLParam(r, "reason")
	if reason != "account" {
		writeError(w, apierror.BadRequest("unsupported verification reason", reason))
		return
	}

	var payload model.VerifyTokenRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.VerifyAccount(r.Context(), w, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *AuthHandler) RecoverPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.RecoverPasswordRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.RecoverPassword(r.Context(), w, r, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.ResetPasswordRequest
	if err := decodeJSON(w, r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.ResetPassword(r.Context(), w, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Refresh(r.Context(), w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

// GenerateToken picks the authentication mode once: the flow cookie of the
// requested reason when present, the credentials in the body otherwise.
func (h *AuthHandler) GenerateToken(w http.ResponseWriter, r *http.Request) {
	purpose := tokenReason(chi.URLParam(r, "reason"))
	if !purpose.IsSecretFlow() {
		writeError(w, apierror.BadRequest("unsupported token reason", chi.URLParam(r, "reason")))
		return
	}

	var auth service.AuthRequest
	if h.cookies.HasCookie(r, purpose) {
		auth = service.ViaCookie{Purpose: purpose}
	} else {
		var payload model.CredentialsRequest
		if err := decodeJSON(w, r, &payload, false); err != nil {
			writeError(w, err)
			return
		}
		if payload.Identifier() == "" {
			writeError(w, apierror.BadRequest("validation failed", "email: is required"))
			return
		}
		auth = service.ViaCredentials{Identifier: payload.Identifier(), Password: payload.Password}
	}

	resp, err := h.service.GenerateToken(r.Context(), w, r, purpose, auth)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	user, err := h.service.Me(r.Context(), subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

// tokenReason maps the path reason to a secret purpose. "account" is accepted
// as a short form of account-verification.
func tokenReason(reason string) model.Purpose {
	if reason == "account" {
		return model.PurposeAccountVerification
	}
	return model.Purpose(reason)
}
