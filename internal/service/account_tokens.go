package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go-account-auth/internal/event"
	"go-account-auth/internal/model"
	"go-account-auth/internal/password"
	"go-account-auth/internal/session"
	"go-account-auth/internal/token"
)

// AuthRequest says how a caller of GenerateToken proves who they are. It is
// either ViaCookie or ViaCredentials.
type AuthRequest interface {
	authRequest()
}

// ViaCookie authenticates with the flow cookie of Purpose.
type ViaCookie struct {
	Purpose model.Purpose
}

// ViaCredentials authenticates with an email or username and a password.
type ViaCredentials struct {
	Identifier string
	Password   string
}

func (ViaCookie) authRequest()      {}
func (ViaCredentials) authRequest() {}

// RecoverPassword starts a password reset for a verified local account. An
// outstanding reset flow cookie blocks the request.
func (s *AccountService) RecoverPassword(ctx context.Context, w http.ResponseWriter, r *http.Request, req model.RecoverPasswordRequest) (model.MessageResponse, error) {
	user, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil || user.IsPending() {
		s.sessions.ClearFlow(w, model.PurposePasswordReset)
		if err != nil && !errors.Is(err, model.ErrUserNotFound) {
			return model.MessageResponse{}, err
		}
		return model.MessageResponse{}, model.ErrNotRegisteredOrUnverified
	}
	if user.IsFederated() {
		return model.MessageResponse{}, model.ErrForbidden
	}
	if _, err := s.sessions.Require(r, model.PurposePasswordReset, true); err != nil {
		return model.MessageResponse{}, err
	}

	if err := s.issueFlow(ctx, w, user, model.PurposePasswordReset); err != nil {
		return model.MessageResponse{}, err
	}
	return model.MessageResponse{Message: msgRecover}, nil
}

func (s *AccountService) ResetPassword(ctx context.Context, w http.ResponseWriter, req model.ResetPasswordRequest) (model.MessageResponse, error) {
	user, err := s.store.FindByEmail(ctx, req.Email)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.MessageResponse{}, model.ErrNotRegisteredOrUnverified
	}
	if err != nil {
		return model.MessageResponse{}, err
	}
	if user.IsPending() {
		return model.MessageResponse{}, model.ErrNotRegisteredOrUnverified
	}
	if user.IsFederated() {
		return model.MessageResponse{}, model.ErrForbidden
	}

	newPassword := req.Password
	if _, err := s.secrets.Consume(ctx, user, model.PurposePasswordReset, req.Token, token.Effect{NewPassword: &newPassword}); err != nil {
		return model.MessageResponse{}, err
	}
	s.sessions.ClearFlow(w, model.PurposePasswordReset)
	s.publish(event.TypePasswordReset, user.ID, nil)

	return model.MessageResponse{Message: msgReset}, nil
}

// Refresh sets a new access cookie from a valid refresh cookie. Every failure
// is reported as model.ErrForbidden.
func (s *AccountService) Refresh(ctx context.Context, w http.ResponseWriter, r *http.Request) (model.MessageResponse, error) {
	subject, err := s.sessions.Require(r, model.PurposeRefresh, false)
	if err != nil {
		return model.MessageResponse{}, model.ErrForbidden
	}

	user, err := s.store.FindByID(ctx, subject)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.MessageResponse{}, model.ErrForbidden
	}
	if err != nil {
		return model.MessageResponse{}, err
	}
	if user.IsPending() {
		return model.MessageResponse{}, model.ErrForbidden
	}

	if err := s.sessions.RefreshAccess(w, user.ID); err != nil {
		return model.MessageResponse{}, err
	}
	return model.MessageResponse{Message: msgRefreshed}, nil
}

// GenerateToken re-issues a verification or reset secret.
func (s *AccountService) GenerateToken(ctx context.Context, w http.ResponseWriter, r *http.Request, purpose model.Purpose, auth AuthRequest) (model.MessageResponse, error) {
	if !purpose.IsSecretFlow() {
		return model.MessageResponse{}, fmt.Errorf("%w: unsupported token reason %q", model.ErrInvalidInput, purpose)
	}

	user, err := s.authenticate(ctx, r, purpose, auth)
	if err != nil {
		return model.MessageResponse{}, err
	}

	switch purpose {
	case model.PurposeAccountVerification:
		if !user.IsPending() {
			return model.MessageResponse{}, model.ErrAlreadyVerified
		}
		if err := s.issueFlow(ctx, w, user, purpose); err != nil {
			return model.MessageResponse{}, err
		}
		return model.MessageResponse{Message: msgTokenResent}, nil
	default:
		if user.IsPending() || user.IsFederated() {
			return model.MessageResponse{}, model.ErrForbidden
		}
		if err := s.issueFlow(ctx, w, user, purpose); err != nil {
			return model.MessageResponse{}, err
		}
		return model.MessageResponse{Message: msgRecover}, nil
	}
}

func (s *AccountService) authenticate(ctx context.Context, r *http.Request, purpose model.Purpose, auth AuthRequest) (model.User, error) {
	switch a := auth.(type) {
	case ViaCookie:
		if a.Purpose != purpose {
			return model.User{}, model.ErrForbidden
		}
		subject, cooling, err := s.sessions.InspectFlow(r, purpose)
		if err != nil || cooling {
			return model.User{}, model.ErrForbidden
		}
		user, err := s.store.FindByID(ctx, subject)
		if errors.Is(err, model.ErrUserNotFound) {
			return model.User{}, model.ErrForbidden
		}
		return user, err

	case ViaCredentials:
		if a.Identifier == "" || a.Password == "" {
			return model.User{}, model.ErrInvalidCredentials
		}
		user, err := s.store.FindByIdentifier(ctx, a.Identifier)
		if errors.Is(err, model.ErrUserNotFound) {
			return model.User{}, model.ErrNotRegistered
		}
		if err != nil {
			return model.User{}, err
		}
		if !password.Compare(user.PasswordHash, a.Password) {
			return model.User{}, model.ErrInvalidCredentials
		}
		return user, nil
	}
	return model.User{}, fmt.Errorf("%w: missing authentication", model.ErrInvalidInput)
}

// issueFlow replaces the pending secret of user, mails it and sets the flow
// cookie. Any failure removes the flow cookie.
func (s *AccountService) issueFlow(ctx context.Context, w http.ResponseWriter, user model.User, purpose model.Purpose) error {
	plain, err := s.secrets.Issue(ctx, user, purpose)
	if err != nil {
		s.sessions.ClearFlow(w, purpose)
		return err
	}
	if err := s.sendSecret(ctx, user, purpose, plain); err != nil {
		s.sessions.ClearFlow(w, purpose)
		return fmt.Errorf("send %s mail: %w", purpose, err)
	}
	if err := s.sessions.SetFlow(w, user.ID, purpose); err != nil {
		return err
	}
	s.publish(event.TypeTokenIssued, user.ID, map[string]any{"purpose": string(purpose), "cookie": session.CookieName(purpose)})
	return nil
}

func (s *AccountService) sendSecret(ctx context.Context, user model.User, purpose model.Purpose, plain string) error {
	validity := s.secrets.TTL(purpose).String()

	build := s.cfg.Templates.Verification
	if purpose == model.PurposePasswordReset {
		build = s.cfg.Templates.PasswordReset
	}
	msg, err := build(user.Email, user.Firstname, plain, validity)
	if err != nil {
		return err
	}

	if _, err := s.mailer.Dispatch(ctx, msg).Await(); err != nil {
		s.publish(event.TypeMailUndelivered, user.ID, map[string]any{"purpose": string(purpose)})
		return err
	}
	return nil
}
