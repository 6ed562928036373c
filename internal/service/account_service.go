package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-account-auth/internal/async"
	"go-account-auth/internal/event"
	"go-account-auth/internal/federation"
	"go-account-auth/internal/mail"
	"go-account-auth/internal/model"
	"go-account-auth/internal/password"
	"go-account-auth/internal/session"
	"go-account-auth/internal/token"
	"go-account-auth/pkg/apierror"
)

const (
	msgSignup          = "Thank you for signing up. Please check your email and verify your account!"
	msgSignupFederated = "Thank you for signing up. You can now sign in."
	msgSignin          = "Signin successful"
	msgSignout         = "You have been signed out"
	msgVerified        = "Your account has been verified"
	msgRecover         = "An email has been sent to you"
	msgReset           = "Your password has been reset"
	msgRefreshed       = "Access token refreshed"
	msgTokenResent     = "Verification token has been sent to your mail"
)

// CredentialStore is the persistence the account flows run against.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (model.User, error)
	Create(ctx context.Context, nu model.NewUser) (model.User, error)
	UpdateFields(ctx context.Context, id string, patch model.UserPatch) (model.User, error)
	token.SecretStore
}

type Mailer interface {
	Dispatch(ctx context.Context, msg mail.Message) *async.Future[struct{}]
}

type AccountConfig struct {
	// PendingWindow is recorded as accountExpires on new local accounts. The
	// value is informational and never enforced.
	PendingWindow  time.Duration
	SignoutTimeout time.Duration
	Templates      mail.Templates
}

type AccountDeps struct {
	Store    CredentialStore
	Secrets  *token.SecretTokens
	Sessions *session.Manager
	Mailer   Mailer
	Verifier federation.Verifier
	Bus      event.Bus
	Logger   *slog.Logger
}

// AccountService runs the account lifecycle: signup, sign-in and sign-out,
// verification, password reset and session refresh.
type AccountService struct {
	store    CredentialStore
	secrets  *token.SecretTokens
	sessions *session.Manager
	mailer   Mailer
	verifier federation.Verifier
	bus      event.Bus
	logger   *slog.Logger
	cfg      AccountConfig
	now      func() time.Time
}

func NewAccountService(deps AccountDeps, cfg AccountConfig) *AccountService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SignoutTimeout <= 0 {
		cfg.SignoutTimeout = 10 * time.Second
	}

	return &AccountService{
		store:    deps.Store,
		secrets:  deps.Secrets,
		sessions: deps.Sessions,
		mailer:   deps.Mailer,
		verifier: deps.Verifier,
		bus:      deps.Bus,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *AccountService) Signup(ctx context.Context, w http.ResponseWriter, req model.SignupRequest) (model.MessageResponse, error) {
	if req.Provider != "" {
		return s.signupFederated(ctx, req)
	}
	if req.Password == "" {
		return model.MessageResponse{}, apierror.BadRequest("password is required", "password")
	}

	plain, pending, err := s.secrets.Generate(model.PurposeAccountVerification)
	if err != nil {
		return model.MessageResponse{}, err
	}
	expires := s.now().UTC().Add(s.cfg.PendingWindow)

	user, err := s.store.Create(ctx, model.NewUser{
		Firstname:      req.Firstname,
		Lastname:       req.Lastname,
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		PhotoURL:       req.PhotoURL,
		AccountExpires: &expires,
		Secret:         &pending,
		Settings:       req.Settings,
	})
	if err != nil {
		return model.MessageResponse{}, err
	}
	s.publish(event.TypeUserCreated, user.ID, map[string]any{"provider": ""})

	if err := s.sendSecret(ctx, user, model.PurposeAccountVerification, plain); err != nil {
		s.logger.Error("verification mail failed after signup", "user_id", user.ID, "error", err)
		return model.MessageResponse{}, model.ErrMailDispatchFailed
	}
	if err := s.sessions.SetFlow(w, user.ID, model.PurposeAccountVerification); err != nil {
		return model.MessageResponse{}, err
	}

	return model.MessageResponse{Message: msgSignup}, nil
}

func (s *AccountService) signupFederated(ctx context.Context, req model.SignupRequest) (model.MessageResponse, error) {
	identity, err := s.verifyAssertion(ctx, req.Provider, req.IDToken)
	if err != nil {
		return model.MessageResponse{}, err
	}
	if !strings.EqualFold(identity.Email, strings.TrimSpace(req.Email)) {
		return model.MessageResponse{}, model.ErrForbidden
	}

	user, err := s.store.Create(ctx, model.NewUser{
		Firstname:     req.Firstname,
		Lastname:      req.Lastname,
		Username:      req.Username,
		Email:         identity.Email,
		PhotoURL:      firstNonEmpty(req.PhotoURL, identity.PhotoURL),
		Provider:      identity.Provider,
		EmailVerified: true,
		Settings:      req.Settings,
	})
	if err != nil {
		return model.MessageResponse{}, err
	}
	s.publish(event.TypeUserCreated, user.ID, map[string]any{"provider": identity.Provider})

	return model.MessageResponse{Message: msgSignupFederated}, nil
}

func (s *AccountService) Signin(ctx context.Context, w http.ResponseWriter, req model.SigninRequest) (model.SigninResponse, error) {
	var (
		user model.User
		err  error
	)
	if req.Provider != "" {
		user, err = s.federatedUser(ctx, req)
	} else {
		user, err = s.localUser(ctx, req.Identifier(), req.Password)
	}
	if err != nil {
		return model.SigninResponse{}, err
	}

	loggedIn := true
	now := s.now().UTC()
	user, err = s.store.UpdateFields(ctx, user.ID, model.UserPatch{IsLogin: &loggedIn, LastLogin: &now})
	if err != nil {
		return model.SigninResponse{}, err
	}
	if err := s.sessions.Start(w, user, req.RememberMe); err != nil {
		return model.SigninResponse{}, err
	}
	s.publish(event.TypeUserSignedIn, user.ID, map[string]any{"provider": user.Provider, "remember_me": req.RememberMe})

	return model.SigninResponse{Message: msgSignin, User: user}, nil
}

// localUser authenticates a password account. A pending account is rejected
// before its password is looked at.
func (s *AccountService) localUser(ctx context.Context, identifier string, plain string) (model.User, error) {
	if identifier == "" {
		return model.User{}, apierror.BadRequest("email or username is required", "placeholder")
	}
	if plain == "" {
		return model.User{}, apierror.BadRequest("password is required", "password")
	}

	user, err := s.store.FindByIdentifier(ctx, identifier)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, model.ErrNotRegistered
	}
	if err != nil {
		return model.User{}, err
	}
	if user.IsPending() {
		return model.User{}, model.ErrAccountUnverified
	}
	if !password.Compare(user.PasswordHash, plain) {
		return model.User{}, model.ErrInvalidCredentials
	}
	return user, nil
}

// federatedUser resolves the account behind an identity assertion and
// provisions it on first sight.
func (s *AccountService) federatedUser(ctx context.Context, req model.SigninRequest) (model.User, error) {
	identity, err := s.verifyAssertion(ctx, req.Provider, req.IDToken)
	if err != nil {
		return model.User{}, err
	}

	for attempt := 0; attempt < 3; attempt++ {
		user, err := s.store.FindByEmail(ctx, identity.Email)
		if err == nil {
			if user.IsPending() {
				return model.User{}, model.ErrAccountUnverified
			}
			return user, nil
		}
		if !errors.Is(err, model.ErrUserNotFound) {
			return model.User{}, err
		}

		username := strings.TrimSpace(req.Username)
		if username == "" || attempt > 0 {
			username = generatedUsername(identity.Email)
		}
		localPart, _, _ := strings.Cut(identity.Email, "@")

		user, err = s.store.Create(ctx, model.NewUser{
			Firstname:     firstNonEmpty(req.Firstname, identity.Firstname, localPart),
			Lastname:      firstNonEmpty(req.Lastname, identity.Lastname, localPart),
			Username:      username,
			Email:         identity.Email,
			PhotoURL:      firstNonEmpty(req.PhotoURL, identity.PhotoURL),
			Provider:      identity.Provider,
			EmailVerified: true,
		})
		if err == nil {
			s.publish(event.TypeUserCreated, user.ID, map[string]any{"provider": identity.Provider})
			return user, nil
		}
		if !errors.Is(err, model.ErrDuplicateIdentity) {
			return model.User{}, err
		}
		// Lost a race on the email or the username: look again.
	}
	return model.User{}, fmt.Errorf("provision federated user: %w", model.ErrDuplicateIdentity)
}

// Signout clears the session cookies right away. Persisting isLogin=false and
// the settings patch happens in the background; its failures are only logged.
func (s *AccountService) Signout(ctx context.Context, w http.ResponseWriter, r *http.Request, req model.SignoutRequest) (model.MessageResponse, *async.Future[struct{}]) {
	subject, err := s.sessions.Require(r, model.PurposeAccess, false)
	if err != nil {
		subject, _ = s.sessions.Require(r, model.PurposeRefresh, false)
	}
	s.sessions.End(w)

	resp := model.MessageResponse{Message: msgSignout}
	if subject == "" {
		return resp, async.Resolved(struct{}{}, nil)
	}

	bg := context.WithoutCancel(ctx)
	done := async.Go(bg, func(ctx context.Context) (struct{}, error) {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.SignoutTimeout)
		defer cancel()

		loggedIn := false
		if _, err := s.store.UpdateFields(ctx, subject, model.UserPatch{IsLogin: &loggedIn, Settings: req.Settings}); err != nil {
			s.logger.Warn("signout state update failed", "user_id", subject, "error", err)
			return struct{}{}, err
		}
		s.publish(event.TypeUserSignedOut, subject, nil)
		return struct{}{}, nil
	})
	return resp, done
}

func (s *AccountService) VerifyAccount(ctx context.Context, w http.ResponseWriter, req model.VerifyTokenRequest) (model.MessageResponse, error) {
	user, err := s.store.FindByEmail(ctx, req.Email)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.MessageResponse{}, model.ErrForbidden
	}
	if err != nil {
		return model.MessageResponse{}, err
	}
	if !user.IsPending() {
		return model.MessageResponse{}, model.ErrForbidden
	}
	if !password.Compare(user.PasswordHash, req.Password) {
		return model.MessageResponse{}, model.ErrInvalidCredentials
	}

	if _, err := s.secrets.Consume(ctx, user, model.PurposeAccountVerification, req.Token, token.Effect{MarkVerified: true}); err != nil {
		return model.MessageResponse{}, err
	}
	s.sessions.ClearFlow(w, model.PurposeAccountVerification)
	s.publish(event.TypeUserVerified, user.ID, nil)

	return model.MessageResponse{Message: msgVerified}, nil
}

// Me returns the account behind a verified access token subject.
func (s *AccountService) Me(ctx context.Context, subject string) (model.User, error) {
	user, err := s.store.FindByID(ctx, subject)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, model.ErrUnauthorized
	}
	return user, err
}

func (s *AccountService) verifyAssertion(ctx context.Context, provider string, assertion string) (federation.Identity, error) {
	if s.verifier == nil {
		return federation.Identity{}, apierror.BadRequest("federated sign-in is not available", provider)
	}

	identity, err := s.verifier.Verify(ctx, provider, assertion)
	switch {
	case err == nil:
		return identity, nil
	case errors.Is(err, federation.ErrUnsupportedProvider), errors.Is(err, federation.ErrFederationDisabled):
		return federation.Identity{}, apierror.BadRequest("federated sign-in is not available", provider)
	case errors.Is(err, federation.ErrInvalidAssertion):
		s.logger.Info("identity assertion rejected", "provider", provider, "error", err)
		return federation.Identity{}, model.ErrInvalidCredentials
	default:
		return federation.Identity{}, fmt.Errorf("verify identity assertion: %w", err)
	}
}

func (s *AccountService) publish(t event.Type, actorID string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(t, actorID, payload))
}

func generatedUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if len(local) > 48 {
		local = local[:48]
	}
	return local + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
