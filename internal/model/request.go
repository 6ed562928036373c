package model

import "strings"

type SignupRequest struct {
	Firstname string         `json:"firstname" validate:"required"`
	Lastname  string         `json:"lastname" validate:"required"`
	Username  string         `json:"username" validate:"required,min=2,max=64"`
	Email     string         `json:"email" validate:"required,email"`
	Password  string         `json:"password" validate:"omitempty,min=8,max=72"`
	PhotoURL  string         `json:"photoUrl" validate:"omitempty,url"`
	Provider  string         `json:"provider" validate:"omitempty,oneof=google"`
	IDToken   string         `json:"idToken" validate:"required_with=Provider"`
	Settings  map[string]any `json:"settings"`
}

type SigninRequest struct {
	Placeholder string `json:"placeholder"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Provider    string `json:"provider" validate:"omitempty,oneof=google"`
	IDToken     string `json:"idToken" validate:"required_with=Provider"`
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
	PhotoURL    string `json:"photoUrl" validate:"omitempty,url"`
	RememberMe  bool   `json:"rememberMe"`
}

// Identifier returns the email-or-username the caller signs in with. The
// placeholder field wins over email, which wins over username.
func (r SigninRequest) Identifier() string {
	for _, candidate := range []string{r.Placeholder, r.Email, r.Username} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return ""
}

type SignoutRequest struct {
	Settings map[string]any `json:"settings"`
}

type VerifyTokenRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Token    string `json:"token" validate:"required"`
}

type RecoverPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type CredentialsRequest struct {
	Placeholder string `json:"placeholder"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password" validate:"required"`
}

func (r CredentialsRequest) Identifier() string {
	return SigninRequest{Placeholder: r.Placeholder, Email: r.Email, Username: r.Username}.Identifier()
}
