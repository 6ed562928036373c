package model

import "time"

type AccountState string

const (
	StatePendingVerification AccountState = "pending_verification"
	StateVerified            AccountState = "verified"
)

// Purpose binds a signed session token or a single-use secret to the flow
// that minted it.
type Purpose string

const (
	PurposeAccess              Purpose = "access"
	PurposeRefresh             Purpose = "refresh"
	PurposeAccountVerification Purpose = "account-verification"
	PurposePasswordReset       Purpose = "password-reset"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposeAccountVerification, PurposePasswordReset:
		return true
	}
	return false
}

// IsSecretFlow reports whether secrets of this purpose are persisted on the user record.
func (p Purpose) IsSecretFlow() bool {
	return p == PurposeAccountVerification || p == PurposePasswordReset
}

type User struct {
	ID             string         `json:"id"`
	Firstname      string         `json:"firstname"`
	Lastname       string         `json:"lastname"`
	Username       string         `json:"username"`
	Email          string         `json:"email"`
	PasswordHash   string         `json:"-"`
	PhotoURL       string         `json:"photoUrl,omitempty"`
	IsLogin        bool           `json:"isLogin"`
	LastLogin      *time.Time     `json:"lastLogin,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	EmailVerified  bool           `json:"emailVerified"`
	AccountExpires *time.Time     `json:"accountExpires"`
	ResetTokenHash string         `json:"-"`
	ResetPurpose   Purpose        `json:"-"`
	ResetDate      *time.Time     `json:"-"`
	Settings       map[string]any `json:"settings,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (u User) State() AccountState {
	if u.AccountExpires != nil {
		return StatePendingVerification
	}
	return StateVerified
}

func (u User) IsPending() bool {
	return u.State() == StatePendingVerification
}

// IsFederated reports whether the account was provisioned through a third-party
// identity assertion. Password flows are disallowed for such accounts.
func (u User) IsFederated() bool {
	return u.Provider != ""
}

// PendingSecret is the at-rest form of a single-use secret token.
type PendingSecret struct {
	Hash     string
	Purpose  Purpose
	IssuedAt time.Time
}

// NewUser carries the fields of a user about to be created. Password is
// plaintext; the store hashes it before it is persisted.
type NewUser struct {
	Firstname      string
	Lastname       string
	Username       string
	Email          string
	Password       string
	PhotoURL       string
	Provider       string
	EmailVerified  bool
	AccountExpires *time.Time
	Secret         *PendingSecret
	Settings       map[string]any
}

// UserPatch lists the mutable fields of a user. Nil fields are left untouched,
// Settings is merged key by key and Password is re-hashed by the store.
type UserPatch struct {
	Firstname *string
	Lastname  *string
	PhotoURL  *string
	IsLogin   *bool
	LastLogin *time.Time
	Password  *string
	Settings  map[string]any
}

// ConsumeSecret describes an atomic compare-and-clear of the pending secret of a
// user, together with the side effects applied in the same write.
type ConsumeSecret struct {
	UserID       string
	Purpose      Purpose
	Hash         string
	IssuedAfter  time.Time
	MarkVerified bool
	NewPassword  *string
}

type AuditEntry struct {
	Action     string         `json:"action"`
	ActorID    string         `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}
