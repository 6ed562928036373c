package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-account-auth/internal/model"
	"go-account-auth/internal/password"
)

const uniqueViolation = "23505"

const userColumns = `id::text, firstname, lastname, username, email,
	COALESCE(password_hash, ''), COALESCE(photo_url, ''), is_login, last_login,
	COALESCE(provider, ''), email_verified, account_expires,
	COALESCE(reset_token_hash, ''), COALESCE(reset_purpose, ''), reset_date,
	COALESCE(settings, '{}'::jsonb), created_at, updated_at`

type UserRepository struct {
	pool   *pgxpool.Pool
	hasher *password.Hasher
}

func NewUserRepository(pool *pgxpool.Pool, hasher *password.Hasher) *UserRepository {
	return &UserRepository{pool: pool, hasher: hasher}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.User{}, model.ErrUserNotFound
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// FindByIdentifier resolves an email or a username. An email match wins when
// the identifier happens to match both.
func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE lower(email) = lower($1) OR lower(username) = lower($1)
		 ORDER BY (lower(email) = lower($1)) DESC
		 LIMIT 1`, strings.TrimSpace(identifier)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by identifier: %w", err)
	}
	return u, nil
}

// Create inserts a user. Uniqueness of email and username is enforced by the
// unique indexes, so two concurrent registrations cannot both succeed.
func (r *UserRepository) Create(ctx context.Context, nu model.NewUser) (model.User, error) {
	var hash *string
	if nu.Password != "" {
		h, err := r.hasher.Hash(nu.Password)
		if err != nil {
			return model.User{}, err
		}
		hash = &h
	}

	settings, err := json.Marshal(nonNilSettings(nu.Settings))
	if err != nil {
		return model.User{}, fmt.Errorf("marshal settings: %w", err)
	}

	var secretHash, secretPurpose *string
	var secretDate *time.Time
	if nu.Secret != nil {
		purpose := string(nu.Secret.Purpose)
		issued := nu.Secret.IssuedAt
		secretHash, secretPurpose, secretDate = &nu.Secret.Hash, &purpose, &issued
	}

	now := time.Now().UTC()
	u, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (id, firstname, lastname, username, email, password_hash, photo_url,
		                    provider, email_verified, account_expires,
		                    reset_token_hash, reset_purpose, reset_date, settings, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12, $13, $14, $15, $15)
		 RETURNING `+userColumns,
		uuid.NewString(), strings.TrimSpace(nu.Firstname), strings.TrimSpace(nu.Lastname),
		strings.TrimSpace(nu.Username), normalize(nu.Email), hash, nu.PhotoURL,
		nu.Provider, nu.EmailVerified, nu.AccountExpires,
		secretHash, secretPurpose, secretDate, settings, now))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.User{}, r.collisions(ctx, nu.Email, nu.Username)
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// collisions reports every identity field already taken once the unique
// constraint has fired; the constraint itself only names the first one.
func (r *UserRepository) collisions(ctx context.Context, email string, username string) error {
	dup := &model.DuplicateIdentityError{}
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1)),
		        EXISTS(SELECT 1 FROM users WHERE lower(username) = lower($2))`,
		strings.TrimSpace(email), strings.TrimSpace(username)).Scan(&dup.Email, &dup.Username)
	if err != nil {
		return fmt.Errorf("resolve identity collision: %w", errors.Join(model.ErrDuplicateIdentity, err))
	}
	return dup
}

func (r *UserRepository) UpdateFields(ctx context.Context, id string, patch model.UserPatch) (model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.User{}, model.ErrUserNotFound
	}

	var hash *string
	if patch.Password != nil {
		h, err := r.hasher.Hash(*patch.Password)
		if err != nil {
			return model.User{}, err
		}
		hash = &h
	}

	var settings []byte
	if patch.Settings != nil {
		var err error
		if settings, err = json.Marshal(patch.Settings); err != nil {
			return model.User{}, fmt.Errorf("marshal settings: %w", err)
		}
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET
		   firstname     = COALESCE($2, firstname),
		   lastname      = COALESCE($3, lastname),
		   photo_url     = COALESCE($4, photo_url),
		   is_login      = COALESCE($5, is_login),
		   last_login    = COALESCE($6, last_login),
		   password_hash = COALESCE($7, password_hash),
		   settings      = CASE WHEN $8::jsonb IS NULL THEN settings
		                        ELSE COALESCE(settings, '{}'::jsonb) || $8::jsonb END,
		   updated_at    = $9
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, patch.Firstname, patch.Lastname, patch.PhotoURL, patch.IsLogin, patch.LastLogin,
		hash, settings, time.Now().UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) StoreSecret(ctx context.Context, userID string, secret model.PendingSecret) error {
	if _, err := uuid.Parse(userID); err != nil {
		return model.ErrUserNotFound
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET reset_token_hash = $2, reset_purpose = $3, reset_date = $4, updated_at = $5
		 WHERE id = $1`,
		userID, secret.Hash, string(secret.Purpose), secret.IssuedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// ConsumeSecret clears the pending secret with a single guarded UPDATE, so of
// two concurrent consumers of the same secret only one sees a returned row.
func (r *UserRepository) ConsumeSecret(ctx context.Context, params model.ConsumeSecret) (model.User, error) {
	if _, err := uuid.Parse(params.UserID); err != nil {
		return model.User{}, model.ErrUserNotFound
	}

	var hash *string
	if params.NewPassword != nil {
		h, err := r.hasher.Hash(*params.NewPassword)
		if err != nil {
			return model.User{}, err
		}
		hash = &h
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET
		   reset_token_hash = NULL,
		   reset_purpose    = NULL,
		   reset_date       = NULL,
		   account_expires  = CASE WHEN $5::boolean THEN NULL ELSE account_expires END,
		   email_verified   = email_verified OR $5::boolean,
		   password_hash    = COALESCE($6, password_hash),
		   updated_at       = $7
		 WHERE id = $1 AND reset_purpose = $2 AND reset_token_hash = $3 AND reset_date > $4
		 RETURNING `+userColumns,
		params.UserID, string(params.Purpose), params.Hash, params.IssuedAfter,
		params.MarkVerified, hash, time.Now().UTC()))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, fmt.Errorf("consume secret: %w", err)
	}

	var (
		purpose, storedHash string
		issuedAt            *time.Time
	)
	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(reset_purpose, ''), COALESCE(reset_token_hash, ''), reset_date
		 FROM users WHERE id = $1`, params.UserID).Scan(&purpose, &storedHash, &issuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("inspect pending secret: %w", err)
	}
	return model.User{}, classifyConsume(model.Purpose(purpose), storedHash, issuedAt, params)
}

func scanUser(row pgx.Row) (model.User, error) {
	var (
		u       model.User
		purpose string
	)
	err := row.Scan(&u.ID, &u.Firstname, &u.Lastname, &u.Username, &u.Email,
		&u.PasswordHash, &u.PhotoURL, &u.IsLogin, &u.LastLogin,
		&u.Provider, &u.EmailVerified, &u.AccountExpires,
		&u.ResetTokenHash, &purpose, &u.ResetDate,
		&u.Settings, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.ResetPurpose = model.Purpose(purpose)
	return u, nil
}

func nonNilSettings(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return in
}
