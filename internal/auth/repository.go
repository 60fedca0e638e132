package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository is the Postgres-backed credential store. Every mutation is a
// single statement so the rotation guarantee rests on row-level atomicity,
// not on read-then-write sequences.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateAccount(ctx context.Context, account Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, display_name, confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, account.ID, account.Email, account.PasswordHash, account.DisplayName, account.Confirmed, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return storeFailure("insert account", err)
	}

	return nil
}

func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	return r.getAccount(ctx, `
		SELECT id, email, password_hash, display_name, confirmed, refresh_fingerprint, avatar_url, created_at, updated_at
		FROM accounts
		WHERE lower(email) = lower($1)
	`, email)
}

func (r *Repository) GetAccountByID(ctx context.Context, id string) (Account, error) {
	return r.getAccount(ctx, `
		SELECT id, email, password_hash, display_name, confirmed, refresh_fingerprint, avatar_url, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id)
}

func (r *Repository) getAccount(ctx context.Context, query string, arg any) (Account, error) {
	var account Account
	var fingerprint sql.NullString
	var avatarURL sql.NullString

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.DisplayName,
		&account.Confirmed,
		&fingerprint,
		&avatarURL,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, storeFailure("query account", err)
	}

	if fingerprint.Valid {
		account.RefreshFingerprint = &fingerprint.String
	}
	if avatarURL.Valid {
		account.AvatarURL = &avatarURL.String
	}

	return account, nil
}

// ConfirmAccount flips confirmed to true. Already-confirmed accounts are a
// no-op, not an error.
func (r *Repository) ConfirmAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET confirmed = TRUE, updated_at = $2
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return storeFailure("confirm account", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeFailure("confirm account rows affected", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// SetRefreshFingerprint overwrites the stored fingerprint unconditionally.
// Used on login: any prior session is implicitly revoked.
func (r *Repository) SetRefreshFingerprint(ctx context.Context, id, fingerprint string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET refresh_fingerprint = $2, updated_at = $3
		WHERE id = $1
	`, id, fingerprint, time.Now().UTC())
	if err != nil {
		return storeFailure("set refresh fingerprint", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeFailure("set refresh fingerprint rows affected", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// SwapRefreshFingerprint is the rotation compare-and-swap: the write only
// lands if the stored fingerprint still equals the presented one. Zero rows
// affected means the token was already rotated out or never valid.
func (r *Repository) SwapRefreshFingerprint(ctx context.Context, id, oldFingerprint, newFingerprint string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET refresh_fingerprint = $3, updated_at = $4
		WHERE id = $1 AND refresh_fingerprint = $2
	`, id, oldFingerprint, newFingerprint, time.Now().UTC())
	if err != nil {
		return storeFailure("swap refresh fingerprint", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeFailure("swap refresh fingerprint rows affected", err)
	}
	if affected == 0 {
		return ErrTokenRevoked
	}

	return nil
}

// ClearRefreshFingerprint ends the active session. Idempotent: clearing an
// already-cleared fingerprint succeeds.
func (r *Repository) ClearRefreshFingerprint(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET refresh_fingerprint = NULL, updated_at = $2
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return storeFailure("clear refresh fingerprint", err)
	}

	return nil
}

// UpdatePasswordAndRevoke rehashes and forces re-login in one statement.
func (r *Repository) UpdatePasswordAndRevoke(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = $2, refresh_fingerprint = NULL, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now().UTC())
	if err != nil {
		return storeFailure("update password", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeFailure("update password rows affected", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// UpdateAvatarURL stores the uploaded avatar location on the account.
func (r *Repository) UpdateAvatarURL(ctx context.Context, id, avatarURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET avatar_url = $2, updated_at = $3
		WHERE id = $1
	`, id, avatarURL, time.Now().UTC())
	if err != nil {
		return storeFailure("update avatar url", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeFailure("update avatar url rows affected", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// DeleteStaleUnconfirmedAccounts prunes signups that never confirmed within
// the retention window. Batched so serverless invocations stay bounded.
func (r *Repository) DeleteStaleUnconfirmedAccounts(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM accounts
			WHERE confirmed = FALSE AND created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM accounts a
		USING stale
		WHERE a.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, storeFailure("delete stale unconfirmed accounts", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, storeFailure("stale unconfirmed accounts rows affected", err)
	}

	return affected, nil
}

// storeFailure classifies infrastructure errors as retryable so handlers can
// answer 503 instead of 500. Policy errors never pass through here.
func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
