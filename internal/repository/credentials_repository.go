package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

type CredentialsRepository interface {
	Get(ctx context.Context, userID string, platform models.Platform) (*models.Credentials, error)
	Upsert(ctx context.Context, creds *models.Credentials) error
	ListByUserID(ctx context.Context, userID string) ([]*models.Credentials, error)
	ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.Credentials, error)
	SetToken(ctx context.Context, userID string, platform models.Platform, oldAccessToken string, creds *models.Credentials) error
	Remove(ctx context.Context, userID string, platform models.Platform) error
}

type credentialsRepository struct {
	db *sql.DB
}

func NewCredentialsRepository(db *sql.DB) CredentialsRepository {
	return &credentialsRepository{db: db}
}

func scanExpiry(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	return &nt.Time
}

func (r *credentialsRepository) Get(ctx context.Context, userID string, platform models.Platform) (*models.Credentials, error) {
	query := `
		SELECT user_id, platform, account_id, access_token, refresh_token, api_key, token_expires_at, created_at, updated_at
		FROM platform_credentials
		WHERE user_id = $1 AND platform = $2`

	var (
		c       models.Credentials
		expires sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, userID, string(platform)).Scan(&c.UserID, &c.Platform, &c.AccountID,
		&c.AccessToken, &c.RefreshToken, &c.APIKey, &expires, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrCredentialsNotFound
		}
		slog.Info(err.Error())
		return nil, &models.StoreError{Op: "get credentials", Err: err}
	}

	c.TokenExpiresAt = scanExpiry(expires)
	return &c, nil
}

func (r *credentialsRepository) Upsert(ctx context.Context, c *models.Credentials) error {
	query := `
		INSERT INTO platform_credentials (user_id, platform, account_id, access_token, refresh_token, api_key, token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, platform) DO UPDATE
		SET account_id = EXCLUDED.account_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			api_key = EXCLUDED.api_key,
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query, c.UserID, string(c.Platform), c.AccountID,
		c.AccessToken, c.RefreshToken, c.APIKey, c.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return &models.StoreError{Op: "upsert credentials", Err: err}
	}
	return nil
}

// ListByUserID returns the connected platforms of a user without secrets.
func (r *credentialsRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Credentials, error) {
	query := `
		SELECT user_id, platform, account_id, token_expires_at, created_at, updated_at
		FROM platform_credentials
		WHERE user_id = $1
		ORDER BY platform`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, &models.StoreError{Op: "list credentials", Err: err}
	}
	defer rows.Close()

	creds := []*models.Credentials{}
	for rows.Next() {
		var (
			c       models.Credentials
			expires sql.NullTime
		)
		if err := rows.Scan(&c.UserID, &c.Platform, &c.AccountID, &expires, &c.CreatedAt, &c.UpdatedAt); err != nil {
			slog.Info(err.Error())
			return nil, &models.StoreError{Op: "list credentials", Err: err}
		}
		c.TokenExpiresAt = scanExpiry(expires)
		creds = append(creds, &c)
	}
	return creds, rows.Err()
}

// ListByTimeInterval returns credentials whose token expires between the
// two instants or has already expired.
func (r *credentialsRepository) ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.Credentials, error) {
	query := `SELECT
			user_id,
			platform,
			account_id,
			access_token,
			refresh_token,
			token_expires_at
			FROM platform_credentials
			WHERE refresh_token <> ''
			AND ((token_expires_at BETWEEN $1 AND $2) OR (token_expires_at < $1))`
	rows, err := r.db.QueryContext(ctx, query, initialTime, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var creds []*models.Credentials
	for rows.Next() {
		var (
			c       models.Credentials
			expires sql.NullTime
		)
		err := rows.Scan(&c.UserID, &c.Platform, &c.AccountID, &c.AccessToken, &c.RefreshToken, &expires)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		c.TokenExpiresAt = scanExpiry(expires)
		creds = append(creds, &c)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return creds, nil
}

// SetToken swaps in refreshed tokens only if the stored access token is
// still oldAccessToken, so two refreshers cannot clobber each other.
func (r *credentialsRepository) SetToken(ctx context.Context, userID string, platform models.Platform, oldAccessToken string, c *models.Credentials) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	updateTokenQuery := `
		UPDATE platform_credentials
		SET
			access_token = COALESCE(NULLIF($4, ''), access_token),
			refresh_token = COALESCE(NULLIF($5, ''), refresh_token),
			token_expires_at = COALESCE($6, token_expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND platform = $2 AND access_token = $3;
	`
	result, err := tx.ExecContext(ctx, updateTokenQuery, userID, string(platform), oldAccessToken,
		c.AccessToken, c.RefreshToken, c.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return models.ErrCredentialsNotFound
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *credentialsRepository) Remove(ctx context.Context, userID string, platform models.Platform) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM platform_credentials WHERE user_id = $1 AND platform = $2`, userID, string(platform))
	if err != nil {
		slog.Info(err.Error())
		return &models.StoreError{Op: "remove credentials", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return &models.StoreError{Op: "remove credentials", Err: err}
	}
	if affected == 0 {
		return models.ErrCredentialsNotFound
	}
	return nil
}
