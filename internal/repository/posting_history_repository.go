package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/maheshrc27/postpilot/internal/models"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, ph *models.PostingHistory) (string, error)
	GetByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (string, error) {
	query := `
		INSERT INTO posting_history (id, post_id, user_id, platform, attempt, success, external_id, error_code, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id string
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), ph.PostID, ph.UserID, string(ph.Platform),
		ph.Attempt, ph.Success, ph.ExternalID, ph.ErrorCode, ph.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return id, nil
}

// GetByPostID lists the attempts of a post, oldest first.
func (r *postingHistoryRepository) GetByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	query := `
		SELECT id, post_id, user_id, platform, attempt, success, external_id, error_code, error_message, created_at
		FROM posting_history
		WHERE post_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	phs := []*models.PostingHistory{}
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.PostID, &ph.UserID, &ph.Platform, &ph.Attempt, &ph.Success,
			&ph.ExternalID, &ph.ErrorCode, &ph.ErrorMessage, &ph.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		phs = append(phs, &ph)
	}
	return phs, rows.Err()
}
