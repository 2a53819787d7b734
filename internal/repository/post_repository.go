package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/postpilot/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.ScheduledPost) (*models.ScheduledPost, error)
	Update(ctx context.Context, id string, patch *models.PostPatch) (*models.ScheduledPost, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)
	GetByUserID(ctx context.Context, userID string) ([]*models.ScheduledPost, error)
	GetUpcoming(ctx context.Context, userID string, now time.Time) ([]*models.ScheduledPost, error)
	GetFailed(ctx context.Context, userID string) ([]*models.ScheduledPost, error)
	ListDue(ctx context.Context, from, to time.Time) ([]*models.ScheduledPost, error)
	TransitionStatus(ctx context.Context, id string, from, to models.PostStatus, lastError string) error
	ReleaseStale(ctx context.Context, id string, staleBefore time.Time, lastError string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, platform, scheduled_at, status, content, attempts, last_error, published_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.ScheduledPost, error) {
	var (
		post        models.ScheduledPost
		content     []byte
		publishedAt sql.NullTime
	)
	err := row.Scan(&post.ID, &post.UserID, &post.Platform, &post.ScheduledAt, &post.Status,
		&content, &post.Attempts, &post.LastError, &publishedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(content, &post.Content); err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		post.PublishedAt = &publishedAt.Time
	}
	return &post, nil
}

func storeErr(op string, err error) error {
	slog.Error("post store failure", "op", op, "error", err)
	return &models.StoreError{Op: op, Err: err}
}

func (r *postRepository) Create(ctx context.Context, post *models.ScheduledPost) (*models.ScheduledPost, error) {
	if post.Status == "" {
		post.Status = models.PostStatusScheduled
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}

	content, err := json.Marshal(post.Content)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO scheduled_posts (id, user_id, platform, scheduled_at, status, content)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		RETURNING ` + postColumns

	row := r.db.QueryRowContext(ctx, query, uuid.NewString(), post.UserID, string(post.Platform),
		post.ScheduledAt, string(post.Status), string(content))
	created, err := scanPost(row)
	if err != nil {
		return nil, storeErr("create post", err)
	}
	return created, nil
}

func (r *postRepository) Update(ctx context.Context, id string, patch *models.PostPatch) (*models.ScheduledPost, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrPostNotFound
	}

	var (
		status  sql.NullString
		content sql.NullString
	)
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, models.NewValidationError("status", "unknown status "+string(*patch.Status))
		}
		status = sql.NullString{String: string(*patch.Status), Valid: true}
	}
	if patch.Content != nil {
		if err := patch.Content.Validate(); err != nil {
			return nil, err
		}
		b, err := json.Marshal(patch.Content)
		if err != nil {
			return nil, err
		}
		content = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		UPDATE scheduled_posts
		SET scheduled_at = COALESCE($2, scheduled_at),
			status = COALESCE($3, status),
			content = COALESCE($4::jsonb, content),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + postColumns

	row := r.db.QueryRowContext(ctx, query, id, patch.ScheduledAt, status, content)
	updated, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPostNotFound
		}
		return nil, storeErr("update post", err)
	}
	return updated, nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrPostNotFound
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_posts WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete post", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete post", err)
	}
	if affected == 0 {
		return models.ErrPostNotFound
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrPostNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM scheduled_posts WHERE id = $1`, id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPostNotFound
		}
		return nil, storeErr("get post", err)
	}
	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID string) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY scheduled_at ASC`
	return r.list(ctx, "list posts", query, userID)
}

func (r *postRepository) GetUpcoming(ctx context.Context, userID string, now time.Time) ([]*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM scheduled_posts
		WHERE user_id = $1 AND status = $2 AND scheduled_at >= $3
		ORDER BY scheduled_at ASC`
	return r.list(ctx, "list upcoming posts", query, userID, string(models.PostStatusScheduled), now)
}

// GetFailed lists failed posts newest first. An empty userID lists every user.
func (r *postRepository) GetFailed(ctx context.Context, userID string) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE status = $1`
	args := []any{string(models.PostStatusFailed)}

	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	query += ` ORDER BY scheduled_at DESC`

	return r.list(ctx, "list failed posts", query, args...)
}

func (r *postRepository) ListDue(ctx context.Context, from, to time.Time) ([]*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM scheduled_posts
		WHERE status = $1 AND scheduled_at BETWEEN $2 AND $3
		ORDER BY scheduled_at ASC`
	return r.list(ctx, "list due posts", query, string(models.PostStatusScheduled), from, to)
}

// TransitionStatus moves a post from one status to another only if it is
// still in the expected status. Entering processing counts an attempt.
func (r *postRepository) TransitionStatus(ctx context.Context, id string, from, to models.PostStatus, lastError string) error {
	if !from.CanTransitionTo(to) {
		return models.ErrInvalidTransition
	}
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrPostNotFound
	}

	query := `
		UPDATE scheduled_posts
		SET status = $3::text,
			attempts = attempts + CASE WHEN $3::text = 'processing' THEN 1 ELSE 0 END,
			last_error = $4,
			published_at = CASE WHEN $3::text = 'published' THEN NOW() ELSE published_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, string(from), string(to), lastError)
	if err != nil {
		return storeErr("transition post", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("transition post", err)
	}
	if affected == 1 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM scheduled_posts WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrPostNotFound
	}
	if err != nil {
		return storeErr("transition post", err)
	}
	return models.ErrStatusConflict
}

func (r *postRepository) list(ctx context.Context, op, query string, args ...any) ([]*models.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	posts := []*models.ScheduledPost{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return posts, nil
}

// ReleaseStale marks a post failed when it has been processing since before
// staleBefore. A post that moved on in the meantime is left alone and
// reported as ErrStatusConflict.
func (r *postRepository) ReleaseStale(ctx context.Context, id string, staleBefore time.Time, lastError string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrPostNotFound
	}

	query := `
		UPDATE scheduled_posts
		SET status = 'failed', last_error = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'processing' AND updated_at < $2
	`
	res, err := r.db.ExecContext(ctx, query, id, staleBefore, lastError)
	if err != nil {
		return storeErr("release stale post", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("release stale post", err)
	}
	if affected == 1 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM scheduled_posts WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrPostNotFound
	}
	if err != nil {
		return storeErr("release stale post", err)
	}
	return models.ErrStatusConflict
}
