package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.PostRepo    = (*Postgres)(nil)
	_ domain.ChannelRepo = (*Postgres)(nil)
	_ domain.StyleRepo   = (*Postgres)(nil)
	_ domain.JobStore    = (*Postgres)(nil)
	_ domain.Balance     = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close закрывает пул подключений.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Migrate применяет схему.
func (p *Postgres) Migrate(ctx context.Context) error {
	schema, err := migrationSQL("postgres.sql")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	start := time.Now()
	_, err = p.pool.Exec(ctx, schema)
	metrics.ObserveNetworkRequest("postgres", "migrate", "schema", start, err)
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

const postColumns = `id, owner_id, title, content, style_id, photo_ref, scheduled_time, published_at, is_published, created_at, updated_at`

func scanPost(row pgx.Row) (domain.Post, error) {
	var post domain.Post
	err := row.Scan(&post.ID, &post.OwnerID, &post.Title, &post.Content, &post.StyleID, &post.PhotoRef,
		&post.ScheduledTime, &post.PublishedAt, &post.IsPublished, &post.CreatedAt, &post.UpdatedAt)
	return post, err
}

// CreatePost сохраняет новый черновик.
func (p *Postgres) CreatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	created, err := scanPost(p.pool.QueryRow(ctx, `
INSERT INTO posts (owner_id, title, content, style_id, photo_ref)
VALUES ($1,$2,$3,$4,$5)
RETURNING `+postColumns, post.OwnerID, post.Title, post.Content, post.StyleID, post.PhotoRef))
	metrics.ObserveNetworkRequest("postgres", "posts_insert", "posts", start, err)
	return created, err
}

// GetPost возвращает пост по идентификатору.
func (p *Postgres) GetPost(ctx context.Context, id int64) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	post, err := scanPost(p.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id=$1`, id))
	metrics.ObserveNetworkRequest("postgres", "posts_get", "posts", start, err)
	return post, notFound(err)
}

// UpdateDraft меняет неопубликованный пост.
func (p *Postgres) UpdateDraft(ctx context.Context, id int64, patch domain.PostPatch) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	post, err := scanPost(p.pool.QueryRow(ctx, `
UPDATE posts
SET title = COALESCE($2, title),
    content = COALESCE($3, content),
    photo_ref = COALESCE($4, photo_ref),
    updated_at = now()
WHERE id=$1 AND is_published=false
RETURNING `+postColumns, id, patch.Title, patch.Content, patch.PhotoRef))
	metrics.ObserveNetworkRequest("postgres", "posts_update_draft", "posts", start, err)
	return post, notFound(err)
}

// DeletePost удаляет пост вместе с его ожидающими публикациями.
func (p *Postgres) DeletePost(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM publish_jobs WHERE post_id=$1 AND status='pending'`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM posts WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	metrics.ObserveNetworkRequest("postgres", "posts_delete", "posts", start, err)
	return err
}

// ListPosts возвращает посты владельца, новые первыми.
func (p *Postgres) ListPosts(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+postColumns+` FROM posts
WHERE owner_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, ownerID, limit, offset)
	metrics.ObserveNetworkRequest("postgres", "posts_list", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// SetScheduledTime сохраняет запланированное время публикации.
func (p *Postgres) SetScheduledTime(ctx context.Context, id int64, at *time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE posts SET scheduled_time=$2, updated_at=now() WHERE id=$1`, id, at)
	metrics.ObserveNetworkRequest("postgres", "posts_set_scheduled", "posts", start, err)
	return err
}

// MarkPublished отмечает публикацию; повторный вызов ничего не меняет.
func (p *Postgres) MarkPublished(ctx context.Context, id int64, at time.Time) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE posts SET is_published=true, published_at=$2, updated_at=now()
WHERE id=$1 AND is_published=false
`, id, at.UTC())
	metrics.ObserveNetworkRequest("postgres", "posts_mark_published", "posts", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateChannel сохраняет канал.
func (p *Postgres) CreateChannel(ctx context.Context, ch domain.Channel) (domain.Channel, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO channels (owner_id, name, link) VALUES ($1,$2,$3)
RETURNING id, created_at
`, ch.OwnerID, ch.Name, ch.Link).Scan(&ch.ID, &ch.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "channels_insert", "channels", start, err)
	return ch, err
}

// GetChannel возвращает канал.
func (p *Postgres) GetChannel(ctx context.Context, id int64) (domain.Channel, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var ch domain.Channel
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT id, owner_id, name, link, created_at FROM channels WHERE id=$1`, id).
		Scan(&ch.ID, &ch.OwnerID, &ch.Name, &ch.Link, &ch.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "channels_get", "channels", start, err)
	return ch, notFound(err)
}

// UpdateChannel меняет имя и ссылку канала.
func (p *Postgres) UpdateChannel(ctx context.Context, ch domain.Channel) (domain.Channel, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
UPDATE channels SET name=$2, link=$3 WHERE id=$1
RETURNING id, owner_id, name, link, created_at
`, ch.ID, ch.Name, ch.Link).Scan(&ch.ID, &ch.OwnerID, &ch.Name, &ch.Link, &ch.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "channels_update", "channels", start, err)
	return ch, notFound(err)
}

// DeleteChannel удаляет канал.
func (p *Postgres) DeleteChannel(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM channels WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", "channels_delete", "channels", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListChannels возвращает каналы владельца.
func (p *Postgres) ListChannels(ctx context.Context, ownerID int64) ([]domain.Channel, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, owner_id, name, link, created_at FROM channels WHERE owner_id=$1 ORDER BY id
`, ownerID)
	metrics.ObserveNetworkRequest("postgres", "channels_list", "channels", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var channels []domain.Channel
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(&ch.ID, &ch.OwnerID, &ch.Name, &ch.Link, &ch.CreatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// CreateStyle сохраняет стиль.
func (p *Postgres) CreateStyle(ctx context.Context, style domain.Style) (domain.Style, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO styles (owner_id, name, examples) VALUES ($1,$2,$3)
RETURNING id, created_at
`, style.OwnerID, style.Name, style.Examples).Scan(&style.ID, &style.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "styles_insert", "styles", start, err)
	return style, err
}

// GetStyle возвращает стиль.
func (p *Postgres) GetStyle(ctx context.Context, id int64) (domain.Style, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var style domain.Style
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT id, owner_id, name, examples, created_at FROM styles WHERE id=$1`, id).
		Scan(&style.ID, &style.OwnerID, &style.Name, &style.Examples, &style.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "styles_get", "styles", start, err)
	return style, notFound(err)
}

// ListStyles возвращает стили владельца.
func (p *Postgres) ListStyles(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Style, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, owner_id, name, examples, created_at FROM styles
WHERE owner_id=$1 ORDER BY id LIMIT $2 OFFSET $3
`, ownerID, limit, offset)
	metrics.ObserveNetworkRequest("postgres", "styles_list", "styles", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var styles []domain.Style
	for rows.Next() {
		var style domain.Style
		if err := rows.Scan(&style.ID, &style.OwnerID, &style.Name, &style.Examples, &style.CreatedAt); err != nil {
			return nil, err
		}
		styles = append(styles, style)
	}
	return styles, rows.Err()
}

// DeleteStyle удаляет стиль.
func (p *Postgres) DeleteStyle(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM styles WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", "styles_delete", "styles", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Balance возвращает остаток генераций; отсутствие записи означает ноль.
func (p *Postgres) Balance(ctx context.Context, ownerID int64) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var amount int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT amount FROM balances WHERE owner_id=$1`, ownerID).Scan(&amount)
	metrics.ObserveNetworkRequest("postgres", "balances_get", "balances", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

// Debit списывает генерации, не уходя в минус.
func (p *Postgres) Debit(ctx context.Context, ownerID, amount int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE balances SET amount = amount - $2, updated_at = now()
WHERE owner_id=$1 AND amount >= $2
`, ownerID, amount)
	metrics.ObserveNetworkRequest("postgres", "balances_debit", "balances", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

// TopUp пополняет баланс.
func (p *Postgres) TopUp(ctx context.Context, ownerID, amount int64) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var total int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO balances (owner_id, amount) VALUES ($1,$2)
ON CONFLICT (owner_id) DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = now()
RETURNING amount
`, ownerID, amount).Scan(&total)
	metrics.ObserveNetworkRequest("postgres", "balances_top_up", "balances", start, err)
	return total, err
}

const jobColumns = `id, post_id, channel_id, owner_id, fire_time, next_attempt_at, payload, status, attempts, last_error, delivered_at, created_at, updated_at`

func scanJob(row pgx.Row) (domain.ScheduledJob, error) {
	var (
		job     domain.ScheduledJob
		payload []byte
		status  string
	)
	if err := row.Scan(&job.ID, &job.PostID, &job.ChannelID, &job.OwnerID, &job.FireTime, &job.NextAttemptAt,
		&payload, &status, &job.Attempts, &job.LastError, &job.DeliveredAt, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return domain.ScheduledJob{}, err
	}
	job.Status = domain.JobStatus(status)
	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return domain.ScheduledJob{}, fmt.Errorf("распаковка payload задачи %s: %w", job.ID, err)
	}
	return job, nil
}

// DeletePendingForChannel удаляет ожидающие задачи поста в канал.
func (p *Postgres) DeletePendingForChannel(ctx context.Context, postID, channelID int64, now time.Time) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
DELETE FROM publish_jobs
WHERE post_id=$1 AND channel_id=$2 AND status='pending'
  AND (lease_owner='' OR lease_expires_at IS NULL OR lease_expires_at <= $3)
`, postID, channelID, now.UTC())
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_delete_for_channel", "publish_jobs", start, err)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// InsertJob создаёт задачу публикации, если её ещё нет.
func (p *Postgres) InsertJob(ctx context.Context, job domain.ScheduledJob) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return false, fmt.Errorf("упаковка payload: %w", err)
	}
	start := time.Now()
	tag, err := p.pool.Exec(ctx, insertJobSQL, job.ID, job.PostID, job.ChannelID, job.OwnerID,
		job.FireTime.UTC(), job.NextAttemptAt.UTC(), payload)
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_insert", "publish_jobs", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const insertJobSQL = `
INSERT INTO publish_jobs (id, post_id, channel_id, owner_id, fire_time, next_attempt_at, payload)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING
`

// GetJob возвращает задачу.
func (p *Postgres) GetJob(ctx context.Context, id string) (domain.ScheduledJob, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	job, err := scanJob(p.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM publish_jobs WHERE id=$1`, id))
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_get", "publish_jobs", start, err)
	return job, notFound(err)
}

const deletePendingJobSQL = `
DELETE FROM publish_jobs
WHERE id=$1 AND status='pending' AND (lease_owner='' OR lease_expires_at IS NULL OR lease_expires_at <= $2)
`

// DeletePendingJob удаляет ожидающую задачу, если её никто не доставляет.
func (p *Postgres) DeletePendingJob(ctx context.Context, id string, now time.Time) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, deletePendingJobSQL, id, now.UTC())
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_delete", "publish_jobs", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReplaceJob в одной транзакции удаляет старую задачу и создаёт новую.
func (p *Postgres) ReplaceJob(ctx context.Context, oldID string, next domain.ScheduledJob, now time.Time) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	payload, err := json.Marshal(next.Payload)
	if err != nil {
		return false, fmt.Errorf("упаковка payload: %w", err)
	}
	replaced := false
	start := time.Now()
	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deletePendingJobSQL, oldID, now.UTC())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, insertJobSQL, next.ID, next.PostID, next.ChannelID, next.OwnerID,
			next.FireTime.UTC(), next.NextAttemptAt.UTC(), payload); err != nil {
			return err
		}
		replaced = true
		return nil
	})
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_replace", "publish_jobs", start, err)
	if err != nil {
		return false, err
	}
	return replaced, nil
}

// ListDue возвращает задачи, которым пора выполняться.
func (p *Postgres) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+jobColumns+` FROM publish_jobs
WHERE status='pending' AND next_attempt_at <= $1
ORDER BY fire_time, id
LIMIT $2
`, now.UTC(), limit)
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_list_due", "publish_jobs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextAttemptAt возвращает ближайшее время попытки.
func (p *Postgres) NextAttemptAt(ctx context.Context) (time.Time, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var next *time.Time
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT MIN(next_attempt_at) FROM publish_jobs WHERE status='pending'`).Scan(&next)
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_next", "publish_jobs", start, err)
	if err != nil || next == nil {
		return time.Time{}, false, err
	}
	return *next, true, nil
}

// ClaimJob захватывает задачу на время доставки.
func (p *Postgres) ClaimJob(ctx context.Context, id, owner string, now time.Time, ttl time.Duration) (domain.ScheduledJob, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	job, err := scanJob(p.pool.QueryRow(ctx, `
UPDATE publish_jobs SET lease_owner=$2, lease_expires_at=$3, updated_at=now()
WHERE id=$1 AND status='pending' AND next_attempt_at <= $4
  AND (lease_owner='' OR lease_owner=$2 OR lease_expires_at IS NULL OR lease_expires_at <= $4)
RETURNING `+jobColumns, id, owner, now.Add(ttl).UTC(), now.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "publish_jobs_claim", "publish_jobs", start, nil)
		return domain.ScheduledJob{}, false, nil
	}
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_claim", "publish_jobs", start, err)
	if err != nil {
		return domain.ScheduledJob{}, false, err
	}
	return job, true, nil
}

// MarkJobDelivered фиксирует успешную доставку.
func (p *Postgres) MarkJobDelivered(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE publish_jobs
SET status='delivered', delivered_at=COALESCE(delivered_at, $2), attempts=attempts+1,
    lease_owner='', lease_expires_at=NULL, updated_at=now()
WHERE id=$1
`, id, at.UTC())
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_mark_delivered", "publish_jobs", start, err)
	return err
}

// RecordJobFailure фиксирует неудачную попытку.
func (p *Postgres) RecordJobFailure(ctx context.Context, id string, attempts int, lastErr string, nextAttempt time.Time, final bool) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	status := domain.JobPending
	if final {
		status = domain.JobFailed
	}
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE publish_jobs
SET status=$2, attempts=$3, last_error=$4, next_attempt_at=$5,
    lease_owner='', lease_expires_at=NULL, updated_at=now()
WHERE id=$1 AND status='pending'
`, id, string(status), attempts, lastErr, nextAttempt.UTC())
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_record_failure", "publish_jobs", start, err)
	return err
}

// RepairPublished выставляет is_published постам с доставленной задачей.
func (p *Postgres) RepairPublished(ctx context.Context) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE posts SET is_published=true, published_at=j.delivered_at, updated_at=now()
FROM (
    SELECT post_id, MIN(delivered_at) AS delivered_at
    FROM publish_jobs
    WHERE status='delivered' AND delivered_at IS NOT NULL
    GROUP BY post_id
) j
WHERE posts.id=j.post_id AND posts.is_published=false
`)
	metrics.ObserveNetworkRequest("postgres", "posts_repair_published", "posts", start, err)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ListJobs возвращает задачи с указанным статусом; пустой статус означает все.
func (p *Postgres) ListJobs(ctx context.Context, status domain.JobStatus, limit int) ([]domain.ScheduledJob, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+jobColumns+` FROM publish_jobs
WHERE ($1 = '' OR status = $1)
ORDER BY fire_time, id
LIMIT $2
`, string(status), limit)
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_list", "publish_jobs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountJobs считает задачи со статусом.
func (p *Postgres) CountJobs(ctx context.Context, status domain.JobStatus) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM publish_jobs WHERE status=$1`, string(status)).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "publish_jobs_count", "publish_jobs", start, err)
	return count, err
}
