package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/metrics"
)

// SQLite реализует те же репозитории поверх modernc.org/sqlite.
// Время хранится в миллисекундах Unix, чтобы сортировка шла по числу.
type SQLite struct {
	db *sql.DB
}

var (
	_ domain.PostRepo    = (*SQLite)(nil)
	_ domain.ChannelRepo = (*SQLite)(nil)
	_ domain.StyleRepo   = (*SQLite)(nil)
	_ domain.JobStore    = (*SQLite)(nil)
	_ domain.Balance     = (*SQLite)(nil)
)

// NewSQLite создаёт адаптер.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Migrate применяет схему.
func (s *SQLite) Migrate(ctx context.Context) error {
	schema, err := migrationSQL("sqlite.sql")
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = s.db.ExecContext(ctx, schema)
	metrics.ObserveNetworkRequest("sqlite", "migrate", "schema", start, err)
	return err
}

// Close закрывает соединение.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: millis(*t), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func sqlNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePost(row rowScanner) (domain.Post, error) {
	var (
		post                 domain.Post
		styleID              sql.NullInt64
		scheduled, published sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&post.ID, &post.OwnerID, &post.Title, &post.Content, &styleID, &post.PhotoRef,
		&scheduled, &published, &post.IsPublished, &createdAt, &updatedAt); err != nil {
		return domain.Post{}, err
	}
	if styleID.Valid {
		id := styleID.Int64
		post.StyleID = &id
	}
	post.ScheduledTime = timePtr(scheduled)
	post.PublishedAt = timePtr(published)
	post.CreatedAt = fromMillis(createdAt)
	post.UpdatedAt = fromMillis(updatedAt)
	return post, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// CreatePost сохраняет новый черновик.
func (s *SQLite) CreatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	now := millis(time.Now())
	start := time.Now()
	created, err := scanSQLitePost(s.db.QueryRowContext(ctx, `
INSERT INTO posts (owner_id, title, content, style_id, photo_ref, created_at, updated_at)
VALUES (?,?,?,?,?,?,?)
RETURNING `+postColumns, post.OwnerID, post.Title, post.Content, nullInt(post.StyleID), post.PhotoRef, now, now))
	metrics.ObserveNetworkRequest("sqlite", "posts_insert", "posts", start, err)
	return created, err
}

// GetPost возвращает пост.
func (s *SQLite) GetPost(ctx context.Context, id int64) (domain.Post, error) {
	start := time.Now()
	post, err := scanSQLitePost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id=?`, id))
	metrics.ObserveNetworkRequest("sqlite", "posts_get", "posts", start, err)
	return post, sqlNotFound(err)
}

// UpdateDraft меняет неопубликованный пост.
func (s *SQLite) UpdateDraft(ctx context.Context, id int64, patch domain.PostPatch) (domain.Post, error) {
	start := time.Now()
	post, err := scanSQLitePost(s.db.QueryRowContext(ctx, `
UPDATE posts
SET title = COALESCE(?, title),
    content = COALESCE(?, content),
    photo_ref = COALESCE(?, photo_ref),
    updated_at = ?
WHERE id=? AND is_published=0
RETURNING `+postColumns, nullString(patch.Title), nullString(patch.Content), nullString(patch.PhotoRef), millis(time.Now()), id))
	metrics.ObserveNetworkRequest("sqlite", "posts_update_draft", "posts", start, err)
	return post, sqlNotFound(err)
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// DeletePost удаляет пост вместе с его ожидающими публикациями.
func (s *SQLite) DeletePost(ctx context.Context, id int64) error {
	start := time.Now()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM publish_jobs WHERE post_id=? AND status='pending'`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id=?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	metrics.ObserveNetworkRequest("sqlite", "posts_delete", "posts", start, err)
	return err
}

// ListPosts возвращает посты владельца, новые первыми.
func (s *SQLite) ListPosts(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Post, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
SELECT `+postColumns+` FROM posts WHERE owner_id=?
ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?
`, ownerID, limit, offset)
	metrics.ObserveNetworkRequest("sqlite", "posts_list", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []domain.Post
	for rows.Next() {
		post, err := scanSQLitePost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// SetScheduledTime сохраняет запланированное время публикации.
func (s *SQLite) SetScheduledTime(ctx context.Context, id int64, at *time.Time) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `UPDATE posts SET scheduled_time=?, updated_at=? WHERE id=?`,
		nullMillis(at), millis(time.Now()), id)
	metrics.ObserveNetworkRequest("sqlite", "posts_set_scheduled", "posts", start, err)
	return err
}

// MarkPublished отмечает публикацию один раз.
func (s *SQLite) MarkPublished(ctx context.Context, id int64, at time.Time) (bool, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
UPDATE posts SET is_published=1, published_at=?, updated_at=?
WHERE id=? AND is_published=0
`, millis(at), millis(time.Now()), id)
	metrics.ObserveNetworkRequest("sqlite", "posts_mark_published", "posts", start, err)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CreateChannel сохраняет канал.
func (s *SQLite) CreateChannel(ctx context.Context, ch domain.Channel) (domain.Channel, error) {
	now := time.Now().UTC()
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
INSERT INTO channels (owner_id, name, link, created_at) VALUES (?,?,?,?) RETURNING id
`, ch.OwnerID, ch.Name, ch.Link, millis(now)).Scan(&ch.ID)
	metrics.ObserveNetworkRequest("sqlite", "channels_insert", "channels", start, err)
	ch.CreatedAt = fromMillis(millis(now))
	return ch, err
}

func scanSQLiteChannel(row rowScanner) (domain.Channel, error) {
	var (
		ch        domain.Channel
		createdAt int64
	)
	if err := row.Scan(&ch.ID, &ch.OwnerID, &ch.Name, &ch.Link, &createdAt); err != nil {
		return domain.Channel{}, err
	}
	ch.CreatedAt = fromMillis(createdAt)
	return ch, nil
}

// GetChannel возвращает канал.
func (s *SQLite) GetChannel(ctx context.Context, id int64) (domain.Channel, error) {
	start := time.Now()
	ch, err := scanSQLiteChannel(s.db.QueryRowContext(ctx, `SELECT id, owner_id, name, link, created_at FROM channels WHERE id=?`, id))
	metrics.ObserveNetworkRequest("sqlite", "channels_get", "channels", start, err)
	return ch, sqlNotFound(err)
}

// UpdateChannel меняет имя и ссылку канала.
func (s *SQLite) UpdateChannel(ctx context.Context, ch domain.Channel) (domain.Channel, error) {
	start := time.Now()
	updated, err := scanSQLiteChannel(s.db.QueryRowContext(ctx, `
UPDATE channels SET name=?, link=? WHERE id=?
RETURNING id, owner_id, name, link, created_at
`, ch.Name, ch.Link, ch.ID))
	metrics.ObserveNetworkRequest("sqlite", "channels_update", "channels", start, err)
	return updated, sqlNotFound(err)
}

// DeleteChannel удаляет канал.
func (s *SQLite) DeleteChannel(ctx context.Context, id int64) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id=?`, id)
	metrics.ObserveNetworkRequest("sqlite", "channels_delete", "channels", start, err)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListChannels возвращает каналы владельца.
func (s *SQLite) ListChannels(ctx context.Context, ownerID int64) ([]domain.Channel, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT id, owner_id, name, link, created_at FROM channels WHERE owner_id=? ORDER BY id`, ownerID)
	metrics.ObserveNetworkRequest("sqlite", "channels_list", "channels", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var channels []domain.Channel
	for rows.Next() {
		ch, err := scanSQLiteChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func scanSQLiteStyle(row rowScanner) (domain.Style, error) {
	var (
		style     domain.Style
		createdAt int64
	)
	if err := row.Scan(&style.ID, &style.OwnerID, &style.Name, &style.Examples, &createdAt); err != nil {
		return domain.Style{}, err
	}
	style.CreatedAt = fromMillis(createdAt)
	return style, nil
}

// CreateStyle сохраняет стиль.
func (s *SQLite) CreateStyle(ctx context.Context, style domain.Style) (domain.Style, error) {
	now := time.Now()
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
INSERT INTO styles (owner_id, name, examples, created_at) VALUES (?,?,?,?) RETURNING id
`, style.OwnerID, style.Name, style.Examples, millis(now)).Scan(&style.ID)
	metrics.ObserveNetworkRequest("sqlite", "styles_insert", "styles", start, err)
	style.CreatedAt = fromMillis(millis(now))
	return style, err
}

// GetStyle возвращает стиль.
func (s *SQLite) GetStyle(ctx context.Context, id int64) (domain.Style, error) {
	start := time.Now()
	style, err := scanSQLiteStyle(s.db.QueryRowContext(ctx, `SELECT id, owner_id, name, examples, created_at FROM styles WHERE id=?`, id))
	metrics.ObserveNetworkRequest("sqlite", "styles_get", "styles", start, err)
	return style, sqlNotFound(err)
}

// ListStyles возвращает стили владельца.
func (s *SQLite) ListStyles(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Style, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
SELECT id, owner_id, name, examples, created_at FROM styles WHERE owner_id=? ORDER BY id LIMIT ? OFFSET ?
`, ownerID, limit, offset)
	metrics.ObserveNetworkRequest("sqlite", "styles_list", "styles", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var styles []domain.Style
	for rows.Next() {
		style, err := scanSQLiteStyle(rows)
		if err != nil {
			return nil, err
		}
		styles = append(styles, style)
	}
	return styles, rows.Err()
}

// DeleteStyle удаляет стиль.
func (s *SQLite) DeleteStyle(ctx context.Context, id int64) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM styles WHERE id=?`, id)
	metrics.ObserveNetworkRequest("sqlite", "styles_delete", "styles", start, err)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Balance возвращает остаток генераций.
func (s *SQLite) Balance(ctx context.Context, ownerID int64) (int64, error) {
	var amount int64
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `SELECT amount FROM balances WHERE owner_id=?`, ownerID).Scan(&amount)
	metrics.ObserveNetworkRequest("sqlite", "balances_get", "balances", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

// Debit списывает генерации, не уходя в минус.
func (s *SQLite) Debit(ctx context.Context, ownerID, amount int64) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
UPDATE balances SET amount = amount - ?, updated_at = ? WHERE owner_id=? AND amount >= ?
`, amount, millis(time.Now()), ownerID, amount)
	metrics.ObserveNetworkRequest("sqlite", "balances_debit", "balances", start, err)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

// TopUp пополняет баланс.
func (s *SQLite) TopUp(ctx context.Context, ownerID, amount int64) (int64, error) {
	var total int64
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
INSERT INTO balances (owner_id, amount, updated_at) VALUES (?,?,?)
ON CONFLICT(owner_id) DO UPDATE SET amount = amount + excluded.amount, updated_at = excluded.updated_at
RETURNING amount
`, ownerID, amount, millis(time.Now())).Scan(&total)
	metrics.ObserveNetworkRequest("sqlite", "balances_top_up", "balances", start, err)
	return total, err
}

func scanSQLiteJob(row rowScanner) (domain.ScheduledJob, error) {
	var (
		job                  domain.ScheduledJob
		fire, next           int64
		payload, status      string
		delivered            sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&job.ID, &job.PostID, &job.ChannelID, &job.OwnerID, &fire, &next, &payload, &status,
		&job.Attempts, &job.LastError, &delivered, &createdAt, &updatedAt); err != nil {
		return domain.ScheduledJob{}, err
	}
	if err := json.Unmarshal([]byte(payload), &job.Payload); err != nil {
		return domain.ScheduledJob{}, fmt.Errorf("распаковка payload задачи %s: %w", job.ID, err)
	}
	job.FireTime = fromMillis(fire)
	job.NextAttemptAt = fromMillis(next)
	job.Status = domain.JobStatus(status)
	job.DeliveredAt = timePtr(delivered)
	job.CreatedAt = fromMillis(createdAt)
	job.UpdatedAt = fromMillis(updatedAt)
	return job, nil
}

const sqliteInsertJob = `
INSERT INTO publish_jobs (id, post_id, channel_id, owner_id, fire_time, next_attempt_at, payload, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO NOTHING
`

const sqliteDeletePendingJob = `
DELETE FROM publish_jobs
WHERE id=? AND status='pending' AND (lease_owner='' OR lease_expires_at <= ?)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLite) insertJob(ctx context.Context, q execer, job domain.ScheduledJob) (bool, error) {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return false, fmt.Errorf("упаковка payload: %w", err)
	}
	now := millis(time.Now())
	res, err := q.ExecContext(ctx, sqliteInsertJob, job.ID, job.PostID, job.ChannelID, job.OwnerID,
		millis(job.FireTime), millis(job.NextAttemptAt), string(payload), now, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeletePendingForChannel удаляет ожидающие задачи поста в канал.
func (s *SQLite) DeletePendingForChannel(ctx context.Context, postID, channelID int64, now time.Time) (int, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
DELETE FROM publish_jobs
WHERE post_id=? AND channel_id=? AND status='pending' AND (lease_owner='' OR lease_expires_at <= ?)
`, postID, channelID, millis(now))
	metrics.ObserveNetworkRequest("sqlite", "publish_jobs_delete_for_channel", "publish_jobs", start, err)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// InsertJob создаёт задачу публикации, если её ещё нет.
func (s *SQLite) InsertJob(ctx context.Context, job domain.ScheduledJob) (bool, error) {
	start := time.Now()
	created, err := s.insertJob(ctx, s.db, job)
	metrics.ObserveNetworkRequest("sqlite", "publish_jobs_insert", "publish_jobs", start, err)
	return created, err
}

// GetJob возвращает задачу.
func (s *SQLite) GetJob(ctx context.Context, id string) (domain.ScheduledJob, error) {
	start := time.Now()
	job, err := scanSQLiteJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM publish_jobs WHERE id=?`, id))
	metrics.ObserveNetworkRequest("sqlite", "publish_jobs_get", "publish_jobs", start, err)
	return job, sqlNotFound(err)
}

// DeletePendingJob удаляет ожидающую задачу, если её никто не доставляет.
func (s *SQLite) DeletePendingJob(ctx context.Context, id string, now time.Time) (bool, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, sqliteDeletePendingJob, id, millis(now))
	metrics.ObserveNetworkRequest("sqlite", "publish_jobs_delete", "publish_jobs", start, err)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReplaceJob в одной транзакции удаляет старую задачу и создаёт новую.
func (s *SQLite) ReplaceJob(ctx context.Context, oldID string, next domain.ScheduledJob, now time.Time) (bool, error) {
	replaced := false
	start := time.Now()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqliteDeletePendingJob, oldID, millis(now))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		if _, err := s.insertJob(ctx, tx, next); err != nil {
			return err
		}
		replaced = true
		return nil
	})
	metrics.ObserveNetworkRequest("sqlite", "publish_jobs_replace", "publish_jobs", start, err)
	return replaced, err
}

func (s *SQLite) queryJobs(ctx context.Context, op, query string, args ...any) ([]domain.ScheduledJob, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	metrics.ObserveNetworkRequest("sqlite", op, "publish_jobs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.ScheduledJob
	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListDue возвращает задачи, которым пора выполняться.
func (s *SQLite) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error) {
	return s.queryJobs(ctx, "publish_jobs_list_due", `
SELECT `+jobColumns+` FROM publish_jobs
WHERE status='pending' AND next_attempt_at <= ?
ORDER BY fire_time, id LIMIT ?
`, millis(now), limit)
}

// NextAttemptAt возвращает ближайшее время попытки.
func (s *SQLite) NextAttemptAt(ctx context.Context) (time.Time, bool, error) {
	var next sql.NullInt64
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `SELECT MIN(next_attempt_at) FROM publish_jobs WHERE status='pending'`).Scan(&next)
	metrics.ObserveNetworkRequest("sqlite", "publish_jobs_next", "publish_jobs", start, err)
	if err != nil || !next.Valid {
		return time.Time{}, false, err
	}
	return fromMillis(next.Int64), true, nil
}

// ClaimJob захватывает задачу на время доставки.
func (s *SQLite) ClaimJob(ctx context.Context, id, owner string, now time.Time, ttl time.Duration) (domain.ScheduledJob, bool, error) {
	start := time.Now()
	job, err := scanSQLiteJob(s.db.QueryRowContext(ctx, `
UPDATE publish_jobs SET lease_owner=?, lease_expires_at=?, updated_at=?
WHERE id=? AND status='pending' AND next_attempt_at <= ?
  AND (lease_owner='' OR lease_owner=? OR lease_expires_at <= ?)
RETURNING `+jobColumns, owner, millis(now.Add(ttl)), millis(now), id, millis(now), owner, millis(now)))
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveNetworkRequest("sqlite", "publish_jobs_claim", "publish_jobs", start, nil)
		return domain.ScheduledJob{}, false, nil
	}
	metrics.ObserveNetworkRequest("sqlite", "publish_jobs_claim", "publish_jobs", start, err)
	if err != nil {
		return domain.ScheduledJob{}, false, err
	}
	return job, true, nil
}

// MarkJobDelivered фиксирует успешную доставку.
func (s *SQLite) MarkJobDelivered(ctx context.Context, id string, at time.Time) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
UPDATE publish_jobs
SET status='delivered', delivered_at=COALESCE(delivered_at, ?), attempts=attempts+1,
    lease_owner='', lease_expires_at=0, updated_at=?
WHERE id=?
`, millis(at), millis(time.Now()), id)
	metrics.ObserveNetworkRequest("sqlite", "publish_jobs_mark_delivered", "publish_jobs", start, err)
	return err
}

// RecordJobFailure фиксирует неудачную попытку.
func (s *SQLite) RecordJobFailure(ctx context.Context, id string, attempts int, lastErr string, nextAttempt time.Time, final bool) error {
	status := domain.JobPending
	if final {
		status = domain.JobFailed
	}
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
UPDATE publish_jobs
SET status=?, attempts=?, last_error=?, next_attempt_at=?, lease_owner='', lease_expires_at=0, updated_at=?
WHERE id=? AND status='pending'
`, string(status), attempts, lastErr, millis(nextAttempt), millis(time.Now()), id)
	metrics.ObserveNetworkRequest("sqlite", "publish_jobs_record_failure", "publish_jobs", start, err)
	return err
}

// RepairPublished выставляет is_published постам с доставленной задачей.
func (s *SQLite) RepairPublished(ctx context.Context) (int, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
UPDATE posts SET is_published=1,
    published_at=(SELECT MIN(j.delivered_at) FROM publish_jobs j WHERE j.post_id=posts.id AND j.status='delivered'),
    updated_at=?
WHERE is_published=0 AND EXISTS (
    SELECT 1 FROM publish_jobs j WHERE j.post_id=posts.id AND j.status='delivered' AND j.delivered_at IS NOT NULL
)
`, millis(time.Now()))
	metrics.ObserveNetworkRequest("sqlite", "posts_repair_published", "posts", start, err)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListJobs возвращает задачи с указанным статусом; пустой статус означает все.
func (s *SQLite) ListJobs(ctx context.Context, status domain.JobStatus, limit int) ([]domain.ScheduledJob, error) {
	return s.queryJobs(ctx, "publish_jobs_list", `
SELECT `+jobColumns+` FROM publish_jobs
WHERE (? = '' OR status = ?)
ORDER BY fire_time, id LIMIT ?
`, string(status), string(status), limit)
}

// CountJobs считает задачи со статусом.
func (s *SQLite) CountJobs(ctx context.Context, status domain.JobStatus) (int, error) {
	var count int
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM publish_jobs WHERE status=?`, string(status)).Scan(&count)
	metrics.ObserveNetworkRequest("sqlite", "publish_jobs_count", "publish_jobs", start, err)
	return count, err
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
