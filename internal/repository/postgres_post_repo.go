package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/feedpress/internal/model"
)

var _ PostRepository = (*PostgresPostRepo)(nil)

const postColumns = `id, title, content, excerpt, date, author, slug, image_url, source,
	status, rejection_reason, published_at, created_at, updated_at`

// PostgresPostRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPost はpostColumnsの順に読み出した1行をmodel.Postに変換する。
// extraは末尾に追加で読み出すカラムの格納先。
func scanPost(row rowScanner, extra ...any) (*model.Post, error) {
	p := &model.Post{}
	var imageURL, rejectionReason sql.NullString
	var publishedAt sql.NullTime
	var status string

	dest := []any{
		&p.ID, &p.Title, &p.Content, &p.Excerpt, &p.Date, &p.Author, &p.Slug, &imageURL, &p.Source,
		&status, &rejectionReason, &publishedAt, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	p.Status = model.PostStatus(status)
	p.ImageURL = nullStringValue(imageURL)
	p.RejectionReason = nullStringValue(rejectionReason)
	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}
	return p, nil
}

// Upsert は記事をidで挿入または更新する。
// ON CONFLICTによる単一文で実行するため、同一idへの同時upsertでも重複や更新の消失は起きない。
// (xmax = 0) は挿入された行でのみ真となる。
func (r *PostgresPostRepo) Upsert(ctx context.Context, post *model.Post) (*model.Post, bool, error) {
	var inserted bool
	stored, err := scanPost(r.db.QueryRowContext(ctx,
		`INSERT INTO posts (id, title, content, excerpt, date, author, slug, image_url, source, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')
		 ON CONFLICT (id) DO UPDATE SET
		     title = EXCLUDED.title,
		     content = EXCLUDED.content,
		     excerpt = EXCLUDED.excerpt,
		     date = EXCLUDED.date,
		     author = EXCLUDED.author,
		     slug = EXCLUDED.slug,
		     image_url = EXCLUDED.image_url,
		     source = EXCLUDED.source,
		     updated_at = now()
		 RETURNING `+postColumns+`, (xmax = 0)`,
		post.ID, post.Title, post.Content, post.Excerpt, post.Date, post.Author, post.Slug,
		nullString(post.ImageURL), post.Source,
	), &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("記事のupsertに失敗しました: %w", err)
	}
	return stored, inserted, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return p, nil
}

// FindDisplayableBySlug はslugに一致する表示可能な記事のうち最新のものを取得する。
// slugは一意ではないため、dateの新しいものを優先する。
func (r *PostgresPostRepo) FindDisplayableBySlug(ctx context.Context, slug string) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE slug = $1 AND status IN ('approved', 'published')
		 ORDER BY date DESC, created_at DESC
		 LIMIT 1`, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("slug による記事の検索に失敗しました: %w", err)
	}
	return p, nil
}

// Transition は現在のステータスがfromの場合に限りtoへ遷移させる。
// WHERE句で遷移元を確認する条件付き更新のため、並行する別の遷移と競合しても後勝ちにはならない。
func (r *PostgresPostRepo) Transition(ctx context.Context, id string, from, to model.PostStatus, reason string, publishedAt *time.Time) (*model.Post, error) {
	var rejectionReason sql.NullString
	if to == model.PostStatusRejected {
		rejectionReason = nullString(reason)
	}
	var published sql.NullTime
	if publishedAt != nil {
		published = sql.NullTime{Time: *publishedAt, Valid: true}
	}

	p, err := scanPost(r.db.QueryRowContext(ctx,
		`UPDATE posts SET
		     status = $3,
		     rejection_reason = $4,
		     published_at = COALESCE($5, published_at),
		     updated_at = now()
		 WHERE id = $1 AND status = $2
		 RETURNING `+postColumns,
		id, string(from), string(to), rejectionReason, published,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事のステータス更新に失敗しました: %w", err)
	}
	return p, nil
}

// Delete は指定IDの記事を削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// List はstatusesに含まれる記事を日付の新しい順に返す。
func (r *PostgresPostRepo) List(ctx context.Context, statuses []model.PostStatus, limit int) ([]*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	var args []any

	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		args = append(args, pq.Array(names))
		query += fmt.Sprintf(` WHERE status = ANY($%d)`, len(args))
	}
	query += ` ORDER BY date DESC, created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("記事のスキャンに失敗しました: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の読み出しに失敗しました: %w", err)
	}
	return posts, nil
}

// nullString は空文字列の場合にNULLとなるsql.NullStringを返す。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
