// Package posts provides PostgreSQL-backed storage for blog posts and the
// paginated, searchable listing query.
package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

const postColumns = `id, title, date, category, excerpt, image, tags`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostgresRepository implements post storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns posts newest first together with the total number of matches.
// Unpaged params select everything. A search term matches titles
// case-insensitively as a literal substring. An out-of-range page yields no
// rows but still reports the total.
func (r *PostgresRepository) List(ctx context.Context, params models.ListParams) ([]models.Post, int, error) {
	if !params.Paged {
		query := `SELECT ` + postColumns + ` FROM posts ORDER BY id DESC`
		items, err := r.query(ctx, query)
		if err != nil {
			return nil, 0, err
		}
		return items, len(items), nil
	}

	var where string
	var args []any
	if params.Search != "" {
		where = ` WHERE title ILIKE $1 ESCAPE '\'`
		args = append(args, "%"+likeEscaper.Replace(params.Search)+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	if !params.InRange() || total == 0 {
		return []models.Post{}, total, nil
	}

	query := `SELECT ` + postColumns + ` FROM posts` + where +
		fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, params.PerPage, params.Offset())

	items, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select posts: %w", err)
	}
	defer rows.Close()

	result := []models.Post{}
	for rows.Next() {
		item, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	var image sql.NullString
	if err := row.Scan(&p.ID, &p.Title, &p.Date, &p.Category, &p.Excerpt, &image, &p.Tags); err != nil {
		return nil, err
	}
	if image.Valid {
		p.Image = &image.String
	}
	if p.Tags == nil {
		p.Tags = models.Tags{}
	}
	return &p, nil
}

// Get returns a single post or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	p, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// Create inserts post and sets its generated ID.
func (r *PostgresRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	query := `
		INSERT INTO posts (title, date, category, excerpt, image, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		post.Title, post.Date, post.Category, post.Excerpt, post.Image, post.Tags).Scan(&post.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if post.Tags == nil {
		post.Tags = models.Tags{}
	}
	return post, nil
}

// Update applies patch to the stored post and writes every column back.
// Run it inside a transaction to keep the read and the write together.
func (r *PostgresRepository) Update(ctx context.Context, id int64, patch models.PostPatch) (*models.Post, error) {
	post, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(post)

	query := `
		UPDATE posts
		SET title = $1, date = $2, category = $3, excerpt = $4, image = $5, tags = $6
		WHERE id = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		post.Title, post.Date, post.Category, post.Excerpt, post.Image, post.Tags, post.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}
	return post, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
