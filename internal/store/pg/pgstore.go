// Package pg persists the authorization aggregates and the activity log in
// PostgreSQL through database/sql with the pgx driver.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/brunoSandoval210/authorization-service/internal/audit"
	"github.com/brunoSandoval210/authorization-service/internal/auth"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var (
	_ auth.Store  = (*Store)(nil)
	_ audit.Store = (*Store)(nil)
)

type Store struct {
	db  *sql.DB
	sb  squirrel.StatementBuilderType
	now func() time.Time
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{
		db:  db,
		sb:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	return s.db.PingContext(ctx)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func exec(ctx context.Context, q querier, b squirrel.Sqlizer) (sql.Result, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql: %w", err)
	}
	return q.ExecContext(ctx, stmt, args...)
}

func query(ctx context.Context, q querier, b squirrel.Sqlizer) (*sql.Rows, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql: %w", err)
	}
	return q.QueryContext(ctx, stmt, args...)
}

func (s *Store) count(ctx context.Context, table string, where squirrel.Sqlizer) (int64, error) {
	stmt, args, err := s.sb.Select("count(*)").From(table).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count sql: %w", err)
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func window(b squirrel.SelectBuilder, page auth.PageRequest) squirrel.SelectBuilder {
	page = page.Normalize()
	return b.Limit(uint64(page.Size)).Offset(uint64(page.Offset()))
}

// auditValues returns created_at, updated_at, created_by, updated_by for an upsert.
func (s *Store) auditValues(ctx context.Context) []any {
	now := s.now()
	actor := auth.ActorFromContext(ctx)
	return []any{now, now, actor, actor}
}

var auditColumns = []string{"created_at", "updated_at", "created_by", "updated_by"}

// upsertSuffix keeps the creation audit columns and overwrites the rest.
func upsertSuffix(columns ...string) string {
	sets := make([]string, 0, len(columns)+2)
	for _, c := range columns {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	sets = append(sets, "updated_at = EXCLUDED.updated_at", "updated_by = EXCLUDED.updated_by")
	return "ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", ")
}

// likePattern builds a case-insensitive substring pattern with LIKE
// metacharacters escaped.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(term)) + "%"
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// mapWriteError narrows constraint violations to domain errors.
func mapWriteError(err, onUnique, onForeignKey error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			if onUnique != nil {
				return onUnique
			}
			return auth.ErrConflict
		case pgErrForeignKeyViolation:
			if onForeignKey != nil {
				return onForeignKey
			}
			return auth.ErrNotFound
		}
	}
	return err
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
