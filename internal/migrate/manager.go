// Package migrate applies the SQL schema and seed files under ops/migrations.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/brunoSandoval210/authorization-service/internal/obs"
)

const (
	defaultMigrationsTable = "schema_migrations"
	defaultSeedsTable      = "schema_seeds"

	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// ErrNothingToRollback is returned by Down when no migration is applied.
var ErrNothingToRollback = errors.New("no migrations applied")

// Manager executes SQL migrations and seed files stored on disk. Every file
// runs in its own transaction together with its bookkeeping row.
type Manager struct {
	db              *sql.DB
	sb              squirrel.StatementBuilderType
	migrationsDir   string
	seedsDir        string
	migrationsTable string
	seedsTable      string
	now             func() time.Time
}

type Option func(*Manager)

func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrationsTable = name
		}
	}
}

func WithSeedsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.seedsTable = name
		}
	}
}

func NewManager(db *sql.DB, migrationsDir, seedsDir string, opts ...Option) *Manager {
	m := &Manager{
		db:              db,
		sb:              squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		migrationsDir:   migrationsDir,
		seedsDir:        seedsDir,
		migrationsTable: defaultMigrationsTable,
		seedsTable:      defaultSeedsTable,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies all pending migrations in file name order and returns the
// names it applied.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	return m.applyPending(ctx, m.migrationsDir, upSuffix, m.migrationsTable)
}

// Seed applies seed files that have not run yet.
func (m *Manager) Seed(ctx context.Context) ([]string, error) {
	return m.applyPending(ctx, m.seedsDir, ".sql", m.seedsTable)
}

func (m *Manager) applyPending(ctx context.Context, dir, suffix, table string) ([]string, error) {
	if err := m.ensureTables(ctx); err != nil {
		return nil, err
	}
	executed, err := m.listExecuted(ctx, table)
	if err != nil {
		return nil, err
	}
	files, err := collectSQL(dir, suffix)
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, f := range files {
		if executed[f.Base] {
			continue
		}
		record := m.sb.Insert(table).Columns("name", "applied_at").Values(f.Base, m.now())
		if err := m.exec(ctx, f.Path, record); err != nil {
			return applied, fmt.Errorf("apply %s: %w", f.Base, err)
		}
		obs.WithContext(ctx).Info("sql file applied", zap.String("table", table), zap.String("file", f.Base))
		applied = append(applied, f.Base)
	}
	return applied, nil
}

// Down rolls back the most recent applied migration and returns its name.
func (m *Manager) Down(ctx context.Context) (string, error) {
	if err := m.ensureTables(ctx); err != nil {
		return "", err
	}
	history, err := m.history(ctx)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", ErrNothingToRollback
	}
	last := history[len(history)-1].Name
	downPath := filepath.Join(m.migrationsDir, strings.TrimSuffix(last, upSuffix)+downSuffix)
	if _, err := os.Stat(downPath); err != nil {
		return "", fmt.Errorf("missing down migration for %s", last)
	}
	forget := m.sb.Delete(m.migrationsTable).Where(squirrel.Eq{"name": last})
	if err := m.exec(ctx, downPath, forget); err != nil {
		return "", fmt.Errorf("rollback %s: %w", last, err)
	}
	obs.WithContext(ctx).Info("migration rolled back", zap.String("file", last))
	return last, nil
}

// Entry is one migration as reported by Status.
type Entry struct {
	Name      string
	AppliedAt time.Time
}

// Applied reports whether the migration has run.
func (e Entry) Applied() bool { return !e.AppliedAt.IsZero() }

// Status lists applied migrations in order followed by pending ones.
func (m *Manager) Status(ctx context.Context) ([]Entry, error) {
	if err := m.ensureTables(ctx); err != nil {
		return nil, err
	}
	history, err := m.history(ctx)
	if err != nil {
		return nil, err
	}
	files, err := collectSQL(m.migrationsDir, upSuffix)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(history))
	for _, e := range history {
		seen[e.Name] = true
	}
	for _, f := range files {
		if !seen[f.Base] {
			history = append(history, Entry{Name: f.Base})
		}
	}
	return history, nil
}

func (m *Manager) ensureTables(ctx context.Context) error {
	for _, table := range []string{m.migrationsTable, m.seedsTable} {
		ddl := fmt.Sprintf(`create table if not exists %s (
			name text primary key,
			applied_at timestamptz not null default now()
		)`, table)
		if _, err := m.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure %s: %w", table, err)
		}
	}
	return nil
}

// exec runs every statement in path followed by the bookkeeping statement
// in a single transaction.
func (m *Manager) exec(ctx context.Context, path string, bookkeeping squirrel.Sqlizer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	stmt, args, err := bookkeeping.ToSql()
	if err != nil {
		return fmt.Errorf("build bookkeeping sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Manager) listExecuted(ctx context.Context, table string) (map[string]bool, error) {
	stmt, args, err := m.sb.Select("name").From(table).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result[name] = true
	}
	return result, rows.Err()
}

func (m *Manager) history(ctx context.Context) ([]Entry, error) {
	stmt, args, err := m.sb.Select("name", "applied_at").From(m.migrationsTable).OrderBy("applied_at ASC", "name ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.AppliedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

type sqlFile struct {
	Base string
	Path string
}

func collectSQL(dir, suffix string) ([]sqlFile, error) {
	if dir == "" {
		return nil, nil
	}
	var files []sqlFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		// Down files share the .sql suffix used for seeds.
		if strings.HasSuffix(d.Name(), suffix) && !strings.HasSuffix(d.Name(), downSuffix) {
			files = append(files, sqlFile{Base: d.Name(), Path: path})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Base < files[j].Base
	})
	return files, nil
}

// splitStatements splits a script on semicolons outside string literals
// and drops -- line comments and blank statements.
func splitStatements(script string) []string {
	var (
		stmts     []string
		current   strings.Builder
		inString  bool
		inComment bool
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}
		current.Reset()
	}
	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inComment:
			if r == '\n' {
				inComment = false
				current.WriteRune(r)
			}
		case r == '\'':
			inString = !inString
			current.WriteRune(r)
		case !inString && r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			inComment = true
			i++
		case !inString && r == ';':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return stmts
}
