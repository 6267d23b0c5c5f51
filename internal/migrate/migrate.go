// Package migrate applies ordered SQL files to PostgreSQL exactly once.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/incosense/incosense/internal/pkg/distlock"
	"github.com/incosense/incosense/internal/pkg/logger"
)

// LockKey names the advisory lock held while migrating.
const LockKey = "incosense:migrations"

// Migration is one SQL file. Version is the file name, which also fixes
// the order.
type Migration struct {
	Version string
	SQL     string
}

// Load reads every *.sql file at the root of fsys in lexical order. Empty
// files are skipped.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Version: e.Name(), SQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Runner applies migrations on one pinned connection.
type Runner struct {
	db  *sql.DB
	log *logger.Logger
}

// NewRunner creates a Runner. log may be nil.
func NewRunner(db *sql.DB, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Default()
	}
	return &Runner{db: db, log: log}
}

// Up applies every migration not yet recorded in schema_migrations, each in
// its own transaction, and returns how many were applied. Concurrent
// runners wait on an advisory lock. The first failure stops the run.
func (r *Runner) Up(ctx context.Context, migrations []Migration) (int, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	lock := distlock.NewPGAdvisoryLock(conn, LockKey)
	if err := lock.Lock(ctx); err != nil {
		return 0, err
	}
	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			r.log.Warn("release migration lock", "error", err)
		}
	}()

	if _, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    text        PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	done, err := appliedVersions(ctx, conn)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if done[m.Version] {
			r.log.Debug("migration already applied", "version", m.Version)
			continue
		}
		if err := apply(ctx, conn, m); err != nil {
			return applied, err
		}
		r.log.Info("migration applied", "version", m.Version)
		applied++
	}
	return applied, nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

func apply(ctx context.Context, conn *sql.Conn, m Migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", m.Version, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply %s: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
		return fmt.Errorf("record %s: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", m.Version, err)
	}
	return nil
}
