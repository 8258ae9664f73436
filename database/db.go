package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/korjavin/mathpracticebot/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB handles all database operations
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and applies pending migrations
func New(ctx context.Context, dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := otelsql.Open("sqlite3", dbPath, otelsql.WithAttributes(
		attribute.String("db.system", "sqlite"),
	))
	if err != nil {
		return nil, err
	}

	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// migrate brings the schema up to date with the embedded migrations
func migrate(ctx context.Context, conn *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveAttempt records a submitted answer
func (db *DB) SaveAttempt(ctx context.Context, a models.Attempt) error {
	if a.Timestamp == 0 {
		a.Timestamp = time.Now().Unix()
	}
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO attempts (id, owner, action, answer, success, redirect_to, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.Owner, a.Action, a.Answer, a.Success, a.RedirectTo, a.Timestamp,
	)
	return err
}

// GetStats counts the correct and incorrect attempts of an owner
func (db *DB) GetStats(ctx context.Context, owner string) (models.Stats, error) {
	var stats models.Stats
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0)
		FROM attempts
		WHERE owner = ?`,
		owner,
	).Scan(&stats.Correct, &stats.Incorrect)
	return stats, err
}

// GetMostMissedProblems returns the problems an owner answered wrong most often
func (db *DB) GetMostMissedProblems(ctx context.Context, owner string, limit int) ([]models.ProblemMisses, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT action, COUNT(*) AS misses
		FROM attempts
		WHERE owner = ? AND NOT success
		GROUP BY action
		ORDER BY misses DESC, action ASC
		LIMIT ?`,
		owner, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ProblemMisses
	for rows.Next() {
		var m models.ProblemMisses
		if err := rows.Scan(&m.Action, &m.Misses); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// GetRecentAttempts returns the latest attempts of an owner, newest first
func (db *DB) GetRecentAttempts(ctx context.Context, owner string, limit int) ([]models.Attempt, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, owner, action, answer, success, redirect_to, timestamp
		FROM attempts
		WHERE owner = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?`,
		owner, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Attempt
	for rows.Next() {
		var a models.Attempt
		if err := rows.Scan(&a.ID, &a.Owner, &a.Action, &a.Answer, &a.Success, &a.RedirectTo, &a.Timestamp); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// SaveLocation remembers the page an owner is on
func (db *DB) SaveLocation(ctx context.Context, owner, url string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO locations (owner, url, updated_at) VALUES (?, ?, ?)",
		owner, url, time.Now().Unix(),
	)
	return err
}

// GetLocation returns the saved page of an owner, or "" when there is none
func (db *DB) GetLocation(ctx context.Context, owner string) (string, error) {
	var url string
	err := db.conn.QueryRowContext(ctx,
		"SELECT url FROM locations WHERE owner = ?",
		owner,
	).Scan(&url)

	if err == sql.ErrNoRows {
		return "", nil // Nothing saved yet
	}
	return url, err
}
