package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/richardwooding/feed-rss/model"
)

const nodesSchema = `CREATE TABLE IF NOT EXISTS nodes (
	id          INTEGER PRIMARY KEY,
	parent_id   INTEGER NOT NULL DEFAULT 0,
	name        TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	create_date TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT ''
)`

const nodesParentIndex = `CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id)`

const selectNodes = `SELECT id, parent_id, name, url, create_date, description, content FROM nodes`

// SQLiteSource reads content nodes from a SQLite database.
type SQLiteSource struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and ensures the nodes
// table exists.
func OpenSQLite(path string) (*SQLiteSource, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, databaseError("open_database", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, databaseError("open_database", path, err)
	}

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", nodesSchema, nodesParentIndex} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, databaseError("migrate_database", path, err)
		}
	}

	model.DebugLogWithContext("database opened", "sqlite_source", "open_database", path, nil)
	return &SQLiteSource{db: db, path: path}, nil
}

// OpenExistingSQLite opens the database at path like OpenSQLite but fails
// with a not_found error when the file does not exist, so a mistyped path
// does not silently yield an empty database.
func OpenExistingSQLite(path string) (*SQLiteSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.NewFeedErrorWithCause(model.ErrorTypeNotFound, "database file does not exist", err).
				WithURL(path).
				WithOperation("open_database").
				WithComponent("sqlite_source")
		}
		return nil, databaseError("open_database", path, err)
	}
	if info.IsDir() {
		return nil, databaseError("open_database", path, fmt.Errorf("%s is a directory", path))
	}
	return OpenSQLite(path)
}

// Close closes the database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Put inserts or replaces nodes in a single transaction.
func (s *SQLiteSource) Put(ctx context.Context, nodes ...*model.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return databaseError("put_nodes", s.path, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO nodes
		(id, parent_id, name, url, create_date, description, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return databaseError("put_nodes", s.path, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, n := range nodes {
		if n == nil {
			continue
		}
		_, err := stmt.ExecContext(ctx, n.Key, n.ParentKey, n.Title, n.Location,
			n.Created.UTC().Format(time.RFC3339Nano), n.Teaser, n.HTML)
		if err != nil {
			return databaseError("put_nodes", s.path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return databaseError("put_nodes", s.path, err)
	}
	return nil
}

// All returns every node.
func (s *SQLiteSource) All(ctx context.Context) ([]*model.Node, error) {
	return s.query(ctx, "all_nodes", selectNodes+` ORDER BY create_date DESC, id`)
}

// Children returns the direct children of the node with parentID.
func (s *SQLiteSource) Children(ctx context.Context, parentID int64) ([]*model.Node, error) {
	return s.query(ctx, "child_nodes", selectNodes+` WHERE parent_id = ? ORDER BY create_date DESC, id`, parentID)
}

func (s *SQLiteSource) query(ctx context.Context, operation, query string, args ...any) ([]*model.Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, databaseError(operation, s.path, err)
	}
	defer func() { _ = rows.Close() }()

	nodes := []*model.Node{}
	for rows.Next() {
		var (
			n       model.Node
			created string
		)
		if err := rows.Scan(&n.Key, &n.ParentKey, &n.Title, &n.Location, &created, &n.Teaser, &n.HTML); err != nil {
			return nil, databaseError(operation, s.path, err)
		}
		n.Created, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, databaseError(operation, s.path, fmt.Errorf("node %d: create_date %q: %w", n.Key, created, err))
		}
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, databaseError(operation, s.path, err)
	}
	return nodes, nil
}

func databaseError(operation, path string, err error) *model.FeedError {
	return model.NewFeedErrorWithCause(model.ErrorTypeDatabase, "database operation failed", err).
		WithURL(path).
		WithOperation(operation).
		WithComponent("sqlite_source")
}
