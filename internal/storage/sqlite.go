package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database holding debates, bets, balances and events
type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs the typed statements either inside a transaction or directly
// against the database for read-only views.
type Queries struct {
	q querier
}

// Open initializes the SQLite database connection with WAL mode and runs migrations
func Open(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		absPath, err := filepath.Abs(dbPath)
		if err != nil {
			return nil, err
		}
		dsn = absPath
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Queries returns a non-transactional handle for reads
func (s *Store) Queries() *Queries {
	return &Queries{q: s.db}
}

// InTx runs fn inside a serializable transaction. The transaction commits only
// when fn returns nil; any error rolls back every statement fn executed.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Queries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// runMigrations creates the necessary tables
func (s *Store) runMigrations() error {
	debatesTable := `
		CREATE TABLE IF NOT EXISTS debates (
			id INTEGER PRIMARY KEY,
			agent_a INTEGER NOT NULL,
			agent_b INTEGER NOT NULL,
			fee_bps INTEGER NOT NULL,
			public_ts INTEGER NOT NULL,
			start_ts INTEGER NOT NULL,
			duration INTEGER NOT NULL,
			state TEXT NOT NULL DEFAULT 'CREATED',
			winner INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)
	`

	betsTable := `
		CREATE TABLE IF NOT EXISTS bets (
			debate_id INTEGER NOT NULL,
			user TEXT NOT NULL,
			agent_id INTEGER NOT NULL,
			amount TEXT NOT NULL DEFAULT '0',
			refunded INTEGER NOT NULL DEFAULT 0,
			claimed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (debate_id, user, agent_id),
			FOREIGN KEY (debate_id) REFERENCES debates(id)
		)
	`

	bettorsTable := `
		CREATE TABLE IF NOT EXISTS bettors (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			debate_id INTEGER NOT NULL,
			user TEXT NOT NULL,
			UNIQUE (debate_id, user),
			FOREIGN KEY (debate_id) REFERENCES debates(id)
		)
	`

	treasuryTable := `
		CREATE TABLE IF NOT EXISTS treasury (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			balance TEXT NOT NULL DEFAULT '0'
		)
	`

	walletsTable := `
		CREATE TABLE IF NOT EXISTS wallets (
			address TEXT PRIMARY KEY,
			balance TEXT NOT NULL DEFAULT '0'
		)
	`

	transfersTable := `
		CREATE TABLE IF NOT EXISTS transfers (
			id TEXT PRIMARY KEY,
			debate_id INTEGER NOT NULL DEFAULT 0,
			from_addr TEXT NOT NULL,
			to_addr TEXT NOT NULL,
			amount TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)
	`

	eventsTable := `
		CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			kind TEXT NOT NULL,
			debate_id INTEGER NOT NULL DEFAULT 0,
			user TEXT NOT NULL DEFAULT '',
			agent_id INTEGER NOT NULL DEFAULT 0,
			amount TEXT NOT NULL DEFAULT '0',
			created_at INTEGER NOT NULL
		)
	`

	// Create indexes for better query performance
	createIndexes := `
		CREATE INDEX IF NOT EXISTS idx_debates_state ON debates(state);
		CREATE INDEX IF NOT EXISTS idx_bettors_debate_id ON bettors(debate_id);
		CREATE INDEX IF NOT EXISTS idx_transfers_debate_id ON transfers(debate_id);
		CREATE INDEX IF NOT EXISTS idx_events_debate_id ON events(debate_id);
	`

	seedTreasury := `INSERT OR IGNORE INTO treasury (id, balance) VALUES (1, '0')`

	for _, stmt := range []string{
		debatesTable,
		betsTable,
		bettorsTable,
		treasuryTable,
		walletsTable,
		transfersTable,
		eventsTable,
		createIndexes,
		seedTreasury,
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// formatAmount encodes a wei amount for a TEXT column
func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// parseAmount decodes a wei amount read from a TEXT column
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stored amount %q", s)
	}
	return v, nil
}

// parseAddress decodes an address column; empty columns yield the zero address
func parseAddress(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
