package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/tonsiri/loanbook/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

const loansKey = "loans"

// SQLiteStore keeps the serialized loan collection under a single key in an
// on-device SQLite file. Whole-collection replace is the only write.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and initializes the schema.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS app_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load reads the stored collection. A missing key or an unparseable value
// yields an empty collection, never an error: the worst case for the caller
// is starting from scratch, not failing to start.
func (s *SQLiteStore) Load() ([]models.Loan, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM app_state WHERE key = ?`, loansKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return []models.Loan{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load loans: %w", err)
	}

	var loans []models.Loan
	if err := json.Unmarshal([]byte(raw), &loans); err != nil {
		log.Printf("Stored loan data is unreadable, starting empty: %v", err)
		return []models.Loan{}, nil
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	return loans, nil
}

// Save overwrites the entire persisted collection in a single write.
func (s *SQLiteStore) Save(loans []models.Loan) error {
	raw, err := json.Marshal(loans)
	if err != nil {
		return fmt.Errorf("failed to serialize loans: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		loansKey, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to save loans: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
