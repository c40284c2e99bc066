package assessment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL.
// Inputs and verdicts are stored as JSONB documents.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed Store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping reports whether the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Add inserts a new record into the database
func (s *PostgresStore) Add(ctx context.Context, rec *Record) error {
	return insertRecord(ctx, s.db, rec)
}

// AddBatch inserts all records in one transaction
func (s *PostgresStore) AddBatch(ctx context.Context, recs []*Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, rec := range recs {
		if err := insertRecord(ctx, tx, rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertRecord(ctx context.Context, ex execer, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	input, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	verdict, err := json.Marshal(rec.Verdict)
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}

	var levelCode string
	if rec.Verdict != nil {
		levelCode = string(rec.Verdict.LevelCode)
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO assessments (id, level_code, input, verdict, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, levelCode, input, verdict, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert assessment: %w", err)
	}

	return nil
}

// Get retrieves a record by ID
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, input, verdict, created_at
		FROM assessments
		WHERE id = $1
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	return rec, nil
}

// ListRecent returns up to limit records, newest first
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		return []*Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, input, verdict, created_at
		FROM assessments
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assessments: %w", err)
	}

	return records, nil
}

// Delete removes a record from the database
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM assessments
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec     Record
		input   []byte
		verdict []byte
	)
	if err := row.Scan(&rec.ID, &input, &verdict, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(input, &rec.Input); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	if err := json.Unmarshal(verdict, &rec.Verdict); err != nil {
		return nil, fmt.Errorf("failed to decode verdict: %w", err)
	}
	return &rec, nil
}
