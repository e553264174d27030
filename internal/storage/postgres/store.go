// Package postgres keeps transcripts and the question bank in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spigell/interview-coach/internal/storage"
	"github.com/spigell/interview-coach/internal/transcript"
)

// Schema creates the tables used by Store. It is safe to apply repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS questions (
    id         BIGSERIAL PRIMARY KEY,
    position   INTEGER NOT NULL DEFAULT 0,
    text       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS interview_transcripts (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    company    TEXT NOT NULL,
    user_id    TEXT NOT NULL DEFAULT '',
    questions  JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_interview_transcripts_created ON interview_transcripts(created_at DESC);
`

// DB is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db   DB
	pool *pgxpool.Pool
	now  func() time.Time
}

var (
	_ storage.TranscriptStore = (*Store)(nil)
	_ storage.QuestionBank    = (*Store)(nil)
	_ storage.Seeder          = (*Store)(nil)
	_ storage.Pinger          = (*Store)(nil)
)

// New wraps an existing connection. Call Migrate before the first query.
func New(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open connects a pool to dsn, verifies the connection and applies Schema.
func Open(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	s := New(pool)
	s.pool = pool
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

// Ping runs a trivial query, like the connectivity check of the old test-db route.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Close releases the pool opened by Open. It does nothing for stores built
// with New.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Save(ctx context.Context, submission transcript.Submission) (*transcript.Transcript, error) {
	tr, err := storage.NewTranscript(submission, s.now())
	if err != nil {
		return nil, err
	}

	records, err := json.Marshal(tr.Questions)
	if err != nil {
		return nil, fmt.Errorf("postgres store: marshal questions: %w", err)
	}

	const query = `
		INSERT INTO interview_transcripts (id, name, company, user_id, questions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err = s.db.QueryRow(ctx, query,
		tr.ID, tr.Name, tr.Company, tr.UserID, records, tr.CreatedAt,
	).Scan(&tr.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres store: insert transcript: %w", err)
	}
	tr.CreatedAt = tr.CreatedAt.UTC()
	return tr, nil
}

const selectTranscript = `
	SELECT id, name, company, user_id, questions, created_at
	FROM interview_transcripts`

func (s *Store) List(ctx context.Context) ([]*transcript.Transcript, error) {
	rows, err := s.db.Query(ctx, selectTranscript+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list transcripts: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*transcript.Transcript, error) {
		return scanTranscript(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list transcripts: %w", err)
	}
	return items, nil
}

func (s *Store) Get(ctx context.Context, id string) (*transcript.Transcript, error) {
	tr, err := scanTranscript(s.db.QueryRow(ctx, selectTranscript+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres store: get transcript %q: %w", id, err)
	}
	return tr, nil
}

func scanTranscript(row pgx.Row) (*transcript.Transcript, error) {
	var (
		tr      transcript.Transcript
		records []byte
	)
	if err := row.Scan(&tr.ID, &tr.Name, &tr.Company, &tr.UserID, &records, &tr.CreatedAt); err != nil {
		return nil, err
	}
	tr.Questions = []transcript.Record{}
	if len(records) > 0 {
		if err := json.Unmarshal(records, &tr.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
	}
	tr.CreatedAt = tr.CreatedAt.UTC()
	return &tr, nil
}

// Questions returns the bank in insertion order.
func (s *Store) Questions(ctx context.Context) ([]transcript.Question, error) {
	rows, err := s.db.Query(ctx, `SELECT id::text, text FROM questions ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list questions: %w", err)
	}

	qs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (transcript.Question, error) {
		var q transcript.Question
		err := row.Scan(&q.ID, &q.Text)
		return q, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list questions: %w", err)
	}
	return qs, nil
}

// Seed replaces the question bank with texts, keeping their order.
func (s *Store) Seed(ctx context.Context, texts []string) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM questions`)
	position := 0
	for _, text := range texts {
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		batch.Queue(`INSERT INTO questions (position, text) VALUES ($1, $2)`, position, text)
		position++
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: seed questions: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres store: seed questions: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: seed questions: %w", err)
	}
	return nil
}

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

func (s *Store) begin(ctx context.Context) (pgx.Tx, error) {
	b, ok := s.db.(beginner)
	if !ok {
		return nil, errors.New("connection does not support transactions")
	}
	return b.Begin(ctx)
}
