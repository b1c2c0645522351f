package saga

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/sentinel"
	"github.com/InteriMed/Medishift-sub005/pkg/platform/tx"
)

const schema = `
CREATE TABLE IF NOT EXISTS intent_logs (
	intent_id    TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	actor        TEXT NOT NULL DEFAULT '',
	payload_json TEXT NOT NULL DEFAULT '{}',
	status       TEXT NOT NULL DEFAULT 'pending',
	attempts     INTEGER NOT NULL DEFAULT 0,
	failed_step  TEXT NOT NULL DEFAULT '',
	last_error   TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_intent_logs_status ON intent_logs(status, created_at);

CREATE TABLE IF NOT EXISTS intent_steps (
	intent_id TEXT NOT NULL REFERENCES intent_logs(intent_id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	step_key  TEXT NOT NULL,
	status    TEXT NOT NULL DEFAULT 'pending',
	PRIMARY KEY (intent_id, step_key)
);
`

// OpenSQLite opens the intent log at path with WAL and a single writer and
// applies the schema.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open intent log: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate intent log: %w", err)
	}
	return db, nil
}

// SQLiteStore persists intents in intent_logs and intent_steps.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Create(ctx context.Context, intent Intent) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.ExecutorFor(ctx, s.db)
		const q = `INSERT INTO intent_logs (intent_id, kind, actor, payload_json, status, attempts, failed_step, last_error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(intent_id) DO NOTHING`
		res, err := exec.ExecContext(ctx, q,
			intent.ID.String(),
			intent.Kind,
			intent.Actor.String(),
			string(intent.Payload),
			string(intent.Status),
			intent.Attempts,
			intent.FailedStep,
			intent.LastError,
			intent.CreatedAt.UnixNano(),
			intent.UpdatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert intent: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("intent %s: %w", intent.ID, sentinel.ErrConflict)
		}
		for seq, step := range intent.Steps {
			if _, err := exec.ExecContext(ctx,
				`INSERT INTO intent_steps (intent_id, seq, step_key, status) VALUES (?, ?, ?, ?)`,
				intent.ID.String(), seq, step.Key, string(step.Status),
			); err != nil {
				return fmt.Errorf("insert intent step: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Get(ctx context.Context, intentID id.IntentID) (Intent, error) {
	const q = `SELECT intent_id, kind, actor, payload_json, status, attempts, failed_step, last_error, created_at, updated_at
FROM intent_logs WHERE intent_id = ?`
	intent, err := scanIntent(tx.ExecutorFor(ctx, s.db).QueryRowContext(ctx, q, intentID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return Intent{}, fmt.Errorf("intent %s: %w", intentID, sentinel.ErrNotFound)
	}
	if err != nil {
		return Intent{}, fmt.Errorf("get intent: %w", err)
	}
	if intent.Steps, err = s.steps(ctx, intentID); err != nil {
		return Intent{}, err
	}
	return intent, nil
}

func (s *SQLiteStore) Save(ctx context.Context, intent Intent) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.ExecutorFor(ctx, s.db)
		const q = `UPDATE intent_logs SET status = ?, attempts = ?, failed_step = ?, last_error = ?, updated_at = ?
WHERE intent_id = ?`
		res, err := exec.ExecContext(ctx, q,
			string(intent.Status),
			intent.Attempts,
			intent.FailedStep,
			intent.LastError,
			intent.UpdatedAt.UnixNano(),
			intent.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("update intent: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("check rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("intent %s: %w", intent.ID, sentinel.ErrNotFound)
		}
		for _, step := range intent.Steps {
			if _, err := exec.ExecContext(ctx,
				`UPDATE intent_steps SET status = ? WHERE intent_id = ? AND step_key = ?`,
				string(step.Status), intent.ID.String(), step.Key,
			); err != nil {
				return fmt.Errorf("update intent step: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListPending(ctx context.Context) ([]Intent, error) {
	const q = `SELECT intent_id, kind, actor, payload_json, status, attempts, failed_step, last_error, created_at, updated_at
FROM intent_logs WHERE status = ? ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, q, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending intents: %w", err)
	}
	var intents []Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan intent: %w", err)
		}
		intents = append(intents, intent)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Steps are loaded after the cursor is closed; the pool has one connection.
	for i := range intents {
		if intents[i].Steps, err = s.steps(ctx, intents[i].ID); err != nil {
			return nil, err
		}
	}
	return intents, nil
}

func (s *SQLiteStore) steps(ctx context.Context, intentID id.IntentID) ([]Step, error) {
	rows, err := tx.ExecutorFor(ctx, s.db).QueryContext(ctx,
		`SELECT step_key, status FROM intent_steps WHERE intent_id = ? ORDER BY seq ASC`, intentID.String())
	if err != nil {
		return nil, fmt.Errorf("list intent steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var st Step
		var status string
		if err := rows.Scan(&st.Key, &status); err != nil {
			return nil, fmt.Errorf("scan intent step: %w", err)
		}
		st.Status = StepStatus(status)
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIntent(row scanner) (Intent, error) {
	var (
		intent           Intent
		rawID, actor     string
		payload, status  string
		created, updated int64
	)
	if err := row.Scan(&rawID, &intent.Kind, &actor, &payload, &status, &intent.Attempts,
		&intent.FailedStep, &intent.LastError, &created, &updated); err != nil {
		return Intent{}, err
	}
	u, err := uuid.Parse(rawID)
	if err != nil {
		return Intent{}, fmt.Errorf("parse intent id: %w", err)
	}
	intent.ID = id.IntentID(u)
	intent.Actor = id.PrincipalID(actor)
	intent.Payload = []byte(payload)
	intent.Status = Status(status)
	intent.CreatedAt = time.Unix(0, created).UTC()
	intent.UpdatedAt = time.Unix(0, updated).UTC()
	return intent, nil
}
