package journal

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists journal events in an INSERT-only table.
//
// Schema (call_journal):
//   id TEXT PRIMARY KEY, type TEXT NOT NULL, room TEXT, phone TEXT NOT NULL,
//   medicine TEXT, dispatch_id TEXT, message TEXT, metadata TEXT,
//   created_at TIMESTAMPTZ NOT NULL
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) (*PostgresRepo, error) {
	if db == nil {
		return nil, errors.New("journal: db is nil")
	}
	return &PostgresRepo{db: db}, nil
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO call_journal (id, type, room, phone, medicine, dispatch_id, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, string(e.Type), e.Room, e.Phone, e.Medicine, e.DispatchID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, from, to time.Time) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, room, phone, medicine, dispatch_id, message, metadata, created_at
		FROM call_journal
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.Room, &e.Phone, &e.Medicine, &e.DispatchID, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
