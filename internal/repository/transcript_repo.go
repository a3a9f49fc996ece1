package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/folio/internal/domain"
)

// TranscriptRepository handles transcript persistence
type TranscriptRepository struct {
	db *DB
}

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(db *DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Create stores a new transcript
func (r *TranscriptRepository) Create(ctx context.Context, t *domain.Transcript) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, session_id, user_message, bot_response, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.ID, nullString(t.SessionID), t.UserMessage, t.BotResponse, t.CreatedAt)

	return err
}

// ListBySession retrieves the transcripts of a session in insertion order
func (r *TranscriptRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Transcript, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, user_message, bot_response, created_at
		FROM transcripts WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transcripts []*domain.Transcript
	for rows.Next() {
		t := &domain.Transcript{}
		var session sql.NullString

		if err := rows.Scan(&t.ID, &session, &t.UserMessage, &t.BotResponse, &t.CreatedAt); err != nil {
			return nil, err
		}
		if session.Valid {
			t.SessionID = session.String
		}
		transcripts = append(transcripts, t)
	}

	return transcripts, rows.Err()
}

// Count returns the total number of logged exchanges
func (r *TranscriptRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts`).Scan(&count)
	return count, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
