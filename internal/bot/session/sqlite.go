package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prasadmotors/dealerbot/internal/bot/storage"
)

// SQLiteStore persists sessions in the dealerbot SQLite database.
// Slot maps and the explicit-choice set are stored as JSON columns; the
// sessions table is created by migration 0001_init.sql.
type SQLiteStore struct {
	db *storage.DB
}

// NewSQLiteStore returns a Store backed by the application database.
func NewSQLiteStore(db *storage.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get loads the session for channelID.
func (s *SQLiteStore) Get(ctx context.Context, channelID string) (*Session, error) {
	var (
		sess          Session
		slotsJSON     string
		choicesJSON   string
		pendingJSON   sql.NullString
		flow, step    string
		ended         int
	)
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT channel_id, flow, step, slots, explicit_choices, pending,
		       conversation_ended, created_at, updated_at
		FROM sessions
		WHERE channel_id = ?
	`, channelID).Scan(
		&sess.ChannelID, &flow, &step, &slotsJSON, &choicesJSON, &pendingJSON,
		&ended, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get %q: %w", channelID, err)
	}

	sess.Flow = Flow(flow)
	sess.Step = Step(step)
	sess.ConversationEnded = ended != 0

	if err := json.Unmarshal([]byte(slotsJSON), &sess.Slots); err != nil {
		return nil, fmt.Errorf("session: decode slots for %q: %w", channelID, err)
	}
	var choices []string
	if err := json.Unmarshal([]byte(choicesJSON), &choices); err != nil {
		return nil, fmt.Errorf("session: decode explicit choices for %q: %w", channelID, err)
	}
	sess.ExplicitChoices = make(map[string]bool, len(choices))
	for _, c := range choices {
		sess.ExplicitChoices[c] = true
	}
	if pendingJSON.Valid && pendingJSON.String != "" {
		var p PendingConfirmation
		if err := json.Unmarshal([]byte(pendingJSON.String), &p); err != nil {
			return nil, fmt.Errorf("session: decode pending for %q: %w", channelID, err)
		}
		sess.Pending = &p
	}
	if sess.Slots == nil {
		sess.Slots = make(map[string]string)
	}

	return &sess, nil
}

// Put upserts the session row.
func (s *SQLiteStore) Put(ctx context.Context, sess *Session) error {
	slotsJSON, err := json.Marshal(sess.Slots)
	if err != nil {
		return fmt.Errorf("session: encode slots: %w", err)
	}
	choices := make([]string, 0, len(sess.ExplicitChoices))
	for name, set := range sess.ExplicitChoices {
		if set {
			choices = append(choices, name)
		}
	}
	choicesJSON, err := json.Marshal(choices)
	if err != nil {
		return fmt.Errorf("session: encode explicit choices: %w", err)
	}
	var pendingJSON sql.NullString
	if sess.Pending != nil {
		p, err := json.Marshal(sess.Pending)
		if err != nil {
			return fmt.Errorf("session: encode pending: %w", err)
		}
		pendingJSON = sql.NullString{String: string(p), Valid: true}
	}

	ended := 0
	if sess.ConversationEnded {
		ended = 1
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	_, err = s.db.Conn().ExecContext(ctx, `
		INSERT INTO sessions (channel_id, flow, step, slots, explicit_choices,
		                      pending, conversation_ended, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			flow               = excluded.flow,
			step               = excluded.step,
			slots              = excluded.slots,
			explicit_choices   = excluded.explicit_choices,
			pending            = excluded.pending,
			conversation_ended = excluded.conversation_ended,
			updated_at         = excluded.updated_at
	`, sess.ChannelID, string(sess.Flow), string(sess.Step), string(slotsJSON),
		string(choicesJSON), pendingJSON, ended, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("session: put %q: %w", sess.ChannelID, err)
	}
	return nil
}
