package memory

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/paimy-ai/paimy/internal/conversation"
)

// ThreadKey identifies a conversation thread.
type ThreadKey struct {
	Thread  string
	Channel string
	User    string
}

// GetOrCreateContext returns the stored context of a thread. Unknown and
// expired threads get a fresh context, which is persisted.
func (s *Store) GetOrCreateContext(ctx context.Context, key ThreadKey) (conversation.Context, error) {
	var (
		raw     string
		expires int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT context_json, expires_at FROM conversation_context WHERE thread_key = ?
	`, key.Thread).Scan(&raw, &expires)

	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return conversation.Context{}, dbError(err, "load conversation context")
	case expires > s.now().Unix():
		var c conversation.Context
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return conversation.Context{}, dbError(err, "decode conversation context")
		}
		return c, nil
	}

	fresh := conversation.Context{Version: conversation.Version}
	if err := s.UpdateContext(ctx, key, fresh); err != nil {
		return conversation.Context{}, err
	}
	return fresh, nil
}

// UpdateContext stores c for the thread and extends its expiry. The
// caller merges deltas beforehand; the stored value is replaced.
func (s *Store) UpdateContext(ctx context.Context, key ThreadKey, c conversation.Context) error {
	c.Version = conversation.Version
	raw, err := json.Marshal(c)
	if err != nil {
		return dbError(err, "encode conversation context")
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_context (id, thread_key, channel_id, user_id, context_json, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_key) DO UPDATE SET
			context_json = excluded.context_json,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`, uuid.New().String(), key.Thread, key.Channel, key.User, string(raw),
		now.Unix(), now.Unix(), now.Add(s.contextTTL).Unix())
	if err != nil {
		return dbError(err, "save conversation context")
	}
	return nil
}

// PurgeExpired deletes expired contexts and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM conversation_context WHERE expires_at <= ?
	`, s.now().Unix())
	if err != nil {
		return 0, dbError(err, "purge conversation contexts")
	}
	return res.RowsAffected()
}
