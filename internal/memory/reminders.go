package memory

import (
	"context"

	"github.com/google/uuid"
)

// Reminder kinds.
const (
	KindMorningBriefing = "morning_briefing"
)

// MarkReminded records that a reminder of kind was sent to person about
// ref on day. It returns false when that reminder was already recorded.
func (s *Store) MarkReminded(ctx context.Context, kind, person, ref, day string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO reminder_log (id, kind, person, ref, sent_on)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.New().String(), kind, person, ref, day)
	if err != nil {
		return false, dbError(err, "record reminder")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbError(err, "record reminder")
	}
	return n == 1, nil
}

// WasReminded reports whether MarkReminded already recorded the reminder.
func (s *Store) WasReminded(ctx context.Context, kind, person, ref, day string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reminder_log WHERE kind = ? AND person = ? AND ref = ? AND sent_on = ?
	`, kind, person, ref, day).Scan(&n)
	if err != nil {
		return false, dbError(err, "check reminder")
	}
	return n > 0, nil
}
