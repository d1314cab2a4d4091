package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

const personColumns = `chat_id, store_id, display_name, store_name, aliases_json, team, is_active`

// UpsertPerson stores p keyed by its chat id. Active is stored as given.
func (s *Store) UpsertPerson(ctx context.Context, p protocol.Person) error {
	if strings.TrimSpace(p.ChatID) == "" {
		return apperrors.User(apperrors.CodeInvalidInput, "chat id required")
	}
	aliases, err := encodeAliases(p.Aliases)
	if err != nil {
		return dbError(err, "encode aliases")
	}

	now := s.now().Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO people (id, chat_id, store_id, display_name, store_name, aliases_json, team, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			store_id = excluded.store_id,
			display_name = excluded.display_name,
			store_name = excluded.store_name,
			aliases_json = excluded.aliases_json,
			team = excluded.team,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`, uuid.New().String(), p.ChatID, p.StoreID, p.DisplayName, p.StoreName, aliases, p.Team, p.Active, now, now)
	if err != nil {
		return dbError(err, "save person")
	}
	return nil
}

// PersonByChatID looks up an active person by chat id.
func (s *Store) PersonByChatID(ctx context.Context, chatID string) (protocol.Person, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+personColumns+` FROM people WHERE chat_id = ? AND is_active = 1
	`, chatID)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return protocol.Person{}, false, nil
	}
	if err != nil {
		return protocol.Person{}, false, dbError(err, "load person")
	}
	return p, true, nil
}

// ListActive returns active people in directory order.
func (s *Store) ListActive(ctx context.Context) ([]protocol.Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+personColumns+` FROM people WHERE is_active = 1 ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, dbError(err, "list people")
	}
	defer rows.Close()

	var people []protocol.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, dbError(err, "scan person")
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "list people")
	}
	return people, nil
}

// SearchByName returns active people whose display name, store name or an
// alias contains name, ignoring case, in directory order.
func (s *Store) SearchByName(ctx context.Context, name string) ([]protocol.Person, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, nil
	}

	people, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var out []protocol.Person
	for _, p := range people {
		if matches(p, needle) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matches(p protocol.Person, needle string) bool {
	if strings.Contains(strings.ToLower(p.DisplayName), needle) ||
		strings.Contains(strings.ToLower(p.StoreName), needle) {
		return true
	}
	for _, a := range p.Aliases {
		if strings.Contains(strings.ToLower(a), needle) {
			return true
		}
	}
	return false
}

// TeamOf returns the team of the active person with the given store id,
// or "" when unknown.
func (s *Store) TeamOf(ctx context.Context, storeID string) (string, error) {
	var team string
	err := s.db.QueryRowContext(ctx, `
		SELECT team FROM people WHERE store_id = ? AND is_active = 1 ORDER BY created_at, rowid LIMIT 1
	`, storeID).Scan(&team)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", dbError(err, "load team")
	}
	return team, nil
}

// AddAlias adds an alias to a person. Existing aliases are kept once.
func (s *Store) AddAlias(ctx context.Context, chatID, alias string) ([]string, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil, apperrors.User(apperrors.CodeInvalidInput, "alias required")
	}
	return s.editAliases(ctx, chatID, func(aliases []string) []string {
		for _, a := range aliases {
			if strings.EqualFold(a, alias) {
				return aliases
			}
		}
		return append(aliases, alias)
	})
}

// RemoveAlias removes an alias from a person, ignoring case.
func (s *Store) RemoveAlias(ctx context.Context, chatID, alias string) ([]string, error) {
	alias = strings.TrimSpace(alias)
	return s.editAliases(ctx, chatID, func(aliases []string) []string {
		out := aliases[:0]
		for _, a := range aliases {
			if !strings.EqualFold(a, alias) {
				out = append(out, a)
			}
		}
		return out
	})
}

func (s *Store) editAliases(ctx context.Context, chatID string, edit func([]string) []string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbError(err, "begin alias update")
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT aliases_json FROM people WHERE chat_id = ?`, chatID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, apperrors.User(apperrors.CodePersonNotFound, fmt.Sprintf("no person with chat id %q", chatID))
	}
	if err != nil {
		return nil, dbError(err, "load aliases")
	}

	aliases, err := decodeAliases(raw)
	if err != nil {
		return nil, dbError(err, "decode aliases")
	}
	aliases = edit(aliases)

	encoded, err := encodeAliases(aliases)
	if err != nil {
		return nil, dbError(err, "encode aliases")
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE people SET aliases_json = ?, updated_at = ? WHERE chat_id = ?
	`, encoded, s.now().Unix(), chatID); err != nil {
		return nil, dbError(err, "save aliases")
	}
	if err := tx.Commit(); err != nil {
		return nil, dbError(err, "commit aliases")
	}
	return aliases, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (protocol.Person, error) {
	var (
		p       protocol.Person
		aliases string
	)
	if err := row.Scan(&p.ChatID, &p.StoreID, &p.DisplayName, &p.StoreName, &aliases, &p.Team, &p.Active); err != nil {
		return protocol.Person{}, err
	}
	decoded, err := decodeAliases(aliases)
	if err != nil {
		return protocol.Person{}, err
	}
	p.Aliases = decoded
	return p, nil
}

func encodeAliases(aliases []string) (string, error) {
	if aliases == nil {
		aliases = []string{}
	}
	data, err := json.Marshal(aliases)
	return string(data), err
}

func decodeAliases(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var aliases []string
	if err := json.Unmarshal([]byte(raw), &aliases); err != nil {
		return nil, err
	}
	if len(aliases) == 0 {
		return nil, nil
	}
	return aliases, nil
}
