// Package sqlstore is the database/sql transcript store shared by the sqlite
// and postgres drivers. Dialects differ only in placeholder syntax.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/storage"
)

// Dialect selects the placeholder style for queries.
type Dialect int

const (
	// Question uses "?" placeholders (sqlite).
	Question Dialect = iota

	// Dollar uses "$1" placeholders (postgres).
	Dollar
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS turns (
		stream_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		provider TEXT NOT NULL,
		prompt TEXT NOT NULL,
		response TEXT NOT NULL,
		finish_reason TEXT NOT NULL,
		usage TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS turns_session_idx ON turns (session_id, created_at)`,
}

// Driver implements storage.Driver over a *sql.DB.
type Driver struct {
	DB      *sql.DB
	dialect Dialect
}

// New wraps db and creates the schema if it does not exist yet.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	d := &Driver{DB: db, dialect: dialect}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return d, nil
}

// rebind rewrites "?" placeholders for the driver's dialect.
func (d *Driver) rebind(query string) string {
	if d.dialect != Dollar {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *Driver) ClaimSession(ctx context.Context, sessionID, user string) (string, error) {
	_, err := d.DB.ExecContext(ctx,
		d.rebind(`INSERT INTO sessions (id, owner, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`),
		sessionID, user, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to claim session: %w", err)
	}
	return d.Owner(ctx, sessionID)
}

func (d *Driver) Owner(ctx context.Context, sessionID string) (string, error) {
	var owner string
	err := d.DB.QueryRowContext(ctx, d.rebind(`SELECT owner FROM sessions WHERE id = ?`), sessionID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.NotFoundError{SessionID: sessionID}
	}
	if err != nil {
		return "", fmt.Errorf("failed to query session owner: %w", err)
	}
	return owner, nil
}

func (d *Driver) SaveTurn(ctx context.Context, turn *llm.ConversationTurn) error {
	if turn == nil {
		return errors.New("cannot store nil turn")
	}

	prompt, err := json.Marshal(turn.Prompt)
	if err != nil {
		return fmt.Errorf("failed to marshal prompt: %w", err)
	}
	response, err := json.Marshal(turn.Response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	var usage sql.NullString
	if turn.Usage != nil {
		u, err := json.Marshal(turn.Usage)
		if err != nil {
			return fmt.Errorf("failed to marshal usage: %w", err)
		}
		usage = sql.NullString{String: string(u), Valid: true}
	}

	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = d.DB.ExecContext(ctx, d.rebind(`
		INSERT INTO turns (stream_id, session_id, user_name, provider, prompt, response, finish_reason, usage, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (stream_id) DO UPDATE SET
			response = excluded.response,
			finish_reason = excluded.finish_reason,
			usage = excluded.usage`),
		turn.StreamID, turn.SessionID, turn.User, turn.Provider,
		string(prompt), string(response), turn.FinishReason, usage, createdAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

func (d *Driver) History(ctx context.Context, sessionID string) ([]*llm.ConversationTurn, error) {
	rows, err := d.DB.QueryContext(ctx, d.rebind(`
		SELECT stream_id, session_id, user_name, provider, prompt, response, finish_reason, usage, created_at
		FROM turns WHERE session_id = ? ORDER BY created_at`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []*llm.ConversationTurn
	for rows.Next() {
		var (
			t                llm.ConversationTurn
			prompt, response string
			usage            sql.NullString
			createdAt        int64
		)
		if err := rows.Scan(&t.StreamID, &t.SessionID, &t.User, &t.Provider,
			&prompt, &response, &t.FinishReason, &usage, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(prompt), &t.Prompt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prompt: %w", err)
		}
		if err := json.Unmarshal([]byte(response), &t.Response); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if usage.Valid {
			t.Usage = &llm.Usage{}
			if err := json.Unmarshal([]byte(usage.String), t.Usage); err != nil {
				return nil, fmt.Errorf("failed to unmarshal usage: %w", err)
			}
		}
		t.CreatedAt = time.Unix(0, createdAt)
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.DB.Close()
}
