// Package session persists the operator's gateway session and UI
// preferences in a local SQLite database. The dashboard server never
// holds a session; each client keeps its own store and attaches the
// credentials to every request it makes.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cellgate/cellgate/internal/proxy"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// ErrNotAuthenticated is returned by Headers when no complete credential
// set is stored.
var ErrNotAuthenticated = errors.New("no active gateway session")

// Store keys. Credentials are written and cleared together; preferences
// live independently and survive logout.
const (
	keyToken      = "auth_token"
	keyGatewayIP  = "gateway_ip"
	keyUsername   = "username"
	keyExpiration = "token_expiration"

	keyRememberedUsername = "remembered_username"
	keyTheme              = "theme"
	keySidebarPinned      = "sidebar_pinned"
)

// Credentials is the complete session a login produces. All four fields
// are stored or cleared as a unit; a store never holds a token without
// the address it belongs to.
type Credentials struct {
	Token      string
	GatewayIP  string
	Username   string
	Expiration int64 // Unix seconds
}

// Expired reports whether the token's expiration has passed. A zero
// expiration means the device did not report one and the token is
// trusted until the gateway rejects it.
func (c Credentials) Expired(now time.Time) bool {
	return c.Expiration > 0 && now.Unix() >= c.Expiration
}

// Store is a SQLite-backed session and preference store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at the given path and applies the
// pragmas for WAL mode and a single write connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection. WAL enables concurrent readers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// modernc.org/sqlite requires SQL statements for pragmas, not DSN params.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session (
			key        TEXT     PRIMARY KEY,
			value      TEXT     NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// tx executes fn within a database transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func (s *Store) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

func setKey(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

func (s *Store) getKey(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM session WHERE key = ?", key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setOne(ctx context.Context, key, value string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		return setKey(ctx, tx, key, value)
	})
}

// SetCredentials stores a complete session in one transaction.
func (s *Store) SetCredentials(ctx context.Context, c Credentials) error {
	if c.Token == "" || c.GatewayIP == "" {
		return fmt.Errorf("incomplete credentials: token and gateway address are required")
	}
	return s.tx(ctx, func(tx *sql.Tx) error {
		for key, value := range map[string]string{
			keyToken:      c.Token,
			keyGatewayIP:  c.GatewayIP,
			keyUsername:   c.Username,
			keyExpiration: fmt.Sprintf("%d", c.Expiration),
		} {
			if err := setKey(ctx, tx, key, value); err != nil {
				return fmt.Errorf("write %s: %w", key, err)
			}
		}
		return nil
	})
}

// Credentials loads the stored session. Returns zero credentials with no
// error when nothing is stored.
func (s *Store) Credentials(ctx context.Context) (Credentials, error) {
	var c Credentials
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM session WHERE key IN (?, ?, ?, ?)",
		keyToken, keyGatewayIP, keyUsername, keyExpiration,
	)
	if err != nil {
		return c, fmt.Errorf("read credentials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return c, fmt.Errorf("scan credentials: %w", err)
		}
		switch key {
		case keyToken:
			c.Token = value
		case keyGatewayIP:
			c.GatewayIP = value
		case keyUsername:
			c.Username = value
		case keyExpiration:
			fmt.Sscanf(value, "%d", &c.Expiration)
		}
	}
	if err := rows.Err(); err != nil {
		return c, fmt.Errorf("read credentials: %w", err)
	}
	return c, nil
}

// ClearCredentials removes the session in one transaction. Preferences
// and the remembered username are untouched.
func (s *Store) ClearCredentials(ctx context.Context) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM session WHERE key IN (?, ?, ?, ?)",
			keyToken, keyGatewayIP, keyUsername, keyExpiration,
		)
		return err
	})
}

// IsAuthenticated reports whether a complete, unexpired session is
// stored.
func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	c, err := s.Credentials(ctx)
	if err != nil {
		return false, err
	}
	return c.Token != "" && c.GatewayIP != "" && !c.Expired(time.Now()), nil
}

// Headers returns the request headers the stored session translates to.
// Returns ErrNotAuthenticated when no complete session is stored.
func (s *Store) Headers(ctx context.Context) (map[string]string, error) {
	c, err := s.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if c.Token == "" || c.GatewayIP == "" {
		return nil, ErrNotAuthenticated
	}
	return map[string]string{
		proxy.HeaderGatewayIP: c.GatewayIP,
		proxy.HeaderAuthToken: c.Token,
	}, nil
}

// RememberedUsername returns the username saved for login prefill, empty
// if none.
func (s *Store) RememberedUsername(ctx context.Context) (string, error) {
	return s.getKey(ctx, keyRememberedUsername)
}

// SetRememberedUsername saves a username for login prefill. An empty
// value clears it.
func (s *Store) SetRememberedUsername(ctx context.Context, username string) error {
	if username == "" {
		return s.tx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "DELETE FROM session WHERE key = ?", keyRememberedUsername)
			return err
		})
	}
	return s.setOne(ctx, keyRememberedUsername, username)
}

// Theme returns the stored UI theme, empty if none was chosen.
func (s *Store) Theme(ctx context.Context) (string, error) {
	return s.getKey(ctx, keyTheme)
}

// SetTheme stores the UI theme choice.
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	return s.setOne(ctx, keyTheme, theme)
}

// SidebarPinned returns whether the sidebar is pinned open. Defaults to
// true when never set.
func (s *Store) SidebarPinned(ctx context.Context) (bool, error) {
	v, err := s.getKey(ctx, keySidebarPinned)
	if err != nil {
		return false, err
	}
	return v != "false", nil
}

// SetSidebarPinned stores the sidebar pin state.
func (s *Store) SetSidebarPinned(ctx context.Context, pinned bool) error {
	v := "true"
	if !pinned {
		v = "false"
	}
	return s.setOne(ctx, keySidebarPinned, v)
}
