package credential

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/reviewly/authsession/internal/client/credential/migrations"
	"github.com/reviewly/authsession/internal/common"
	"github.com/reviewly/authsession/internal/dbx"
)

// SQLiteChannel is the durable key/value credential channel. Both halves of
// the pair are written in a single transaction so a reader never observes a
// token without its user.
type SQLiteChannel struct {
	db *sql.DB
}

func NewSQLiteChannel(db *sql.DB) *SQLiteChannel {
	return &SQLiteChannel{db: db}
}

// OpenSQLite opens (or creates) the credential database at dsn and applies
// the embedded goose migrations.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteChannel, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open credential db: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply credential migrations: %w", err)
	}

	return NewSQLiteChannel(db), nil
}

func (c *SQLiteChannel) Save(ctx context.Context, cred Credential) error {
	userRaw, err := json.Marshal(cred.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := upsert(ctx, tx, common.TokenStorageKey, []byte(cred.Token)); err != nil {
			return err
		}
		return upsert(ctx, tx, common.UserStorageKey, userRaw)
	})
}

func upsert(ctx context.Context, tx dbx.DBTX, key string, value []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credentials (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set credentials[%s]: %w", key, err)
	}
	return nil
}

func (c *SQLiteChannel) Load(ctx context.Context) (Credential, error) {
	token, err := c.get(ctx, common.TokenStorageKey)
	if err != nil {
		return Credential{}, err
	}
	userRaw, err := c.get(ctx, common.UserStorageKey)
	if err != nil {
		return Credential{}, err
	}

	cred := Credential{Token: string(token)}
	if len(userRaw) > 0 {
		var user User
		if err := json.Unmarshal(userRaw, &user); err == nil && user.WellFormed() {
			cred.User = &user
		}
	}
	return cred, nil
}

func (c *SQLiteChannel) get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials[%s]: %w", key, err)
	}
	return value, nil
}

func (c *SQLiteChannel) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM credentials WHERE key IN (?, ?)`,
		common.TokenStorageKey, common.UserStorageKey)
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (c *SQLiteChannel) Close() error {
	return c.db.Close()
}
