package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"shapebot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.DedicatedChannelStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) DedicatedChannel(ctx context.Context, guildID string) (string, bool, error) {
	var channelID string
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_id FROM dedicated_channels WHERE guild_id = ?`, guildID,
	).Scan(&channelID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query dedicated channel: %w", err)
	}
	return channelID, true, nil
}

func (s *SQLiteStore) SetDedicatedChannel(ctx context.Context, guildID, channelID string) error {
	if guildID == "" || channelID == "" {
		return fmt.Errorf("guild and channel ids are required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dedicated_channels (guild_id, channel_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET channel_id = excluded.channel_id, updated_at = excluded.updated_at`,
		guildID, channelID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set dedicated channel: %w", err)
	}
	s.logger.Info("dedicated channel set", "guild", guildID, "channel", channelID)
	return nil
}

func (s *SQLiteStore) ClearDedicatedChannel(ctx context.Context, guildID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dedicated_channels WHERE guild_id = ?`, guildID); err != nil {
		return fmt.Errorf("clear dedicated channel: %w", err)
	}
	s.logger.Info("dedicated channel cleared", "guild", guildID)
	return nil
}

func (s *SQLiteStore) ListDedicatedChannels(ctx context.Context) ([]domain.DedicatedChannel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, channel_id, updated_at FROM dedicated_channels ORDER BY guild_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DedicatedChannel
	for rows.Next() {
		var dc domain.DedicatedChannel
		if err := rows.Scan(&dc.GuildID, &dc.ChannelID, &dc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// SchemaVersion reports the applied migration version.
func (s *SQLiteStore) SchemaVersion() (int, error) {
	return GetSchemaVersion(s.db)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
