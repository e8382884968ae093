package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB

	// caseMu serializes case-id allocation; see InsertCase.
	caseMu sync.Mutex
}

type GuildSettings struct {
	GuildID        string
	Language       string
	LogChannel     string
	LogTypes       int
	WarnExpireDays int
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT lang, default_log_channel, log_types, warn_expire_time
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	err := row.Scan(
		&result.Language,
		&result.LogChannel,
		&result.LogTypes,
		&result.WarnExpireDays,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	if result.Language == "" {
		result.Language = defaults.Language
	}
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, lang, default_log_channel, log_types, warn_expire_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			lang = excluded.lang,
			default_log_channel = excluded.default_log_channel,
			log_types = excluded.log_types,
			warn_expire_time = excluded.warn_expire_time
	`,
		settings.GuildID,
		settings.Language,
		settings.LogChannel,
		settings.LogTypes,
		settings.WarnExpireDays,
	)
	return err
}

// EnsureGuildSettings inserts a defaults row for the guild if none exists,
// leaving an existing row untouched. Called on guild join and on startup
// reconciliation against the session guild list.
func (s *Store) EnsureGuildSettings(ctx context.Context, defaults GuildSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO guild_settings (guild_id, lang, default_log_channel, log_types, warn_expire_time)
		VALUES (?, ?, ?, ?, ?)
	`,
		defaults.GuildID,
		defaults.Language,
		defaults.LogChannel,
		defaults.LogTypes,
		defaults.WarnExpireDays,
	)
	return err
}

func (s *Store) UpdateLogChannel(ctx context.Context, guildID, channelID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE guild_settings SET default_log_channel = ? WHERE guild_id = ?`, channelID, guildID)
	return err
}

func (s *Store) UpdateLogTypes(ctx context.Context, guildID string, mask int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE guild_settings SET log_types = ? WHERE guild_id = ?`, mask, guildID)
	return err
}

func (s *Store) UpdateWarnExpireDays(ctx context.Context, guildID string, days int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE guild_settings SET warn_expire_time = ? WHERE guild_id = ?`, days, guildID)
	return err
}

func (s *Store) UpdateLanguage(ctx context.Context, guildID, lang string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE guild_settings SET lang = ? WHERE guild_id = ?`, lang, guildID)
	return err
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
