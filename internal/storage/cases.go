package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	CaseBan  = "BAN"
	CaseKick = "KICK"
	CaseMute = "MUTE"
	CaseWarn = "WARN"
)

// Case is one persisted moderation action. CaseID is unique within a guild,
// assigned sequentially from 1, and never reused. EndDate is nil for
// permanent actions; Points is only meaningful for WARN cases.
type Case struct {
	GuildID     string
	UserID      string
	ModeratorID string
	CaseID      int
	Type        string
	Reason      string
	CreatedAt   time.Time
	EndDate     *time.Time
	Points      int
}

// CaseFilter narrows ListCases. Zero values mean "no filter"; the command
// layer enforces that filters are mutually exclusive.
type CaseFilter struct {
	UserID      string
	ModeratorID string
	CaseID      int
}

// InsertCase allocates the next case id for the guild and persists the case
// in one serialized unit. The mutex plus transaction keeps "max(case_id)+1
// then insert" linearizable under concurrent command handlers.
func (s *Store) InsertCase(ctx context.Context, c Case) (int, error) {
	s.caseMu.Lock()
	defer s.caseMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var maxID sql.NullInt64
	row := tx.QueryRowContext(ctx, `SELECT MAX(case_id) FROM cases WHERE guild_id = ?`, c.GuildID)
	if err = row.Scan(&maxID); err != nil {
		return 0, err
	}
	nextID := int(maxID.Int64) + 1

	var endDate any
	if c.EndDate != nil {
		endDate = c.EndDate.Unix()
	}
	var points any
	if c.Type == CaseWarn {
		points = c.Points
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cases (guild_id, user_id, moderator_id, case_id, case_type, reason, created_at, end_date, points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.GuildID, c.UserID, c.ModeratorID, nextID, c.Type, c.Reason, c.CreatedAt.Unix(), endDate, points)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return nextID, nil
}

func (s *Store) CaseByID(ctx context.Context, guildID string, caseID int) (Case, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, moderator_id, case_id, case_type, reason, created_at, end_date, points
		FROM cases WHERE guild_id = ? AND case_id = ?
	`, guildID, caseID)

	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Case{}, false, nil
		}
		return Case{}, false, err
	}
	return c, true, nil
}

func (s *Store) ListCases(ctx context.Context, guildID string, filter CaseFilter) ([]Case, error) {
	query := `
		SELECT guild_id, user_id, moderator_id, case_id, case_type, reason, created_at, end_date, points
		FROM cases WHERE guild_id = ?`
	args := []any{guildID}

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.ModeratorID != "" {
		query += ` AND moderator_id = ?`
		args = append(args, filter.ModeratorID)
	}
	if filter.CaseID != 0 {
		query += ` AND case_id = ?`
		args = append(args, filter.CaseID)
	}
	query += ` ORDER BY case_id`

	return s.queryCases(ctx, query, args...)
}

func (s *Store) CasesByIDs(ctx context.Context, guildID string, caseIDs []int) ([]Case, error) {
	if len(caseIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(caseIDs)), ",")
	args := []any{guildID}
	for _, id := range caseIDs {
		args = append(args, id)
	}
	return s.queryCases(ctx, fmt.Sprintf(`
		SELECT guild_id, user_id, moderator_id, case_id, case_type, reason, created_at, end_date, points
		FROM cases WHERE guild_id = ? AND case_id IN (%s) ORDER BY case_id`, placeholders), args...)
}

func (s *Store) DeleteCase(ctx context.Context, guildID string, caseID int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cases WHERE guild_id = ? AND case_id = ?`, guildID, caseID)
	return err
}

func (s *Store) DeleteCases(ctx context.Context, guildID string, caseIDs []int) error {
	if len(caseIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(caseIDs)), ",")
	args := []any{guildID}
	for _, id := range caseIDs {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM cases WHERE guild_id = ? AND case_id IN (%s)`, placeholders), args...)
	return err
}

// ExpiredCases returns every case of the given type, across all guilds,
// whose end date has passed. Cases without an end date never expire.
func (s *Store) ExpiredCases(ctx context.Context, caseType string, now time.Time) ([]Case, error) {
	return s.queryCases(ctx, `
		SELECT guild_id, user_id, moderator_id, case_id, case_type, reason, created_at, end_date, points
		FROM cases WHERE case_type = ? AND end_date IS NOT NULL AND end_date < ?
		ORDER BY guild_id, case_id`, caseType, now.Unix())
}

// ActiveMuteCase reports the user's open MUTE case in the guild, if any.
func (s *Store) ActiveMuteCase(ctx context.Context, guildID, userID string, now time.Time) (Case, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, moderator_id, case_id, case_type, reason, created_at, end_date, points
		FROM cases
		WHERE guild_id = ? AND user_id = ? AND case_type = ? AND end_date IS NOT NULL AND end_date > ?
	`, guildID, userID, CaseMute, now.Unix())

	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Case{}, false, nil
		}
		return Case{}, false, err
	}
	return c, true, nil
}

// TotalWarnPoints sums the points of the user's outstanding WARN cases.
// The total is derived on demand; expired or removed warnings stopped
// contributing when their rows were deleted.
func (s *Store) TotalWarnPoints(ctx context.Context, guildID, userID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(points), 0) FROM cases
		WHERE guild_id = ? AND user_id = ? AND case_type = ?
	`, guildID, userID, CaseWarn)

	var total int
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) queryCases(ctx context.Context, query string, args ...any) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (Case, error) {
	var c Case
	var created int64
	var endDate sql.NullInt64
	var points sql.NullInt64
	err := row.Scan(&c.GuildID, &c.UserID, &c.ModeratorID, &c.CaseID, &c.Type, &c.Reason, &created, &endDate, &points)
	if err != nil {
		return Case{}, err
	}
	c.CreatedAt = time.Unix(created, 0)
	if endDate.Valid {
		value := time.Unix(endDate.Int64, 0)
		c.EndDate = &value
	}
	if points.Valid {
		c.Points = int(points.Int64)
	}
	return c, nil
}
