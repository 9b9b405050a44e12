package store

import (
	"context"
	"database/sql"
)

// UpsertReasonSuggestion records one use of a reason for an item/user pair.
// Matching is case-insensitive on the reason text; a match bumps the usage
// count and refreshes last_used instead of inserting a duplicate row.
func (s *Store) UpsertReasonSuggestion(ctx context.Context, makat, reason string, userID int64) error {
	var id int64
	err := s.db.GetContext(ctx, &id, `
		SELECT id FROM reason_suggestions
		WHERE item_makat = $1 AND LOWER(reason) = LOWER($2) AND user_id = $3`,
		makat, reason, userID)
	if err == nil {
		_, err = s.db.ExecContext(ctx,
			"UPDATE reason_suggestions SET usage_count = usage_count + 1, last_used = NOW() WHERE id = $1", id)
		return err
	}
	if err != sql.ErrNoRows {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reason_suggestions (item_makat, reason, usage_count, last_used, user_id)
		VALUES ($1, $2, 1, NOW(), $3)
		ON CONFLICT (item_makat, reason, user_id)
		DO UPDATE SET usage_count = reason_suggestions.usage_count + 1, last_used = NOW()`,
		makat, reason, userID)
	return err
}

// GetPersonalSuggestions returns the user's own reasons for this makat,
// most recently used first.
func (s *Store) GetPersonalSuggestions(ctx context.Context, makat string, userID int64, limit int) ([]string, error) {
	reasons := []string{}
	err := s.db.SelectContext(ctx, &reasons, `
		SELECT reason FROM reason_suggestions
		WHERE item_makat = $1 AND user_id = $2
		ORDER BY last_used DESC
		LIMIT $3`, makat, userID, limit)
	return reasons, err
}

// GetRecentNotes returns the user's distinct recent inspection notes across
// all items, most recent first.
func (s *Store) GetRecentNotes(ctx context.Context, userID int64, days, limit int) ([]string, error) {
	notes := []string{}
	err := s.db.SelectContext(ctx, &notes, `
		SELECT notes FROM (
			SELECT notes, MAX(inspected_at) AS last_at
			FROM inspection_actions
			WHERE inspected_by_user_id = $1
			  AND notes IS NOT NULL AND notes <> ''
			  AND inspected_at > NOW() - ($2 || ' days')::interval
			GROUP BY notes
		) t
		ORDER BY last_at DESC
		LIMIT $3`, userID, days, limit)
	return notes, err
}

// GetDepartmentSuggestions returns other users' reasons for this makat,
// ranked by total historical usage across users.
func (s *Store) GetDepartmentSuggestions(ctx context.Context, makat string, excludeUserID int64, limit int) ([]string, error) {
	reasons := []string{}
	err := s.db.SelectContext(ctx, &reasons, `
		SELECT reason FROM reason_suggestions
		WHERE item_makat = $1 AND (user_id IS NULL OR user_id <> $2)
		GROUP BY reason
		ORDER BY SUM(usage_count) DESC
		LIMIT $3`, makat, excludeUserID, limit)
	return reasons, err
}
