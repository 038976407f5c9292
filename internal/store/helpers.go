package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/Parabola/internal/models"
)

const (
	sessionColumns   = `id, kind, label, duration_seconds, cycles, completed, started_at, ended_at`
	companionColumns = `id, flow, prompt, body, fallback, created_at`
)

// scanSessionRecords reads every row of a session_records query.
func scanSessionRecords(rows *sql.Rows) ([]models.SessionRecord, error) {
	defer rows.Close()
	var out []models.SessionRecord
	for rows.Next() {
		var r models.SessionRecord
		var kind string
		if err := rows.Scan(&r.ID, &kind, &r.Label, &r.DurationSeconds, &r.Cycles, &r.Completed, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("scan session record failed: %w", err)
		}
		r.Kind = models.SessionKind(kind)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session records: %w", err)
	}
	return out, nil
}

// scanCompanionEntries reads every row of a companion_entries query.
func scanCompanionEntries(rows *sql.Rows) ([]models.CompanionEntry, error) {
	defer rows.Close()
	var out []models.CompanionEntry
	for rows.Next() {
		var e models.CompanionEntry
		if err := rows.Scan(&e.ID, &e.Flow, &e.Prompt, &e.Text, &e.Fallback, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan companion entry failed: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate companion entries: %w", err)
	}
	return out, nil
}
