package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atsumaru-app/warikan/internal/settlement"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so resolution helpers
// can run standalone or inside a larger transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// resolveParticipants derives the authoritative participant set for an event:
// creator, persisted participants, poll respondents, then expense payers and
// explicit members, deduplicated in first-appearance order. Any name not yet
// persisted is written back, so the stored participant list only ever grows.
func resolveParticipants(ctx context.Context, q querier, eventID string) ([]string, error) {
	var creator string
	err := q.QueryRow(ctx, `SELECT creator_name FROM events WHERE id = $1`, eventID).Scan(&creator)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event creator: %w", err)
	}

	persisted, err := stringColumn(ctx, q,
		`SELECT name FROM participants WHERE event_id = $1 ORDER BY created_at ASC, id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list persisted participants: %w", err)
	}

	respondents, err := stringColumn(ctx, q,
		`SELECT respondent FROM poll_responses WHERE event_id = $1 ORDER BY created_at ASC, id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list poll respondents: %w", err)
	}

	// Payers interleaved with each expense's explicit members, in ledger order.
	expenseNames, err := stringColumn(ctx, q,
		`SELECT name FROM (
			SELECT x.created_at, x.id, 0 AS pos, x.payer_name AS name
			FROM expenses x WHERE x.event_id = $1
			UNION ALL
			SELECT x.created_at, x.id, m.position + 1, m.name
			FROM expenses x
			JOIN expense_members m ON m.expense_id = x.id
			WHERE x.event_id = $1 AND NOT x.shared_with_all
		 ) names
		 ORDER BY created_at ASC, id ASC, pos ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list expense names: %w", err)
	}

	names := settlement.ResolveNames([]string{creator}, persisted, respondents, expenseNames)

	have := make(map[string]bool, len(persisted))
	for _, name := range persisted {
		have[name] = true
	}
	have[creator] = true
	for _, name := range names {
		if have[name] {
			continue
		}
		_, err := q.Exec(ctx,
			`INSERT INTO participants (id, event_id, name, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (event_id, name) DO NOTHING`,
			uuid.New().String(), eventID, name, time.Now().UTC(),
		)
		if err != nil {
			return nil, fmt.Errorf("persist resolved participant: %w", err)
		}
	}
	return names, nil
}

// resnapshotSharedAll rebuilds the cached member snapshot of every
// SharedWithAll expense of the event to the given resolved participant set.
// Legacy rows (no flag, no members) are migrated to the flag first. Returns
// how many expenses were re-snapshotted.
func resnapshotSharedAll(ctx context.Context, q querier, eventID string, names []string) (int, error) {
	_, err := q.Exec(ctx,
		`UPDATE expenses SET shared_with_all = TRUE
		 WHERE event_id = $1 AND NOT shared_with_all
		   AND NOT EXISTS (SELECT 1 FROM expense_members m WHERE m.expense_id = expenses.id)`,
		eventID,
	)
	if err != nil {
		return 0, fmt.Errorf("migrate legacy expenses: %w", err)
	}

	ids, err := stringColumn(ctx, q,
		`SELECT id FROM expenses WHERE event_id = $1 AND shared_with_all ORDER BY created_at ASC, id ASC`, eventID)
	if err != nil {
		return 0, fmt.Errorf("list shared expenses: %w", err)
	}

	for _, id := range ids {
		if _, err := q.Exec(ctx, `DELETE FROM expense_members WHERE expense_id = $1`, id); err != nil {
			return 0, fmt.Errorf("clear expense snapshot: %w", err)
		}
		if err := insertMembers(ctx, q, id, names); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func insertMembers(ctx context.Context, q querier, expenseID string, names []string) error {
	for i, name := range names {
		_, err := q.Exec(ctx,
			`INSERT INTO expense_members (expense_id, position, name) VALUES ($1, $2, $3)`,
			expenseID, i, name,
		)
		if err != nil {
			return fmt.Errorf("insert expense member: %w", err)
		}
	}
	return nil
}

func stringColumn(ctx context.Context, q querier, sql string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
