package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atsumaru-app/warikan/internal/model"
)

// ParticipantRepository handles persistence for event participants.
type ParticipantRepository struct {
	db *pgxpool.Pool
}

// NewParticipantRepository constructs a ParticipantRepository.
func NewParticipantRepository(db *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// ListByEvent returns all participants in first-appearance order.
func (r *ParticipantRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Participant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, name, hidden, created_at
		 FROM participants
		 WHERE event_id = $1
		 ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.EventID, &p.Name, &p.Hidden, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ResolveNames returns the authoritative, order-stable participant name set
// for the event, persisting any name referenced by polls or expenses that the
// stored list does not yet carry.
func (r *ParticipantRepository) ResolveNames(ctx context.Context, eventID string) ([]string, error) {
	return resolveParticipants(ctx, r.db, eventID)
}

// Add explicitly registers a new participant and rebuilds the member snapshot
// of every SharedWithAll expense to include them, returning how many expenses
// were re-snapshotted.
//
// The event row is locked FOR UPDATE for the duration so concurrent
// RecordExpense calls on the same event cannot interleave with the snapshot
// rebuild; operations on other events proceed in parallel.
func (r *ParticipantRepository) Add(ctx context.Context, eventID, name string) (*model.Participant, int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize per event: all ledger writers lock this row first.
	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT TRUE FROM events WHERE id = $1 FOR UPDATE`, eventID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("lock event row: %w", err)
	}

	// A name already present is rejected, never silently merged.
	var dupCount int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM participants WHERE event_id = $1 AND name = $2`,
		eventID, name,
	).Scan(&dupCount)
	if err != nil {
		return nil, 0, fmt.Errorf("check duplicate: %w", err)
	}
	if dupCount > 0 {
		return nil, 0, ErrDuplicateParticipant
	}

	participant := &model.Participant{
		ID:        uuid.New().String(),
		EventID:   eventID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO participants (id, event_id, name, created_at)
		 VALUES ($1, $2, $3, $4)`,
		participant.ID, participant.EventID, participant.Name, participant.CreatedAt,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("insert participant: %w", err)
	}

	names, err := resolveParticipants(ctx, tx, eventID)
	if err != nil {
		return nil, 0, err
	}
	count, err := resnapshotSharedAll(ctx, tx, eventID, names)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit transaction: %w", err)
	}
	return participant, count, nil
}

// SetHidden toggles a participant's visibility in history lists. Hidden
// participants still settle like everyone else; nothing referenced by money
// is ever deleted.
func (r *ParticipantRepository) SetHidden(ctx context.Context, eventID, name string, hidden bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE participants SET hidden = $3 WHERE event_id = $1 AND name = $2`,
		eventID, name, hidden,
	)
	if err != nil {
		return fmt.Errorf("set hidden: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
