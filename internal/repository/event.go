// Package repository implements all database queries for the scheduling and
// expense-splitting service. It uses pgx directly (no ORM) for transparency
// and performance.
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

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateParticipant is returned when a name is explicitly added twice.
var ErrDuplicateParticipant = errors.New("participant name already exists")

// ErrDateNotFinalized is returned when an expense is recorded before the
// event date has been decided.
var ErrDateNotFinalized = errors.New("event date is not finalized")

// ErrDateNotCandidate is returned when a finalized date is not one of the
// event's candidate dates.
var ErrDateNotCandidate = errors.New("date is not a candidate for this event")

const dateLayout = "2006-01-02"

// EventRepository handles persistence for events and their candidate dates.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event with its candidate dates and seeds the
// participant set with the creator.
func (r *EventRepository) Create(ctx context.Context, name, creatorName string, candidateDates []string) (*model.Event, error) {
	event := &model.Event{
		ID:          uuid.New().String(),
		Name:        name,
		CreatorName: creatorName,
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO events (id, name, creator_name, created_at)
		 VALUES ($1, $2, $3, $4)`,
		event.ID, event.Name, event.CreatorName, event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	for _, date := range candidateDates {
		cd := model.CandidateDate{
			ID:      uuid.New().String(),
			EventID: event.ID,
			Date:    date,
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO candidate_dates (id, event_id, candidate)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (event_id, candidate) DO NOTHING`,
			cd.ID, cd.EventID, cd.Date,
		)
		if err != nil {
			return nil, fmt.Errorf("insert candidate date: %w", err)
		}
		event.Candidates = append(event.Candidates, cd)
	}

	// The creator is the first participant.
	_, err = tx.Exec(ctx,
		`INSERT INTO participants (id, event_id, name, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (event_id, name) DO NOTHING`,
		uuid.New().String(), event.ID, creatorName, event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert creator participant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return event, nil
}

// GetByID returns a single event with its candidate dates, or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	event, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT id, name, creator_name, finalized_date, created_at
		 FROM events WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, candidate
		 FROM candidate_dates
		 WHERE event_id = $1
		 ORDER BY candidate ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("list candidate dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cd model.CandidateDate
		var candidate time.Time
		if err := rows.Scan(&cd.ID, &cd.EventID, &candidate); err != nil {
			return nil, fmt.Errorf("scan candidate date: %w", err)
		}
		cd.Date = candidate.Format(dateLayout)
		event.Candidates = append(event.Candidates, cd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate dates: %w", err)
	}
	return event, nil
}

// List returns all events ordered by creation time descending.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, creator_name, finalized_date, created_at
		 FROM events
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// FinalizeDate sets the event's date to one of its candidates. Finalizing a
// second time overwrites the previous choice.
func (r *EventRepository) FinalizeDate(ctx context.Context, eventID, date string) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check event: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	var isCandidate bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM candidate_dates WHERE event_id = $1 AND candidate = $2)`,
		eventID, date,
	).Scan(&isCandidate)
	if err != nil {
		return nil, fmt.Errorf("check candidate date: %w", err)
	}
	if !isCandidate {
		return nil, ErrDateNotCandidate
	}

	_, err = tx.Exec(ctx,
		`UPDATE events SET finalized_date = $2 WHERE id = $1`,
		eventID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("finalize date: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return r.GetByID(ctx, eventID)
}

// scanEvent reads one event row from either a Row or Rows scanner.
func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	var finalized *time.Time
	err := row.Scan(&e.ID, &e.Name, &e.CreatorName, &finalized, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	if finalized != nil {
		d := finalized.Format(dateLayout)
		e.FinalizedDate = &d
	}
	return &e, nil
}
