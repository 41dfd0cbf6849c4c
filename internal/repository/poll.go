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

// PollRepository handles persistence for availability poll responses.
type PollRepository struct {
	db *pgxpool.Pool
}

// NewPollRepository constructs a PollRepository.
func NewPollRepository(db *pgxpool.Pool) *PollRepository {
	return &PollRepository{db: db}
}

// SubmitResponse stores a respondent's availability votes, replacing any
// previous response by the same respondent. The respondent joins the
// participant set, and SharedWithAll snapshots are refreshed to include them.
func (r *PollRepository) SubmitResponse(ctx context.Context, eventID, respondent string, votes []model.AvailabilityVote) (*model.PollResponse, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT TRUE FROM events WHERE id = $1 FOR UPDATE`, eventID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}

	for _, vote := range votes {
		var ok bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM candidate_dates WHERE id = $1 AND event_id = $2)`,
			vote.CandidateID, eventID,
		).Scan(&ok)
		if err != nil {
			return nil, fmt.Errorf("check candidate: %w", err)
		}
		if !ok {
			return nil, ErrDateNotCandidate
		}
	}

	response := &model.PollResponse{
		ID:         uuid.New().String(),
		EventID:    eventID,
		Respondent: respondent,
		Votes:      votes,
		CreatedAt:  time.Now().UTC(),
	}

	// Resubmission replaces the previous response but keeps its slot in the
	// first-appearance order (created_at is preserved by the upsert).
	err = tx.QueryRow(ctx,
		`INSERT INTO poll_responses (id, event_id, respondent, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (event_id, respondent)
		 DO UPDATE SET respondent = EXCLUDED.respondent
		 RETURNING id, created_at`,
		response.ID, eventID, respondent, response.CreatedAt,
	).Scan(&response.ID, &response.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert poll response: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM poll_votes WHERE response_id = $1`, response.ID); err != nil {
		return nil, fmt.Errorf("clear previous votes: %w", err)
	}
	for _, vote := range votes {
		_, err = tx.Exec(ctx,
			`INSERT INTO poll_votes (response_id, candidate_id, availability)
			 VALUES ($1, $2, $3)`,
			response.ID, vote.CandidateID, vote.Availability,
		)
		if err != nil {
			return nil, fmt.Errorf("insert vote: %w", err)
		}
	}

	names, err := resolveParticipants(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := resnapshotSharedAll(ctx, tx, eventID, names); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return response, nil
}

// ListResponses returns all poll responses for an event with their votes,
// oldest first.
func (r *PollRepository) ListResponses(ctx context.Context, eventID string) ([]model.PollResponse, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, respondent, created_at
		 FROM poll_responses
		 WHERE event_id = $1
		 ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list poll responses: %w", err)
	}
	defer rows.Close()

	var responses []model.PollResponse
	for rows.Next() {
		var resp model.PollResponse
		if err := rows.Scan(&resp.ID, &resp.EventID, &resp.Respondent, &resp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan poll response: %w", err)
		}
		responses = append(responses, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate poll responses: %w", err)
	}

	for i := range responses {
		resp := &responses[i]
		voteRows, err := r.db.Query(ctx,
			`SELECT candidate_id, availability FROM poll_votes WHERE response_id = $1`, resp.ID)
		if err != nil {
			return nil, fmt.Errorf("list votes: %w", err)
		}
		for voteRows.Next() {
			var vote model.AvailabilityVote
			if err := voteRows.Scan(&vote.CandidateID, &vote.Availability); err != nil {
				voteRows.Close()
				return nil, fmt.Errorf("scan vote: %w", err)
			}
			resp.Votes = append(resp.Votes, vote)
		}
		voteRows.Close()
		if err := voteRows.Err(); err != nil {
			return nil, fmt.Errorf("iterate votes: %w", err)
		}
	}
	return responses, nil
}
