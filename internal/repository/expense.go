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
	"github.com/atsumaru-app/warikan/internal/settlement"
)

// ExpenseRepository handles persistence for the expense ledger.
type ExpenseRepository struct {
	db *pgxpool.Pool
}

// NewExpenseRepository constructs an ExpenseRepository.
func NewExpenseRepository(db *pgxpool.Pool) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// Create records an expense. A nil members slice means the cost is shared
// with all: the stored member snapshot is set to the current full participant
// set and re-derived again at settlement time. A non-nil slice fixes the
// share group forever.
//
// The caller validates inputs; this method enforces the lifecycle
// precondition (date finalized) and per-event serialization. Like
// ParticipantRepository.Add it locks the event row FOR UPDATE, so an expense
// can never be recorded with a participant universe that a concurrent
// participant-add is mid-way through changing.
func (r *ExpenseRepository) Create(ctx context.Context, eventID, payerName, description string, amount int64, members []string) (*model.Expense, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var finalized *time.Time
	err = tx.QueryRow(ctx,
		`SELECT finalized_date FROM events WHERE id = $1 FOR UPDATE`, eventID,
	).Scan(&finalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	if finalized == nil {
		return nil, ErrDateNotFinalized
	}

	expense := &model.Expense{
		ID:            uuid.New().String(),
		EventID:       eventID,
		PayerName:     payerName,
		Description:   description,
		Amount:        amount,
		SharedWithAll: members == nil,
		CreatedAt:     time.Now().UTC(),
	}

	// The payer and any explicit members join the participant set the moment
	// money references them.
	referenced := append([]string{payerName}, members...)
	for _, name := range settlement.ResolveNames(referenced) {
		_, err = tx.Exec(ctx,
			`INSERT INTO participants (id, event_id, name, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (event_id, name) DO NOTHING`,
			uuid.New().String(), eventID, name, expense.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("register referenced participant: %w", err)
		}
	}

	if expense.SharedWithAll {
		expense.Members, err = resolveParticipants(ctx, tx, eventID)
		if err != nil {
			return nil, err
		}
	} else {
		expense.Members = settlement.ResolveNames(members)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO expenses (id, event_id, payer_name, description, amount, shared_with_all, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		expense.ID, expense.EventID, expense.PayerName, expense.Description,
		expense.Amount, expense.SharedWithAll, expense.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	if err := insertMembers(ctx, tx, expense.ID, expense.Members); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return expense, nil
}

// Delete removes an expense. Other expenses' snapshots are unaffected.
func (r *ExpenseRepository) Delete(ctx context.Context, eventID, expenseID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM expenses WHERE id = $1 AND event_id = $2`,
		expenseID, eventID,
	)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByEvent returns the event's expenses in creation order with their
// member snapshots. Legacy rows with no flag and no members are migrated to
// SharedWithAll here, once, so the ambiguity never leaks further.
func (r *ExpenseRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Expense, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, payer_name, description, amount, shared_with_all, created_at
		 FROM expenses
		 WHERE event_id = $1
		 ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []model.Expense
	for rows.Next() {
		var x model.Expense
		if err := rows.Scan(&x.ID, &x.EventID, &x.PayerName, &x.Description, &x.Amount, &x.SharedWithAll, &x.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, x)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	for i := range expenses {
		x := &expenses[i]
		x.Members, err = stringColumn(ctx, r.db,
			`SELECT name FROM expense_members WHERE expense_id = $1 ORDER BY position ASC`, x.ID)
		if err != nil {
			return nil, fmt.Errorf("list expense members: %w", err)
		}
		if x.NormalizePolicy() {
			_, err = r.db.Exec(ctx,
				`UPDATE expenses SET shared_with_all = TRUE WHERE id = $1`, x.ID)
			if err != nil {
				return nil, fmt.Errorf("migrate legacy expense: %w", err)
			}
		}
	}
	return expenses, nil
}
