package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atsumaru-app/warikan/internal/model"
	"github.com/atsumaru-app/warikan/internal/settlement"
)

// AddParticipant explicitly registers a new name and reports how many
// SharedWithAll expenses were re-snapshotted to include it.
func (s *EventService) AddParticipant(ctx context.Context, eventID string, req model.AddParticipantRequest) (*model.AddParticipantResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: participant name is required", ErrValidation)
	}

	participant, count, err := s.participants.Add(ctx, eventID, name)
	if err != nil {
		return nil, err
	}
	slog.Info("participant added",
		"event_id", eventID,
		"name", name,
		"resnapshotted", count,
	)
	return &model.AddParticipantResponse{
		Participant:        *participant,
		ResnapshottedCount: count,
	}, nil
}

// HideParticipant toggles a participant's visibility in history lists.
func (s *EventService) HideParticipant(ctx context.Context, eventID, name string, hidden bool) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: participant name is required", ErrValidation)
	}
	return s.participants.SetHidden(ctx, eventID, name, hidden)
}

// RecordExpense validates and records an expense. Members semantics follow
// the wire format: a nil slice (field omitted) means shared with all, an
// explicitly empty slice is rejected rather than silently widened.
func (s *EventService) RecordExpense(ctx context.Context, eventID string, req model.RecordExpenseRequest) (*model.Expense, error) {
	req.PayerName = strings.TrimSpace(req.PayerName)
	req.Description = strings.TrimSpace(req.Description)

	if req.PayerName == "" {
		return nil, fmt.Errorf("%w: payer name is required", ErrValidation)
	}
	if req.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	var members []string
	if req.Members != nil {
		if len(req.Members) == 0 {
			return nil, fmt.Errorf("%w: explicit member list must not be empty", ErrValidation)
		}
		members = make([]string, 0, len(req.Members))
		for _, m := range req.Members {
			m = strings.TrimSpace(m)
			if m == "" {
				return nil, fmt.Errorf("%w: member names must not be empty", ErrValidation)
			}
			members = append(members, m)
		}
	}

	expense, err := s.expenses.Create(ctx, eventID, req.PayerName, req.Description, req.Amount, members)
	if err != nil {
		return nil, err
	}
	slog.Info("expense recorded",
		"event_id", eventID,
		"expense_id", expense.ID,
		"payer", expense.PayerName,
		"amount", expense.Amount,
		"shared_with_all", expense.SharedWithAll,
	)
	return expense, nil
}

// DeleteExpense removes an expense from the ledger.
func (s *EventService) DeleteExpense(ctx context.Context, eventID, expenseID string) error {
	if expenseID == "" {
		return fmt.Errorf("%w: expense id is required", ErrValidation)
	}
	return s.expenses.Delete(ctx, eventID, expenseID)
}

// ListExpenses returns the event's ledger in creation order.
func (s *EventService) ListExpenses(ctx context.Context, eventID string) ([]model.Expense, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.expenses.ListByEvent(ctx, eventID)
}

// Settlements computes the event's balances and the transfer list that
// settles them. The result is a pure function of current state and is never
// persisted.
func (s *EventService) Settlements(ctx context.Context, eventID string) (*model.SettlementResponse, error) {
	names, err := s.participants.ResolveNames(ctx, eventID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.expenses.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	balances, transfers, err := settlement.Settle(names, expenses)
	if err != nil {
		if errors.Is(err, settlement.ErrInvariant) {
			// Upstream validation failed; this is a defect, not user error.
			slog.Error("settlement invariant violated", "event_id", eventID, "error", err)
		}
		return nil, err
	}

	if balances == nil {
		balances = []model.BalanceEntry{}
	}
	if transfers == nil {
		transfers = []model.Transfer{}
	}
	return &model.SettlementResponse{Balances: balances, Transfers: transfers}, nil
}
