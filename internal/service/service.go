// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atsumaru-app/warikan/internal/model"
)

// ErrValidation marks malformed input: non-positive amounts, empty names or
// descriptions, explicitly empty member lists. Surfaced to the caller
// immediately, never retried, never silently corrected.
var ErrValidation = errors.New("invalid input")

const dateLayout = "2006-01-02"

// EventStore persists events and candidate dates.
type EventStore interface {
	Create(ctx context.Context, name, creatorName string, candidateDates []string) (*model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	FinalizeDate(ctx context.Context, eventID, date string) (*model.Event, error)
}

// ParticipantStore persists the monotonically growing participant set.
type ParticipantStore interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.Participant, error)
	ResolveNames(ctx context.Context, eventID string) ([]string, error)
	Add(ctx context.Context, eventID, name string) (*model.Participant, int, error)
	SetHidden(ctx context.Context, eventID, name string, hidden bool) error
}

// PollStore persists availability poll responses.
type PollStore interface {
	SubmitResponse(ctx context.Context, eventID, respondent string, votes []model.AvailabilityVote) (*model.PollResponse, error)
	ListResponses(ctx context.Context, eventID string) ([]model.PollResponse, error)
}

// ExpenseStore persists the expense ledger.
type ExpenseStore interface {
	Create(ctx context.Context, eventID, payerName, description string, amount int64, members []string) (*model.Expense, error)
	Delete(ctx context.Context, eventID, expenseID string) error
	ListByEvent(ctx context.Context, eventID string) ([]model.Expense, error)
}

// EventService orchestrates scheduling and ledger operations.
type EventService struct {
	events       EventStore
	participants ParticipantStore
	polls        PollStore
	expenses     ExpenseStore
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, participants ParticipantStore, polls PollStore, expenses ExpenseStore) *EventService {
	return &EventService{
		events:       events,
		participants: participants,
		polls:        polls,
		expenses:     expenses,
	}
}

// CreateEvent validates the request and delegates to the repository.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.CreatorName = strings.TrimSpace(req.CreatorName)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrValidation)
	}
	if req.CreatorName == "" {
		return nil, fmt.Errorf("%w: creator name is required", ErrValidation)
	}
	if len(req.CandidateDates) == 0 {
		return nil, fmt.Errorf("%w: at least one candidate date is required", ErrValidation)
	}
	for _, date := range req.CandidateDates {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("%w: candidate date %q is not YYYY-MM-DD", ErrValidation, date)
		}
	}
	return s.events.Create(ctx, req.Name, req.CreatorName, req.CandidateDates)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrValidation)
	}
	return s.events.GetByID(ctx, id)
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// FinalizeDate decides the event date, opening the expense ledger.
func (s *EventService) FinalizeDate(ctx context.Context, eventID string, req model.FinalizeDateRequest) (*model.Event, error) {
	if _, err := time.Parse(dateLayout, req.Date); err != nil {
		return nil, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrValidation, req.Date)
	}
	return s.events.FinalizeDate(ctx, eventID, req.Date)
}

// SubmitPollResponse validates and stores a respondent's availability.
func (s *EventService) SubmitPollResponse(ctx context.Context, eventID string, req model.PollResponseRequest) (*model.PollResponse, error) {
	req.Respondent = strings.TrimSpace(req.Respondent)
	if req.Respondent == "" {
		return nil, fmt.Errorf("%w: respondent name is required", ErrValidation)
	}
	for _, vote := range req.Votes {
		if !vote.Availability.Valid() {
			return nil, fmt.Errorf("%w: availability %q is not one of yes/maybe/no", ErrValidation, vote.Availability)
		}
	}
	return s.polls.SubmitResponse(ctx, eventID, req.Respondent, req.Votes)
}

// ListPollResponses returns all poll responses for an event.
func (s *EventService) ListPollResponses(ctx context.Context, eventID string) ([]model.PollResponse, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.polls.ListResponses(ctx, eventID)
}

// ListParticipants returns the event's participants in first-appearance order.
func (s *EventService) ListParticipants(ctx context.Context, eventID string) ([]model.Participant, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.participants.ListByEvent(ctx, eventID)
}
