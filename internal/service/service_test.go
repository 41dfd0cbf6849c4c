package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atsumaru-app/warikan/internal/model"
	"github.com/atsumaru-app/warikan/internal/repository"
	"github.com/atsumaru-app/warikan/internal/settlement"
)

// memStore is an in-memory implementation of the store interfaces, mirroring
// the repository semantics closely enough to exercise the service layer
// without a database.
type memStore struct {
	events    map[string]*model.Event
	members   map[string][]model.Participant  // eventID -> ordered participants
	responses map[string][]model.PollResponse // eventID -> ordered responses
	expenses  map[string][]model.Expense      // eventID -> ordered expenses
}

func newMemStore() *memStore {
	return &memStore{
		events:    make(map[string]*model.Event),
		members:   make(map[string][]model.Participant),
		responses: make(map[string][]model.PollResponse),
		expenses:  make(map[string][]model.Expense),
	}
}

// ─── EventStore ───────────────────────────────────────────────────────────────

func (m *memStore) Create(ctx context.Context, name, creatorName string, candidateDates []string) (*model.Event, error) {
	event := &model.Event{
		ID:          uuid.New().String(),
		Name:        name,
		CreatorName: creatorName,
		CreatedAt:   time.Now().UTC(),
	}
	for _, d := range candidateDates {
		event.Candidates = append(event.Candidates, model.CandidateDate{
			ID: uuid.New().String(), EventID: event.ID, Date: d,
		})
	}
	m.events[event.ID] = event
	m.registerName(event.ID, creatorName)
	return event, nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*model.Event, error) {
	event, ok := m.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return event, nil
}

func (m *memStore) List(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	for _, e := range m.events {
		events = append(events, *e)
	}
	return events, nil
}

func (m *memStore) FinalizeDate(ctx context.Context, eventID, date string) (*model.Event, error) {
	event, ok := m.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, c := range event.Candidates {
		if c.Date == date {
			event.FinalizedDate = &date
			return event, nil
		}
	}
	return nil, repository.ErrDateNotCandidate
}

// ─── ParticipantStore ─────────────────────────────────────────────────────────

func (m *memStore) ListByEvent(ctx context.Context, eventID string) ([]model.Participant, error) {
	if _, ok := m.events[eventID]; !ok {
		return nil, repository.ErrNotFound
	}
	return m.members[eventID], nil
}

func (m *memStore) ResolveNames(ctx context.Context, eventID string) ([]string, error) {
	event, ok := m.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	var persisted, respondents, expenseNames []string
	for _, p := range m.members[eventID] {
		persisted = append(persisted, p.Name)
	}
	for _, r := range m.responses[eventID] {
		respondents = append(respondents, r.Respondent)
	}
	for _, x := range m.expenses[eventID] {
		expenseNames = append(expenseNames, x.PayerName)
		if !x.SharedWithAll {
			expenseNames = append(expenseNames, x.Members...)
		}
	}
	names := settlement.ResolveNames([]string{event.CreatorName}, persisted, respondents, expenseNames)
	for _, name := range names {
		m.registerName(eventID, name)
	}
	return names, nil
}

func (m *memStore) Add(ctx context.Context, eventID, name string) (*model.Participant, int, error) {
	if _, ok := m.events[eventID]; !ok {
		return nil, 0, repository.ErrNotFound
	}
	for _, p := range m.members[eventID] {
		if p.Name == name {
			return nil, 0, repository.ErrDuplicateParticipant
		}
	}
	p := m.registerName(eventID, name)
	names, _ := m.ResolveNames(ctx, eventID)
	count := 0
	for i := range m.expenses[eventID] {
		x := &m.expenses[eventID][i]
		x.NormalizePolicy()
		if x.SharedWithAll {
			x.Members = append([]string(nil), names...)
			count++
		}
	}
	return p, count, nil
}

func (m *memStore) SetHidden(ctx context.Context, eventID, name string, hidden bool) error {
	for i := range m.members[eventID] {
		if m.members[eventID][i].Name == name {
			m.members[eventID][i].Hidden = hidden
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) registerName(eventID, name string) *model.Participant {
	for i := range m.members[eventID] {
		if m.members[eventID][i].Name == name {
			return &m.members[eventID][i]
		}
	}
	p := model.Participant{
		ID: uuid.New().String(), EventID: eventID, Name: name, CreatedAt: time.Now().UTC(),
	}
	m.members[eventID] = append(m.members[eventID], p)
	return &m.members[eventID][len(m.members[eventID])-1]
}

// ─── PollStore ────────────────────────────────────────────────────────────────

func (m *memStore) SubmitResponse(ctx context.Context, eventID, respondent string, votes []model.AvailabilityVote) (*model.PollResponse, error) {
	event, ok := m.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, vote := range votes {
		found := false
		for _, c := range event.Candidates {
			if c.ID == vote.CandidateID {
				found = true
				break
			}
		}
		if !found {
			return nil, repository.ErrDateNotCandidate
		}
	}
	resp := model.PollResponse{
		ID: uuid.New().String(), EventID: eventID, Respondent: respondent,
		Votes: votes, CreatedAt: time.Now().UTC(),
	}
	m.responses[eventID] = append(m.responses[eventID], resp)
	m.registerName(eventID, respondent)
	return &resp, nil
}

func (m *memStore) ListResponses(ctx context.Context, eventID string) ([]model.PollResponse, error) {
	return m.responses[eventID], nil
}

// ─── ExpenseStore ─────────────────────────────────────────────────────────────

func (m *memStore) CreateExpense(ctx context.Context, eventID, payerName, description string, amount int64, members []string) (*model.Expense, error) {
	event, ok := m.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !event.HasFinalizedDate() {
		return nil, repository.ErrDateNotFinalized
	}
	m.registerName(eventID, payerName)
	for _, name := range members {
		m.registerName(eventID, name)
	}
	x := model.Expense{
		ID: uuid.New().String(), EventID: eventID, PayerName: payerName,
		Description: description, Amount: amount,
		SharedWithAll: members == nil, CreatedAt: time.Now().UTC(),
	}
	if x.SharedWithAll {
		x.Members, _ = m.ResolveNames(ctx, eventID)
	} else {
		x.Members = settlement.ResolveNames(members)
	}
	m.expenses[eventID] = append(m.expenses[eventID], x)
	return &x, nil
}

func (m *memStore) Delete(ctx context.Context, eventID, expenseID string) error {
	list := m.expenses[eventID]
	for i, x := range list {
		if x.ID == expenseID {
			m.expenses[eventID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) ListExpensesByEvent(ctx context.Context, eventID string) ([]model.Expense, error) {
	list := append([]model.Expense(nil), m.expenses[eventID]...)
	for i := range list {
		list[i].NormalizePolicy()
	}
	return list, nil
}

// expenseStore adapts memStore method names to the ExpenseStore interface
// (Create and ListByEvent collide with the event-side methods).
type expenseStore struct{ *memStore }

func (s expenseStore) Create(ctx context.Context, eventID, payerName, description string, amount int64, members []string) (*model.Expense, error) {
	return s.CreateExpense(ctx, eventID, payerName, description, amount, members)
}

func (s expenseStore) ListByEvent(ctx context.Context, eventID string) ([]model.Expense, error) {
	return s.ListExpensesByEvent(ctx, eventID)
}

func newTestService() (*EventService, *memStore) {
	store := newMemStore()
	return NewEventService(store, store, store, expenseStore{store}), store
}

// newFinalizedEvent creates an event with a finalized date, ready for
// expenses.
func newFinalizedEvent(svc *EventService, creator string) (string, error) {
	ctx := context.Background()
	event, err := svc.CreateEvent(ctx, model.CreateEventRequest{
		Name:           "hanami",
		CreatorName:    creator,
		CandidateDates: []string{"2026-04-04"},
	})
	if err != nil {
		return "", err
	}
	if _, err := svc.FinalizeDate(ctx, event.ID, model.FinalizeDateRequest{Date: "2026-04-04"}); err != nil {
		return "", fmt.Errorf("finalize: %w", err)
	}
	return event.ID, nil
}
