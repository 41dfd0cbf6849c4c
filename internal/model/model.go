// Package model defines the core domain types for the scheduling and
// expense-splitting service.
package model

import "time"

// Event represents a schedulable occasion with candidate dates, participants,
// and (once a date is finalized) an expense ledger.
type Event struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	CreatorName   string          `json:"creator_name"`
	FinalizedDate *string         `json:"finalized_date,omitempty"` // YYYY-MM-DD
	Candidates    []CandidateDate `json:"candidates,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// HasFinalizedDate reports whether the event date has been decided.
// Expenses may only be recorded after finalization.
func (e *Event) HasFinalizedDate() bool {
	return e.FinalizedDate != nil && *e.FinalizedDate != ""
}

// CandidateDate is one proposed date for an event.
type CandidateDate struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	Date    string `json:"date"` // YYYY-MM-DD
}

// Availability is a respondent's answer for one candidate date.
type Availability string

const (
	AvailabilityYes   Availability = "yes"
	AvailabilityMaybe Availability = "maybe"
	AvailabilityNo    Availability = "no"
)

// Valid reports whether the availability is one of the known answers.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityYes, AvailabilityMaybe, AvailabilityNo:
		return true
	}
	return false
}

// PollResponse records one respondent's availability across an event's
// candidate dates. Respondents become participants of the event.
type PollResponse struct {
	ID         string             `json:"id"`
	EventID    string             `json:"event_id"`
	Respondent string             `json:"respondent"`
	Votes      []AvailabilityVote `json:"votes"`
	CreatedAt  time.Time          `json:"created_at"`
}

// AvailabilityVote pairs a candidate date with an answer.
type AvailabilityVote struct {
	CandidateID  string       `json:"candidate_id"`
	Availability Availability `json:"availability"`
}

// Participant is a named individual associated with an event. A name is an
// identity: two occurrences of the same name are the same person. Once a
// participant is referenced by money it is never deleted, only hidden from
// history lists.
type Participant struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"created_at"`
}

// Expense is a single payment by one participant, shared among a group.
//
// Exactly one sharing policy applies: when SharedWithAll is true the cost is
// split across whatever the event's participant set is at settlement time and
// Members is only a cached snapshot; otherwise Members is the fixed explicit
// share group set at creation.
type Expense struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	PayerName     string    `json:"payer_name"`
	Description   string    `json:"description"`
	Amount        int64     `json:"amount"` // whole currency units, always > 0
	SharedWithAll bool      `json:"shared_with_all"`
	Members       []string  `json:"members"`
	CreatedAt     time.Time `json:"created_at"`
}

// NormalizePolicy migrates a legacy row to the tagged policy representation.
// Older ledgers stored "shared with all" as an empty member list with no
// flag; such rows mean SharedWithAll. Returns true when the row was migrated.
func (x *Expense) NormalizePolicy() bool {
	if !x.SharedWithAll && len(x.Members) == 0 {
		x.SharedWithAll = true
		return true
	}
	return false
}

// Transfer is a single settlement instruction moving money from a net debtor
// to a net creditor. Transfers are recomputed from scratch on every request
// and never persisted.
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// BalanceEntry is one participant's derived position in the ledger.
type BalanceEntry struct {
	Name      string `json:"name"`
	Paid      int64  `json:"paid"`
	ShouldPay int64  `json:"should_pay"`
	Net       int64  `json:"net"` // positive = is owed money
}

// ─── Request / response payloads ─────────────────────────────────────────────

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name           string   `json:"name"`
	CreatorName    string   `json:"creator_name"`
	CandidateDates []string `json:"candidate_dates"` // YYYY-MM-DD
}

// PollResponseRequest is the payload for submitting availability.
type PollResponseRequest struct {
	Respondent string             `json:"respondent"`
	Votes      []AvailabilityVote `json:"votes"`
}

// FinalizeDateRequest picks one candidate date as the event date.
type FinalizeDateRequest struct {
	Date string `json:"date"` // YYYY-MM-DD, must be one of the candidates
}

// AddParticipantRequest is the payload for explicitly adding a participant.
type AddParticipantRequest struct {
	Name string `json:"name"`
}

// AddParticipantResponse reports how many SharedWithAll expenses had their
// member snapshot rebuilt to include the new participant.
type AddParticipantResponse struct {
	Participant        Participant `json:"participant"`
	ResnapshottedCount int         `json:"resnapshotted_count"`
}

// RecordExpenseRequest is the payload for recording an expense.
// A nil Members field means SharedWithAll; an explicitly empty list is
// invalid input and rejected.
type RecordExpenseRequest struct {
	PayerName   string   `json:"payer_name"`
	Description string   `json:"description"`
	Amount      int64    `json:"amount"`
	Members     []string `json:"members"`
}

// SettlementResponse is the result of a settlement run.
type SettlementResponse struct {
	Balances  []BalanceEntry `json:"balances"`
	Transfers []Transfer     `json:"transfers"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
