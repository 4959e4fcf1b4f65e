package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/catq/internal/domain"
	"github.com/google/uuid"
)

// ErrStaleResponse marks a service reply that belongs to a superseded
// session. The reply is dropped without touching state.
var ErrStaleResponse = errors.New("stale response for superseded session")

// Msg is anything the session machine reacts to: identity emissions,
// test-taker commands and completed requests.
type Msg interface {
	isMsg()
}

type IdentityChanged struct {
	Identity domain.Identity
}

type SelectOption struct {
	Label string
}

type Advance struct{}

type Restart struct{}

type Finish struct{}

type StartCompleted struct {
	SessionID string
	Err       error
}

type FetchCompleted struct {
	SessionID string
	Result    domain.NextItemResult
	Err       error
}

type SubmitCompleted struct {
	SessionID string
	Result    domain.SubmitResult
	Err       error
}

func (IdentityChanged) isMsg() {}
func (SelectOption) isMsg()    {}
func (Advance) isMsg()         {}
func (Restart) isMsg()         {}
func (Finish) isMsg()          {}
func (StartCompleted) isMsg()  {}
func (FetchCompleted) isMsg()  {}
func (SubmitCompleted) isMsg() {}

// Effect is a request the machine wants issued. Its result must come back
// as the matching *Completed message carrying the same SessionID.
type Effect struct {
	Operation domain.Operation
	SessionID string
	Identity  domain.Identity
	Answer    domain.Answer
}

// Machine holds the session state and its transitions. It performs no I/O;
// Update returns the requests to issue instead.
type Machine struct {
	session domain.Session
	pending domain.Operation
	retry   domain.Operation
	lastErr error
	noItem  bool
	itemCap int
	newID   func() string

	// inFlight is the answer being submitted. Its item leaves the session
	// while Submitting and comes back if the submission fails.
	inFlight      *domain.Item
	inFlightLabel string
}

func NewMachine(itemCap int, newID func() string) Machine {
	if itemCap <= 0 {
		itemCap = domain.DefaultItemCap
	}
	if newID == nil {
		newID = uuid.NewString
	}

	m := Machine{itemCap: itemCap, newID: newID}
	return m.idle()
}

func (m Machine) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		Session: m.session,
		Pending: m.pending,
		Err:     m.lastErr,
		NoItem:  m.noItem,
	}.Clone()
}

// Update applies msg. A non-nil error means the message was rejected and the
// returned machine equals the receiver.
func (m Machine) Update(msg Msg) (Machine, []Effect, error) {
	switch msg := msg.(type) {
	case IdentityChanged:
		return m.identityChanged(msg.Identity)
	case SelectOption:
		return m.selectOption(msg.Label)
	case Advance:
		return m.advance()
	case Restart:
		if m.session.Status == domain.StatusIdle {
			return m, nil, domain.ErrNoSession
		}
		return m.begin(m.session.Identity)
	case Finish:
		if m.session.Status != domain.StatusFinished {
			return m, nil, domain.ErrNotFinished
		}
		return m.begin(m.session.Identity)
	case StartCompleted:
		return m.startCompleted(msg)
	case FetchCompleted:
		return m.fetchCompleted(msg)
	case SubmitCompleted:
		return m.submitCompleted(msg)
	default:
		return m, nil, fmt.Errorf("unsupported message %T", msg)
	}
}

func (m Machine) identityChanged(identity domain.Identity) (Machine, []Effect, error) {
	identity = domain.Identity(strings.TrimSpace(string(identity)))
	if identity.IsZero() {
		if m.session.Status == domain.StatusIdle {
			return m, nil, nil
		}
		return m.idle(), nil, nil
	}

	// Same identity already owns a session, started or in flight.
	if identity == m.session.Identity && m.session.Status != domain.StatusIdle {
		return m, nil, nil
	}

	return m.begin(identity)
}

func (m Machine) begin(identity domain.Identity) (Machine, []Effect, error) {
	m.session = domain.NewSession(m.newID(), identity, m.itemCap)
	m.clearInFlight()
	m.pending = domain.OperationStart
	m.retry = domain.OperationNone
	m.lastErr = nil
	m.noItem = false

	return m, []Effect{m.effect(domain.OperationStart)}, nil
}

func (m Machine) idle() Machine {
	m.session = domain.Session{Status: domain.StatusIdle, ItemCap: m.itemCap, Theta: domain.BaselineTheta}
	m.clearInFlight()
	m.pending = domain.OperationNone
	m.retry = domain.OperationNone
	m.lastErr = nil
	m.noItem = false
	return m
}

func (m Machine) selectOption(label string) (Machine, []Effect, error) {
	if err := m.commandAllowed(); err != nil {
		return m, nil, err
	}

	item := m.session.CurrentItem
	if m.session.Status != domain.StatusAwaitingAnswer || item == nil {
		return m, nil, fmt.Errorf("%w: no current item", domain.ErrUnknownOption)
	}
	if !item.HasOption(label) {
		return m, nil, fmt.Errorf("%w: %q", domain.ErrUnknownOption, label)
	}

	m.session.SelectedOption = label
	return m, nil, nil
}

func (m Machine) advance() (Machine, []Effect, error) {
	if err := m.commandAllowed(); err != nil {
		return m, nil, err
	}

	if m.retry != domain.OperationNone {
		op := m.retry
		m.pending = op
		m.retry = domain.OperationNone
		m.lastErr = nil
		m.noItem = false
		return m, []Effect{m.effect(op)}, nil
	}

	if m.session.Status != domain.StatusAwaitingAnswer || m.session.CurrentItem == nil {
		return m, nil, domain.ErrBusy
	}
	if m.session.SelectedOption == "" {
		return m, nil, domain.ErrNoOptionSelected
	}

	m.inFlight = m.session.CurrentItem
	m.inFlightLabel = m.session.SelectedOption
	m.session.CurrentItem = nil
	m.session.SelectedOption = ""
	m.session.Status = domain.StatusSubmitting
	m.pending = domain.OperationSubmit
	m.lastErr = nil
	return m, []Effect{m.effect(domain.OperationSubmit)}, nil
}

func (m Machine) commandAllowed() error {
	switch {
	case m.session.Status == domain.StatusIdle:
		return domain.ErrNoSession
	case m.session.Status == domain.StatusFinished:
		return domain.ErrSessionFinished
	case m.pending != domain.OperationNone:
		return domain.ErrBusy
	default:
		return nil
	}
}

func (m Machine) startCompleted(msg StartCompleted) (Machine, []Effect, error) {
	if m.stale(msg.SessionID, domain.OperationStart) {
		return m, nil, ErrStaleResponse
	}

	if msg.Err != nil {
		m.pending = domain.OperationNone
		m.retry = domain.OperationStart
		m.lastErr = msg.Err
		return m, nil, nil
	}

	m.pending = domain.OperationFetch
	return m, []Effect{m.effect(domain.OperationFetch)}, nil
}

func (m Machine) fetchCompleted(msg FetchCompleted) (Machine, []Effect, error) {
	if m.stale(msg.SessionID, domain.OperationFetch) {
		return m, nil, ErrStaleResponse
	}

	if msg.Err != nil {
		m.pending = domain.OperationNone
		m.retry = domain.OperationFetch
		m.lastErr = msg.Err
		return m, nil, nil
	}

	result := msg.Result
	if result.Theta != nil {
		m.session.Theta = *result.Theta
	}

	if result.Finished {
		return m.finished(domain.FinishReasonServer), nil, nil
	}

	if result.Item == nil || result.Item.Validate() != nil {
		m.pending = domain.OperationNone
		m.retry = domain.OperationFetch
		m.lastErr = nil
		m.noItem = true
		return m, nil, nil
	}

	m.session.CurrentItem = result.Item
	m.session.SelectedOption = ""
	m.session.Status = domain.StatusAwaitingAnswer
	m.pending = domain.OperationNone
	m.lastErr = nil
	m.noItem = false
	return m, nil, nil
}

func (m Machine) submitCompleted(msg SubmitCompleted) (Machine, []Effect, error) {
	if m.stale(msg.SessionID, domain.OperationSubmit) {
		return m, nil, ErrStaleResponse
	}

	if msg.Err != nil {
		m.session.CurrentItem = m.inFlight
		m.session.SelectedOption = m.inFlightLabel
		m.clearInFlight()
		m.session.Status = domain.StatusAwaitingAnswer
		m.pending = domain.OperationNone
		m.lastErr = msg.Err
		return m, nil, nil
	}

	result := msg.Result
	m.session.ItemIndex++
	if result.Correct != nil && *result.Correct {
		m.session.CorrectCount++
	}
	if result.Theta != nil {
		m.session.Theta = *result.Theta
	}
	m.clearInFlight()
	m.lastErr = nil

	// The server's flag wins over the local cap.
	if result.Finished {
		return m.finished(domain.FinishReasonServer), nil, nil
	}
	if m.session.ItemIndex >= m.session.ItemCap {
		return m.finished(domain.FinishReasonCap), nil, nil
	}

	m.pending = domain.OperationFetch
	return m, []Effect{m.effect(domain.OperationFetch)}, nil
}

func (m Machine) finished(reason domain.FinishReason) Machine {
	m.session.Status = domain.StatusFinished
	m.session.CurrentItem = nil
	m.session.SelectedOption = ""
	m.session.FinishReason = reason
	m.clearInFlight()
	m.pending = domain.OperationNone
	m.retry = domain.OperationNone
	m.lastErr = nil
	m.noItem = false
	return m
}

func (m Machine) stale(sessionID string, op domain.Operation) bool {
	return m.session.Status == domain.StatusIdle || sessionID != m.session.ID || m.pending != op
}

func (m Machine) effect(op domain.Operation) Effect {
	effect := Effect{
		Operation: op,
		SessionID: m.session.ID,
		Identity:  m.session.Identity,
	}
	if op == domain.OperationSubmit && m.inFlight != nil {
		effect.Answer = domain.Answer{
			Identity: m.session.Identity,
			ItemID:   m.inFlight.ID,
			Option:   m.inFlightLabel,
		}
	}
	return effect
}

func (m *Machine) clearInFlight() {
	m.inFlight = nil
	m.inFlightLabel = ""
}
