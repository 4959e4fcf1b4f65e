package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bnema/catq/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	next := 0
	return func() string {
		next++
		return fmt.Sprintf("s%d", next)
	}
}

func testItem(n int) *domain.Item {
	return &domain.Item{
		ID:   fmt.Sprintf("q%d", n),
		Stem: fmt.Sprintf("question %d", n),
		Options: []domain.Option{
			{Label: "A", Text: "first"},
			{Label: "B", Text: "second"},
			{Label: "C", Text: "third"},
		},
	}
}

func float(v float64) *float64 { return &v }

func boolean(v bool) *bool { return &v }

func apply(t *testing.T, m Machine, msg Msg) (Machine, []Effect) {
	t.Helper()

	next, effects, err := m.Update(msg)
	require.NoError(t, err, "message %T", msg)
	return next, effects
}

// startedMachine returns a machine awaiting an answer on item 1 for identity.
func startedMachine(t *testing.T, identity domain.Identity) Machine {
	t.Helper()

	m := NewMachine(domain.DefaultItemCap, sequentialIDs())
	m, _ = apply(t, m, IdentityChanged{Identity: identity})
	m, _ = apply(t, m, StartCompleted{SessionID: m.session.ID})
	m, _ = apply(t, m, FetchCompleted{SessionID: m.session.ID, Result: domain.NextItemResult{Item: testItem(1)}})
	require.Equal(t, domain.StatusAwaitingAnswer, m.session.Status)
	return m
}

// answer selects label and completes the submit with result, returning the
// effects produced by the completion.
func answer(t *testing.T, m Machine, label string, result domain.SubmitResult) (Machine, []Effect) {
	t.Helper()

	m, _ = apply(t, m, SelectOption{Label: label})
	m, effects := apply(t, m, Advance{})
	require.Len(t, effects, 1)
	require.Equal(t, domain.OperationSubmit, effects[0].Operation)
	return apply(t, m, SubmitCompleted{SessionID: m.session.ID, Result: result})
}

var snapshotCmp = []cmp.Option{cmpopts.EquateErrors()}

func TestMachineIdentityEmissionsStartOncePerChange(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.DefaultItemCap, sequentialIDs())
	var issued []Effect

	for _, identity := range []domain.Identity{"A", "A", "B", "", "B"} {
		var effects []Effect
		m, effects = apply(t, m, IdentityChanged{Identity: identity})
		if identity == "" {
			assert.Empty(t, effects, "no requests while logged out")
			assert.Equal(t, domain.StatusIdle, m.session.Status)
		}
		issued = append(issued, effects...)
	}

	require.Len(t, issued, 3)
	for _, effect := range issued {
		assert.Equal(t, domain.OperationStart, effect.Operation)
	}
	assert.Equal(t, domain.Identity("A"), issued[0].Identity)
	assert.Equal(t, domain.Identity("B"), issued[1].Identity)
	assert.Equal(t, domain.Identity("B"), issued[2].Identity)
}

func TestMachineDuplicateIdentityDoesNotResetActiveSession(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	m, _ = answer(t, m, "A", domain.SubmitResult{Correct: boolean(true), Theta: float(0.7)})
	m, _ = apply(t, m, FetchCompleted{SessionID: m.session.ID, Result: domain.NextItemResult{Item: testItem(2)}})
	before := m.Snapshot()

	for _, status := range []string{"awaiting", "submitting"} {
		if status == "submitting" {
			m, _ = apply(t, m, SelectOption{Label: "B"})
			m, _ = apply(t, m, Advance{})
			before = m.Snapshot()
		}
		next, effects := apply(t, m, IdentityChanged{Identity: "A"})
		assert.Empty(t, effects, status)
		assert.Empty(t, cmp.Diff(before, next.Snapshot(), snapshotCmp...), status)
		m = next
	}
}

func TestMachineDuplicateIdentityWhileStartingIssuesNoSecondStart(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.DefaultItemCap, sequentialIDs())
	m, effects := apply(t, m, IdentityChanged{Identity: "A"})
	require.Len(t, effects, 1)

	m, effects = apply(t, m, IdentityChanged{Identity: "A"})
	assert.Empty(t, effects)
	assert.Equal(t, "s1", m.session.ID)
}

func TestMachineIdentityComparedWithoutSurroundingSpace(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.DefaultItemCap, sequentialIDs())
	m, effects := apply(t, m, IdentityChanged{Identity: "A"})
	require.Len(t, effects, 1)

	for _, identity := range []domain.Identity{" A", "A\n", "\tA "} {
		var next Machine
		next, effects = apply(t, m, IdentityChanged{Identity: identity})
		assert.Empty(t, effects, "%q", identity)
		assert.Equal(t, "s1", next.session.ID, "%q", identity)
		m = next
	}

	m, effects = apply(t, m, IdentityChanged{Identity: " B "})
	require.Len(t, effects, 1)
	assert.Equal(t, domain.Identity("B"), effects[0].Identity)
	assert.Equal(t, domain.Identity("B"), m.session.Identity)
}

func TestMachineStartFetchesFirstItem(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.DefaultItemCap, sequentialIDs())
	m, effects := apply(t, m, IdentityChanged{Identity: "A"})
	require.Equal(t, []Effect{{Operation: domain.OperationStart, SessionID: "s1", Identity: "A"}}, effects)
	assert.Equal(t, domain.StatusStarting, m.session.Status)
	assert.Nil(t, m.session.CurrentItem)

	m, effects = apply(t, m, StartCompleted{SessionID: "s1"})
	require.Equal(t, []Effect{{Operation: domain.OperationFetch, SessionID: "s1", Identity: "A"}}, effects)
	assert.Equal(t, domain.StatusStarting, m.session.Status)

	m, effects = apply(t, m, FetchCompleted{SessionID: "s1", Result: domain.NextItemResult{Item: testItem(1), Theta: float(0.1)}})
	assert.Empty(t, effects)
	assert.Equal(t, domain.StatusAwaitingAnswer, m.session.Status)
	assert.Equal(t, "q1", m.session.CurrentItem.ID)
	assert.InDelta(t, 0.1, m.session.Theta, 1e-9)
	assert.Zero(t, m.session.ItemIndex)
}

func TestMachineZeroLengthTestFinishesImmediately(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.DefaultItemCap, sequentialIDs())
	m, _ = apply(t, m, IdentityChanged{Identity: "A"})
	m, _ = apply(t, m, StartCompleted{SessionID: "s1"})
	m, effects := apply(t, m, FetchCompleted{SessionID: "s1", Result: domain.NextItemResult{Finished: true}})

	assert.Empty(t, effects)
	assert.Equal(t, domain.StatusFinished, m.session.Status)
	assert.Equal(t, domain.FinishReasonServer, m.session.FinishReason)
	assert.Zero(t, m.session.ItemIndex)
	assert.Nil(t, m.session.CurrentItem)
}

func TestMachineCapForcesFinishedAfterTwentySubmissions(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	for i := 1; i <= domain.DefaultItemCap; i++ {
		var effects []Effect
		m, effects = answer(t, m, "A", domain.SubmitResult{Correct: boolean(i%2 == 0), Theta: float(float64(i) / 10)})
		assert.Equal(t, i, m.session.ItemIndex)
		assert.LessOrEqual(t, m.session.ItemIndex, m.session.ItemCap)

		if i == domain.DefaultItemCap {
			assert.Empty(t, effects, "no fetch once the cap is reached")
			break
		}
		require.Len(t, effects, 1)
		require.Equal(t, domain.OperationFetch, effects[0].Operation)
		m, _ = apply(t, m, FetchCompleted{SessionID: m.session.ID, Result: domain.NextItemResult{Item: testItem(i + 1)}})
	}

	assert.Equal(t, domain.StatusFinished, m.session.Status)
	assert.Equal(t, domain.FinishReasonCap, m.session.FinishReason)
	assert.Equal(t, 20, m.session.ItemIndex)
	assert.Equal(t, 10, m.session.CorrectCount)
	assert.InDelta(t, 2.0, m.session.Theta, 1e-9)

	_, _, err := m.Update(Advance{})
	assert.ErrorIs(t, err, domain.ErrSessionFinished)
}

func TestMachineServerFinishedOnFifthFetch(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	for i := 1; i <= 4; i++ {
		m, _ = answer(t, m, "B", domain.SubmitResult{Correct: boolean(true)})
		result := domain.NextItemResult{Item: testItem(i + 1)}
		if i == 4 {
			result = domain.NextItemResult{Finished: true, Theta: float(1.25)}
		}
		m, _ = apply(t, m, FetchCompleted{SessionID: m.session.ID, Result: result})
	}

	assert.Equal(t, domain.StatusFinished, m.session.Status)
	assert.Equal(t, domain.FinishReasonServer, m.session.FinishReason)
	assert.Equal(t, 4, m.session.ItemIndex)
	assert.Equal(t, 4, m.session.CorrectCount)
	assert.InDelta(t, 1.25, m.session.Theta, 1e-9)
}

func TestMachineServerFinishedOnSubmitTakesPrecedence(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	m, effects := answer(t, m, "A", domain.SubmitResult{Correct: boolean(false), Finished: true})

	assert.Empty(t, effects)
	assert.Equal(t, domain.StatusFinished, m.session.Status)
	assert.Equal(t, domain.FinishReasonServer, m.session.FinishReason)
	assert.Equal(t, 1, m.session.ItemIndex)
}

func TestMachineServerFlagCheckedBeforeCap(t *testing.T) {
	t.Parallel()

	m := NewMachine(1, sequentialIDs())
	m, _ = apply(t, m, IdentityChanged{Identity: "A"})
	m, _ = apply(t, m, StartCompleted{SessionID: "s1"})
	m, _ = apply(t, m, FetchCompleted{SessionID: "s1", Result: domain.NextItemResult{Item: testItem(1)}})
	m, _ = answer(t, m, "A", domain.SubmitResult{Finished: true})

	assert.Equal(t, domain.FinishReasonServer, m.session.FinishReason)
}

func TestMachineAdvanceWithoutSelectionIsRejected(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	before := m.Snapshot()

	next, effects, err := m.Update(Advance{})
	require.ErrorIs(t, err, domain.ErrNoOptionSelected)
	assert.True(t, domain.IsInputError(err))
	assert.Empty(t, effects)
	assert.Empty(t, cmp.Diff(before, next.Snapshot(), snapshotCmp...))
}

func TestMachineFailedSubmissionKeepsStateAndRetryConverges(t *testing.T) {
	t.Parallel()

	result := domain.SubmitResult{Correct: boolean(true), Theta: float(0.4)}

	direct := startedMachine(t, "A")
	direct, directEffects := answer(t, direct, "C", result)

	m := startedMachine(t, "A")
	m, _ = apply(t, m, SelectOption{Label: "C"})
	before := m.Snapshot()

	m, effects := apply(t, m, Advance{})
	require.Len(t, effects, 1)
	assert.Equal(t, domain.Answer{Identity: "A", ItemID: "q1", Option: "C"}, effects[0].Answer)
	assert.Equal(t, domain.StatusSubmitting, m.session.Status)
	assert.Nil(t, m.Snapshot().CurrentItem, "the item leaves the session while it is being submitted")
	assert.Empty(t, m.Snapshot().SelectedOption)

	failure := errors.New("connection reset")
	m, effects = apply(t, m, SubmitCompleted{SessionID: m.session.ID, Err: failure})
	assert.Empty(t, effects, "no automatic retry")

	after := m.Snapshot()
	assert.Equal(t, before.CurrentItem, after.CurrentItem)
	assert.Equal(t, before.ItemIndex, after.ItemIndex)
	assert.Equal(t, before.SelectedOption, after.SelectedOption)
	assert.Equal(t, domain.StatusAwaitingAnswer, after.Status)
	assert.ErrorIs(t, after.Err, failure)
	assert.False(t, after.Busy())

	m, effects = apply(t, m, Advance{})
	require.Len(t, effects, 1)
	assert.Equal(t, domain.OperationSubmit, effects[0].Operation)
	assert.Nil(t, m.Snapshot().Err)

	m, effects = apply(t, m, SubmitCompleted{SessionID: m.session.ID, Result: result})
	assert.Equal(t, directEffects, effects)
	assert.Empty(t, cmp.Diff(direct.Snapshot(), m.Snapshot(), snapshotCmp...))
}

func TestMachineRestartResetsAndStartsBeforeFetching(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	m, _ = answer(t, m, "A", domain.SubmitResult{Correct: boolean(true), Theta: float(1.5)})
	m, _ = apply(t, m, FetchCompleted{SessionID: m.session.ID, Result: domain.NextItemResult{Item: testItem(2)}})
	require.Equal(t, 1, m.session.ItemIndex)

	m, effects := apply(t, m, Restart{})
	require.Equal(t, []Effect{{Operation: domain.OperationStart, SessionID: "s2", Identity: "A"}}, effects)

	snapshot := m.Snapshot()
	assert.Equal(t, domain.StatusStarting, snapshot.Status)
	assert.Zero(t, snapshot.ItemIndex)
	assert.Zero(t, snapshot.CorrectCount)
	assert.Equal(t, domain.BaselineTheta, snapshot.Theta)
	assert.Nil(t, snapshot.CurrentItem)
	assert.Empty(t, snapshot.SelectedOption)
}

func TestMachineFinishOnlyFromFinished(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	_, _, err := m.Update(Finish{})
	require.ErrorIs(t, err, domain.ErrNotFinished)

	m, _ = answer(t, m, "A", domain.SubmitResult{Finished: true})
	m, effects := apply(t, m, Finish{})
	require.Len(t, effects, 1)
	assert.Equal(t, domain.OperationStart, effects[0].Operation)
	assert.Equal(t, domain.Identity("A"), effects[0].Identity)
	assert.Equal(t, domain.StatusStarting, m.session.Status)
}

func TestMachineDuplicateIdentityInFinishedDoesNotRestart(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	m, _ = answer(t, m, "A", domain.SubmitResult{Finished: true})

	m, effects := apply(t, m, IdentityChanged{Identity: "A"})
	assert.Empty(t, effects)
	assert.Equal(t, domain.StatusFinished, m.session.Status)

	m, effects = apply(t, m, IdentityChanged{Identity: "B"})
	require.Len(t, effects, 1)
	assert.Equal(t, domain.Identity("B"), effects[0].Identity)
	assert.Equal(t, domain.StatusStarting, m.session.Status)
}

func TestMachineLateStartForPreviousIdentityIsDiscarded(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.DefaultItemCap, sequentialIDs())
	m, _ = apply(t, m, IdentityChanged{Identity: "U1"})
	m, _ = apply(t, m, IdentityChanged{Identity: "U2"})
	before := m.Snapshot()

	next, effects, err := m.Update(StartCompleted{SessionID: "s1"})
	require.ErrorIs(t, err, ErrStaleResponse)
	assert.Empty(t, effects)
	assert.Empty(t, cmp.Diff(before, next.Snapshot(), snapshotCmp...))

	m, effects = apply(t, m, StartCompleted{SessionID: "s2"})
	require.Len(t, effects, 1)
	assert.Equal(t, domain.Identity("U2"), effects[0].Identity)

	_, _, err = m.Update(FetchCompleted{SessionID: "s1", Result: domain.NextItemResult{Item: testItem(9)}})
	require.ErrorIs(t, err, ErrStaleResponse)

	m, _ = apply(t, m, FetchCompleted{SessionID: "s2", Result: domain.NextItemResult{Item: testItem(1)}})
	assert.Equal(t, domain.Identity("U2"), m.session.Identity)
	assert.Equal(t, "q1", m.session.CurrentItem.ID)
}

func TestMachineLogoutDiscardsInFlightSession(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	m, _ = apply(t, m, SelectOption{Label: "A"})
	m, _ = apply(t, m, Advance{})
	sessionID := m.session.ID

	m, effects := apply(t, m, IdentityChanged{Identity: ""})
	assert.Empty(t, effects)
	assert.Equal(t, domain.StatusIdle, m.session.Status)
	assert.Nil(t, m.session.CurrentItem)
	assert.Empty(t, m.session.Identity)

	_, _, err := m.Update(SubmitCompleted{SessionID: sessionID, Result: domain.SubmitResult{Correct: boolean(true)}})
	require.ErrorIs(t, err, ErrStaleResponse)

	for _, msg := range []Msg{Advance{}, Restart{}, SelectOption{Label: "A"}} {
		_, effects, err := m.Update(msg)
		assert.ErrorIs(t, err, domain.ErrNoSession, "%T", msg)
		assert.Empty(t, effects)
	}
}

func TestMachineRestartMidRequestDropsOldReply(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	m, _ = apply(t, m, SelectOption{Label: "A"})
	m, _ = apply(t, m, Advance{})
	oldID := m.session.ID

	m, _ = apply(t, m, Restart{})
	_, _, err := m.Update(SubmitCompleted{SessionID: oldID, Result: domain.SubmitResult{Correct: boolean(true)}})
	require.ErrorIs(t, err, ErrStaleResponse)
	assert.Zero(t, m.session.ItemIndex)
}

func TestMachineStartFailureRetriesStart(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.DefaultItemCap, sequentialIDs())
	m, _ = apply(t, m, IdentityChanged{Identity: "A"})
	m, effects := apply(t, m, StartCompleted{SessionID: "s1", Err: errors.New("503")})

	assert.Empty(t, effects)
	snapshot := m.Snapshot()
	assert.Equal(t, domain.StatusStarting, snapshot.Status)
	assert.Error(t, snapshot.Err)
	assert.False(t, snapshot.Busy())

	m, effects = apply(t, m, Advance{})
	require.Equal(t, []Effect{{Operation: domain.OperationStart, SessionID: "s1", Identity: "A"}}, effects)
	assert.True(t, m.Snapshot().Busy())
	assert.NoError(t, m.Snapshot().Err)
}

func TestMachineFirstFetchFailureRetriesFetchNotStart(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.DefaultItemCap, sequentialIDs())
	m, _ = apply(t, m, IdentityChanged{Identity: "A"})
	m, _ = apply(t, m, StartCompleted{SessionID: "s1"})
	m, _ = apply(t, m, FetchCompleted{SessionID: "s1", Err: errors.New("timeout")})

	m, effects := apply(t, m, Advance{})
	require.Len(t, effects, 1)
	assert.Equal(t, domain.OperationFetch, effects[0].Operation)
}

func TestMachineFetchFailureAfterSubmitKeepsCountAndRetriesFetch(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	m, _ = answer(t, m, "A", domain.SubmitResult{Correct: boolean(true)})
	m, effects := apply(t, m, FetchCompleted{SessionID: m.session.ID, Err: errors.New("timeout")})
	assert.Empty(t, effects)

	snapshot := m.Snapshot()
	assert.Equal(t, domain.StatusSubmitting, snapshot.Status)
	assert.Equal(t, 1, snapshot.ItemIndex)
	assert.Nil(t, snapshot.CurrentItem)
	assert.Error(t, snapshot.Err)

	m, effects = apply(t, m, Advance{})
	require.Len(t, effects, 1)
	assert.Equal(t, domain.OperationFetch, effects[0].Operation)
	assert.Equal(t, 1, m.session.ItemIndex)

	m, _ = apply(t, m, FetchCompleted{SessionID: m.session.ID, Result: domain.NextItemResult{Item: testItem(2)}})
	assert.Equal(t, domain.StatusAwaitingAnswer, m.session.Status)
	assert.Equal(t, 1, m.session.ItemIndex)
}

func TestMachineInconsistentFetchShowsEmptyState(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.DefaultItemCap, sequentialIDs())
	m, _ = apply(t, m, IdentityChanged{Identity: "A"})
	m, _ = apply(t, m, StartCompleted{SessionID: "s1"})
	m, effects := apply(t, m, FetchCompleted{SessionID: "s1", Result: domain.NextItemResult{}})

	assert.Empty(t, effects)
	snapshot := m.Snapshot()
	assert.True(t, snapshot.NoItem)
	assert.NoError(t, snapshot.Err)
	assert.Equal(t, domain.StatusStarting, snapshot.Status)
	assert.Nil(t, snapshot.CurrentItem)

	m, effects = apply(t, m, Advance{})
	require.Len(t, effects, 1)
	assert.Equal(t, domain.OperationFetch, effects[0].Operation)
	assert.False(t, m.Snapshot().NoItem)
}

func TestMachineSelectOptionRules(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")

	_, _, err := m.Update(SelectOption{Label: "Z"})
	assert.ErrorIs(t, err, domain.ErrUnknownOption)

	m, _ = apply(t, m, SelectOption{Label: "A"})
	m, _ = apply(t, m, SelectOption{Label: "B"})
	assert.Equal(t, "B", m.session.SelectedOption)

	m, _ = apply(t, m, Advance{})
	_, _, err = m.Update(SelectOption{Label: "C"})
	assert.ErrorIs(t, err, domain.ErrBusy)
	_, _, err = m.Update(Advance{})
	assert.ErrorIs(t, err, domain.ErrBusy)
}

func TestMachineSelectionClearedWhenNextItemArrives(t *testing.T) {
	t.Parallel()

	m := startedMachine(t, "A")
	m, effects := answer(t, m, "B", domain.SubmitResult{Theta: float(-0.5)})
	require.Len(t, effects, 1)
	assert.Empty(t, m.session.SelectedOption, "cleared before the next item is requested")

	m, _ = apply(t, m, FetchCompleted{SessionID: m.session.ID, Result: domain.NextItemResult{Item: testItem(2)}})
	assert.Empty(t, m.session.SelectedOption)
	assert.InDelta(t, -0.5, m.session.Theta, 1e-9, "theta persists across items")
}

func TestMachineCurrentItemPresentOnlyWhileAwaitingAnswer(t *testing.T) {
	t.Parallel()

	m := NewMachine(3, sequentialIDs())
	check := func() {
		t.Helper()
		s := m.Snapshot()
		assert.Equal(t, s.Status == domain.StatusAwaitingAnswer, s.CurrentItem != nil, "status %s", s.Status)
	}

	check()
	m, _ = apply(t, m, IdentityChanged{Identity: "A"})
	check()
	m, _ = apply(t, m, StartCompleted{SessionID: m.session.ID})
	check()
	for i := 1; i <= 3; i++ {
		m, _ = apply(t, m, FetchCompleted{SessionID: m.session.ID, Result: domain.NextItemResult{Item: testItem(i)}})
		check()
		m, _ = apply(t, m, SelectOption{Label: "A"})
		m, _ = apply(t, m, Advance{})
		check()
		if i == 2 {
			m, _ = apply(t, m, SubmitCompleted{SessionID: m.session.ID, Err: errors.New("timeout")})
			check()
			m, _ = apply(t, m, Advance{})
			check()
		}
		m, _ = apply(t, m, SubmitCompleted{SessionID: m.session.ID})
		check()
	}
	assert.Equal(t, domain.StatusFinished, m.session.Status)
}
