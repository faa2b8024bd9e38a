package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chcemvediet/portal/src/domain/workdays"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func testRules() Rules {
	return Rules{
		Calendar:      workdays.NewCalendar(time.UTC, workdays.SlovakHolidays()),
		DeadlineDays:  DefaultDeadlineDays(),
		MaxExtensions: 1,
	}
}

func mainBranch() *Branch {
	return &Branch{ID: 1, InforequestID: 1, ObligeeID: 1, ObligeeSnapshotID: 1}
}

func action(id int64, typ ActionType, effective time.Time) *Action {
	return &Action{
		ID:            id,
		BranchID:      1,
		Type:          typ,
		ContentType:   ContentTypePlain,
		EffectiveDate: effective,
	}
}

func replayed(t *testing.T, actions ...*Action) *BranchState {
	state, err := Replay(mainBranch(), actions, testRules())
	require.NoError(t, err)
	return state
}

func TestReplayRequestStartsObligeeDeadline(t *testing.T) {
	t.Parallel()
	state := replayed(t, action(1, ActionRequest, date(2024, time.March, 4)))

	require.NotNil(t, state.ObligeeDeadline)
	assert.Nil(t, state.ApplicantDeadline)
	assert.False(t, state.Terminal)

	deadline, err := state.ObligeeDeadline.Date(testRules().Calendar)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 14), deadline)

	remaining, err := state.ObligeeDeadline.RemainingAt(testRules().Calendar, date(2024, time.March, 14))
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	missed, err := state.ObligeeDeadline.MissedAt(testRules().Calendar, date(2024, time.March, 15))
	require.NoError(t, err)
	assert.True(t, missed)
}

func TestReplayOrdersByEffectiveDateThenId(t *testing.T) {
	t.Parallel()
	// Handed over out of order; the fold must still see REQUEST first.
	state := replayed(t,
		action(2, ActionConfirmation, date(2024, time.March, 6)),
		action(1, ActionRequest, date(2024, time.March, 4)),
	)

	require.NotNil(t, state.ObligeeDeadline)
	assert.Equal(t, date(2024, time.March, 6), state.ObligeeDeadline.BaseDate)
	assert.Equal(t, ActionConfirmation, state.LastAction().Type)
}

func TestExtensionArithmetic(t *testing.T) {
	t.Parallel()
	state := replayed(t, action(1, ActionRequest, date(2024, time.March, 4)))

	days := 5
	extension := action(2, ActionExtension, date(2024, time.March, 7))
	extension.ExtensionDays = &days
	require.NoError(t, state.Append(extension))

	assert.Equal(t, 1, state.Extensions)
	require.NotNil(t, state.ObligeeDeadline)
	assert.Equal(t, 13, state.ObligeeDeadline.TotalDays())

	deadline, err := state.ObligeeDeadline.Date(testRules().Calendar)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 21), deadline)

	// The cap is one extension per branch.
	next, err := state.ExpectedNext(date(2024, time.March, 8))
	require.NoError(t, err)
	assert.NotContains(t, next, ActionExtension)

	another := action(3, ActionExtension, date(2024, time.March, 8))
	another.ExtensionDays = &days
	assert.ErrorIs(t, state.Append(another), ErrIllegalAction)
}

func TestClarificationSuspendsAndRestoresSpan(t *testing.T) {
	t.Parallel()
	state := replayed(t, action(1, ActionRequest, date(2024, time.March, 4)))

	// Four of the eight days consumed by 2024-03-08.
	require.NoError(t, state.Append(action(2, ActionClarificationRequest, date(2024, time.March, 8))))
	assert.Nil(t, state.ObligeeDeadline)
	require.NotNil(t, state.ApplicantDeadline)
	assert.Equal(t, 7, state.ApplicantDeadline.TotalDays())

	response := action(3, ActionClarificationResponse, date(2024, time.March, 12))
	require.NoError(t, state.Append(response))

	assert.Nil(t, state.ApplicantDeadline)
	require.NotNil(t, state.ObligeeDeadline)
	assert.Equal(t, 4, state.ObligeeDeadline.TotalDays())
	require.NotNil(t, response.DeadlineDays)
	assert.Equal(t, 4, *response.DeadlineDays)

	deadline, err := state.ObligeeDeadline.Date(testRules().Calendar)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 18), deadline)
}

func TestOpeningActionIsTheOnlyLegalFirst(t *testing.T) {
	t.Parallel()
	state := replayed(t)

	next, err := state.ExpectedNext(date(2024, time.March, 4))
	require.NoError(t, err)
	assert.Equal(t, []ActionType{ActionRequest}, next)

	level := DisclosureFull
	disclosure := action(1, ActionDisclosure, date(2024, time.March, 4))
	disclosure.DisclosureLevel = &level
	assert.ErrorIs(t, state.Append(disclosure), ErrIllegalAction)

	advanced := &Branch{ID: 2, InforequestID: 1, ObligeeID: 2, ObligeeSnapshotID: 2, AdvancedByID: new(int64)}
	advancedState, err := Replay(advanced, nil, testRules())
	require.NoError(t, err)
	next, err = advancedState.ExpectedNext(date(2024, time.March, 4))
	require.NoError(t, err)
	assert.Equal(t, []ActionType{ActionAdvancedRequest}, next)
}

func TestAppealRequiresMissedDeadline(t *testing.T) {
	t.Parallel()
	state := replayed(t, action(1, ActionRequest, date(2024, time.March, 4)))

	// On the last full day the obligee may still answer.
	next, err := state.ExpectedNext(date(2024, time.March, 14))
	require.NoError(t, err)
	assert.NotContains(t, next, ActionAppeal)
	assert.NotContains(t, next, ActionExpiration)

	next, err = state.ExpectedNext(date(2024, time.March, 15))
	require.NoError(t, err)
	assert.Contains(t, next, ActionAppeal)
	assert.Contains(t, next, ActionExpiration)

	early := action(2, ActionAppeal, date(2024, time.March, 14))
	assert.ErrorIs(t, state.Append(early), ErrIllegalAction)

	late := action(3, ActionAppeal, date(2024, time.March, 15))
	require.NoError(t, state.Append(late))
	require.NotNil(t, state.ObligeeDeadline)
	assert.Equal(t, 30, state.ObligeeDeadline.TotalDays())
}

func TestRefusalOpensAppealWindow(t *testing.T) {
	t.Parallel()
	state := replayed(t, action(1, ActionRequest, date(2024, time.March, 4)))

	refusal := action(2, ActionRefusal, date(2024, time.March, 11))
	refusal.RefusalReasons = NewReasonSet(ReasonPersonal)
	require.NoError(t, state.Append(refusal))

	assert.True(t, state.Terminal)
	assert.Nil(t, state.ObligeeDeadline)
	require.NotNil(t, state.ApplicantDeadline)
	assert.Equal(t, 15, state.ApplicantDeadline.TotalDays())

	next, err := state.ExpectedNext(date(2024, time.March, 12))
	require.NoError(t, err)
	assert.Contains(t, next, ActionAppeal)
	assert.NotContains(t, next, ActionApplicantClose)
}

func TestPartialDisclosureIsAppealable(t *testing.T) {
	t.Parallel()
	state := replayed(t, action(1, ActionRequest, date(2024, time.March, 4)))

	level := DisclosurePartial
	disclosure := action(2, ActionDisclosure, date(2024, time.March, 11))
	disclosure.DisclosureLevel = &level
	require.NoError(t, state.Append(disclosure))

	assert.False(t, state.Terminal)
	require.NotNil(t, state.ApplicantDeadline)

	next, err := state.ExpectedNext(date(2024, time.March, 12))
	require.NoError(t, err)
	assert.Contains(t, next, ActionAppeal)
	assert.Contains(t, next, ActionApplicantClose)
}

func TestFullDisclosureTerminates(t *testing.T) {
	t.Parallel()
	state := replayed(t, action(1, ActionRequest, date(2024, time.March, 4)))

	level := DisclosureFull
	disclosure := action(2, ActionDisclosure, date(2024, time.March, 11))
	disclosure.DisclosureLevel = &level
	require.NoError(t, state.Append(disclosure))

	assert.True(t, state.Terminal)
	assert.Nil(t, state.ObligeeDeadline)
	assert.Nil(t, state.ApplicantDeadline)
	assert.Nil(t, disclosure.DeadlineDays)

	next, err := state.ExpectedNext(date(2024, time.March, 12))
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestRemandmentReopensBranch(t *testing.T) {
	t.Parallel()
	state := replayed(t, action(1, ActionRequest, date(2024, time.March, 4)))

	refusal := action(2, ActionRefusal, date(2024, time.March, 11))
	refusal.RefusalReasons = NewReasonSet()
	require.NoError(t, state.Append(refusal))
	require.NoError(t, state.Append(action(3, ActionAppeal, date(2024, time.March, 13))))
	require.NoError(t, state.Append(action(4, ActionRemandment, date(2024, time.March, 20))))

	assert.False(t, state.Terminal)
	require.NotNil(t, state.ObligeeDeadline)
	assert.Equal(t, 13, state.ObligeeDeadline.TotalDays())
}

func TestOutOfOrderDateRejected(t *testing.T) {
	t.Parallel()
	state := replayed(t, action(1, ActionRequest, date(2024, time.March, 4)))

	confirmation := action(2, ActionConfirmation, date(2024, time.March, 1))
	assert.ErrorIs(t, state.Append(confirmation), ErrOutOfOrderDate)
}

func TestAppendAfterCloseRejected(t *testing.T) {
	t.Parallel()
	state := replayed(t, action(1, ActionRequest, date(2024, time.March, 4)))
	require.NoError(t, state.Append(action(2, ActionApplicantClose, date(2024, time.March, 6))))

	assert.True(t, state.Terminal)
	confirmation := action(3, ActionConfirmation, date(2024, time.March, 7))
	assert.ErrorIs(t, state.Append(confirmation), ErrIllegalAction)
}

func TestValidatePayloadRules(t *testing.T) {
	t.Parallel()
	days := 5
	level := DisclosureFull

	tries := map[string]struct {
		action *Action
		err    error
	}{
		"extension without days": {
			action(1, ActionExtension, date(2024, time.March, 4)),
			ErrMissingRequiredField,
		},
		"disclosure without level": {
			action(1, ActionDisclosure, date(2024, time.March, 4)),
			ErrMissingRequiredField,
		},
		"refusal without reasons": {
			action(1, ActionRefusal, date(2024, time.March, 4)),
			ErrMissingRequiredField,
		},
		"reasons on confirmation": {
			func() *Action {
				a := action(1, ActionConfirmation, date(2024, time.March, 4))
				a.RefusalReasons = NewReasonSet()
				return a
			}(),
			ErrForbiddenField,
		},
		"extension days on request": {
			func() *Action {
				a := action(1, ActionRequest, date(2024, time.March, 4))
				a.ExtensionDays = &days
				return a
			}(),
			ErrForbiddenField,
		},
		"file number on applicant action": {
			func() *Action {
				a := action(1, ActionAppeal, date(2024, time.March, 4))
				a.FileNumber = "ABC/123"
				return a
			}(),
			ErrForbiddenField,
		},
		"missing effective date": {
			action(1, ActionRequest, time.Time{}),
			ErrMissingRequiredField,
		},
		"valid disclosure": {
			func() *Action {
				a := action(1, ActionDisclosure, date(2024, time.March, 4))
				a.DisclosureLevel = &level
				return a
			}(),
			nil,
		},
	}
	for name, try := range tries {
		name, try := name, try
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := try.action.Validate()
			if try.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, try.err)
			}
		})
	}
}
