package domain

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/chcemvediet/portal/src/domain/workdays"
)

// Rules bundles the configured tunables the state machine derivation needs.
type Rules struct {
	Calendar *workdays.Calendar

	// DeadlineDays maps action types to the working-day span they start.
	// Types that set no deadline are absent.
	DeadlineDays map[ActionType]int

	// MaxExtensions caps EXTENSION actions per branch.
	MaxExtensions int
}

// DefaultDeadlineDays is the statutory working-day table. REQUEST through
// REMANDMENT and ADVANCED_REQUEST start obligee deadlines; ADVANCEMENT,
// CLARIFICATION_REQUEST, DISCLOSURE, REFUSAL and EXPIRATION start applicant
// deadlines.
func DefaultDeadlineDays() map[ActionType]int {
	return map[ActionType]int{
		ActionRequest:               8,
		ActionClarificationResponse: 8,
		ActionAppeal:                30,
		ActionConfirmation:          8,
		ActionAdvancement:           60,
		ActionClarificationRequest:  7,
		ActionDisclosure:            15,
		ActionRefusal:               15,
		ActionRemandment:            13,
		ActionAdvancedRequest:       13,
		ActionExpiration:            60,
	}
}

type DeadlineKind int16

const (
	DeadlineObligee DeadlineKind = iota + 1
	DeadlineApplicant
)

func (self DeadlineKind) String() string {
	switch self {
	case DeadlineObligee:
		return "obligee"
	case DeadlineApplicant:
		return "applicant"
	default:
		return "unknown"
	}
}

// Deadline is a pending working-day deadline derived from the action list.
// The date is Advance(BaseDate, BaseDays + ExtensionDays).
type Deadline struct {
	Kind DeadlineKind

	// Action is the action that set the deadline; its LastDeadlineReminder
	// gates reminder emission.
	Action *Action

	BaseDate      time.Time
	BaseDays      int
	ExtensionDays int
}

func (self *Deadline) TotalDays() int {
	return self.BaseDays + self.ExtensionDays
}

func (self *Deadline) Date(calendar *workdays.Calendar) (time.Time, error) {
	return calendar.Advance(self.BaseDate, self.TotalDays())
}

// RemainingAt returns the working days left at the given date; zero on the
// last full day, negative once missed.
func (self *Deadline) RemainingAt(calendar *workdays.Calendar, at time.Time) (int, error) {
	passed, err := calendar.Between(self.BaseDate, at)
	if err != nil {
		return 0, err
	}
	return self.TotalDays() - passed, nil
}

func (self *Deadline) MissedAt(calendar *workdays.Calendar, at time.Time) (bool, error) {
	remaining, err := self.RemainingAt(calendar, at)
	return remaining < 0, err
}

// BranchState is the derived state of a branch: a pure fold over its action
// list in (effective_date, id) order. It is never stored.
type BranchState struct {
	Branch  *Branch
	Actions []*Action

	ObligeeDeadline   *Deadline
	ApplicantDeadline *Deadline

	// Extensions counts EXTENSION actions seen so far.
	Extensions int

	// Terminal is true after a terminating action that was not subsequently
	// remanded: full DISCLOSURE, REFUSAL, AFFIRMATION, REVERSION,
	// EXPIRATION, APPEAL_EXPIRATION or the applicant's close.
	Terminal bool

	// suspendedObligeeDays is the unconsumed portion of the obligee span at
	// the moment a clarification request interrupted it; a clarification
	// response restores it instead of starting a fresh span.
	suspendedObligeeDays *int

	rules Rules
}

// Replay derives the branch state from its actions. The slice is reordered
// in place by (effective_date, id); ties break on insertion order.
func Replay(branch *Branch, actions []*Action, rules Rules) (*BranchState, error) {
	sort.SliceStable(actions, func(i, j int) bool {
		if !actions[i].EffectiveDate.Equal(actions[j].EffectiveDate) {
			return actions[i].EffectiveDate.Before(actions[j].EffectiveDate)
		}
		return actions[i].ID < actions[j].ID
	})

	state := &BranchState{Branch: branch, rules: rules}
	for _, action := range actions {
		if err := state.apply(action); err != nil {
			return nil, errors.WithMessagef(err, "replaying action %d", action.ID)
		}
	}
	return state, nil
}

func (self *BranchState) LastAction() *Action {
	if len(self.Actions) == 0 {
		return nil
	}
	return self.Actions[len(self.Actions)-1]
}

// days returns the working-day span the action starts: the span recorded on
// the action itself if any, the configured default otherwise.
func (self *BranchState) days(action *Action) int {
	if action.DeadlineDays != nil {
		return *action.DeadlineDays
	}
	return self.rules.DeadlineDays[action.Type]
}

func (self *BranchState) setObligeeDeadline(action *Action, days int) {
	self.ObligeeDeadline = &Deadline{
		Kind:     DeadlineObligee,
		Action:   action,
		BaseDate: action.EffectiveDate,
		BaseDays: days,
	}
}

func (self *BranchState) setApplicantDeadline(action *Action, days int) {
	self.ApplicantDeadline = &Deadline{
		Kind:     DeadlineApplicant,
		Action:   action,
		BaseDate: action.EffectiveDate,
		BaseDays: days,
	}
}

func (self *BranchState) apply(action *Action) error {
	switch action.Type {
	case ActionRequest, ActionAdvancedRequest, ActionConfirmation:
		self.setObligeeDeadline(action, self.days(action))
		self.ApplicantDeadline = nil
		self.Terminal = false

	case ActionClarificationRequest:
		if self.ObligeeDeadline != nil {
			remaining, err := self.ObligeeDeadline.RemainingAt(self.rules.Calendar, action.EffectiveDate)
			if err != nil {
				return err
			}
			if remaining < 0 {
				remaining = 0
			}
			self.suspendedObligeeDays = &remaining
			self.ObligeeDeadline = nil
		}
		self.setApplicantDeadline(action, self.days(action))

	case ActionClarificationResponse:
		days := self.days(action)
		if action.DeadlineDays == nil && self.suspendedObligeeDays != nil {
			days = *self.suspendedObligeeDays
		}
		self.suspendedObligeeDays = nil
		self.setObligeeDeadline(action, days)
		self.ApplicantDeadline = nil

	case ActionExtension:
		// Legality (pending deadline, cap) is checked before append; a
		// historical extension without a pending deadline is ignored.
		if self.ObligeeDeadline != nil && action.ExtensionDays != nil {
			self.ObligeeDeadline.ExtensionDays += *action.ExtensionDays
		}
		self.Extensions += 1

	case ActionAdvancement:
		self.ObligeeDeadline = nil
		self.setApplicantDeadline(action, self.days(action))

	case ActionDisclosure:
		self.ObligeeDeadline = nil
		if action.DisclosureLevel != nil && *action.DisclosureLevel == DisclosureFull {
			self.ApplicantDeadline = nil
			self.Terminal = true
		} else {
			self.setApplicantDeadline(action, self.days(action))
		}

	case ActionRefusal:
		self.ObligeeDeadline = nil
		self.setApplicantDeadline(action, self.days(action))
		self.Terminal = true

	case ActionAppeal:
		self.ApplicantDeadline = nil
		self.setObligeeDeadline(action, self.days(action))
		self.Terminal = false

	case ActionAffirmation, ActionReversion, ActionAppealExpiration, ActionApplicantClose:
		self.ObligeeDeadline = nil
		self.ApplicantDeadline = nil
		self.Terminal = true

	case ActionRemandment:
		self.ApplicantDeadline = nil
		self.setObligeeDeadline(action, self.days(action))
		self.Terminal = false

	case ActionExpiration:
		self.ObligeeDeadline = nil
		self.setApplicantDeadline(action, self.days(action))
		self.Terminal = true

	default:
		return errors.Errorf("unknown action type %d", action.Type)
	}

	self.Actions = append(self.Actions, action)
	return nil
}

// nextByLast is the unconditional part of the legality matrix, indexed by the
// last action's type. Conditional transitions (appeal on a missed deadline,
// extension under the cap, engine-appended expirations, the applicant close)
// are added in ExpectedNext.
var nextByLast = map[ActionType][]ActionType{
	ActionRequest:               {ActionConfirmation, ActionExtension, ActionAdvancement, ActionClarificationRequest, ActionDisclosure, ActionRefusal},
	ActionAdvancedRequest:       {ActionConfirmation, ActionExtension, ActionAdvancement, ActionClarificationRequest, ActionDisclosure, ActionRefusal},
	ActionConfirmation:          {ActionExtension, ActionAdvancement, ActionClarificationRequest, ActionDisclosure, ActionRefusal},
	ActionClarificationRequest:  {ActionClarificationRequest, ActionClarificationResponse},
	ActionClarificationResponse: {ActionExtension, ActionAdvancement, ActionClarificationRequest, ActionDisclosure, ActionRefusal},
	ActionExtension:             {ActionExtension, ActionDisclosure, ActionRefusal},
	ActionAdvancement:           {ActionAppeal},
	ActionDisclosure:            {},
	ActionRefusal:               {ActionAppeal},
	ActionAppeal:                {ActionAffirmation, ActionReversion, ActionRemandment},
	ActionAffirmation:           {},
	ActionReversion:             {},
	ActionRemandment:            {ActionExtension, ActionDisclosure, ActionRefusal},
	ActionExpiration:            {ActionAppeal},
	ActionAppealExpiration:      {},
	ActionApplicantClose:        {},
}

// deadlineMissedAppeal lists last-action types after which an appeal becomes
// legal only once the obligee deadline is missed.
var deadlineMissedAppeal = map[ActionType]struct{}{
	ActionRequest:               {},
	ActionAdvancedRequest:       {},
	ActionConfirmation:          {},
	ActionClarificationResponse: {},
	ActionExtension:             {},
	ActionRemandment:            {},
}

// ExpectedNext returns the set of action types legal to append, with
// deadline-dependent transitions evaluated at the given date.
func (self *BranchState) ExpectedNext(at time.Time) ([]ActionType, error) {
	last := self.LastAction()
	if last == nil {
		return []ActionType{self.Branch.OpeningType()}, nil
	}

	var next []ActionType
	for _, typ := range nextByLast[last.Type] {
		if typ == ActionExtension {
			if self.ObligeeDeadline == nil || self.Extensions >= self.rules.MaxExtensions {
				continue
			}
		}
		next = append(next, typ)
	}

	missed := false
	if self.ObligeeDeadline != nil {
		var err error
		if missed, err = self.ObligeeDeadline.MissedAt(self.rules.Calendar, at); err != nil {
			return nil, err
		}
	}

	if _, conditional := deadlineMissedAppeal[last.Type]; conditional && missed {
		next = append(next, ActionAppeal)
	}
	if last.Type == ActionDisclosure && last.DisclosureLevel != nil && *last.DisclosureLevel != DisclosureFull {
		next = append(next, ActionAppeal)
	}

	if missed {
		if last.Type == ActionAppeal {
			next = append(next, ActionAppealExpiration)
		} else {
			next = append(next, ActionExpiration)
		}
	}

	if !self.Terminal {
		next = append(next, ActionApplicantClose)
	}
	return next, nil
}

// CanAppend checks the action against the payload rules, the date ordering
// invariant and the legality matrix. Deadline conditions are evaluated at the
// action's effective date.
func (self *BranchState) CanAppend(action *Action) error {
	if err := action.Validate(); err != nil {
		return err
	}

	if first := self.firstAction(); first != nil && action.EffectiveDate.Before(first.EffectiveDate) {
		return errors.WithMessagef(ErrOutOfOrderDate,
			"%s before branch start %s",
			action.EffectiveDate.Format("2006-01-02"), first.EffectiveDate.Format("2006-01-02"))
	}

	expected, err := self.ExpectedNext(action.EffectiveDate)
	if err != nil {
		return err
	}
	for _, typ := range expected {
		if typ == action.Type {
			return nil
		}
	}
	return IllegalActionf("%s not in expected next %v", action.Type, expected)
}

// Append applies the action after CanAppend passes. The action's
// DeadlineDays is filled in from NextDeadlineDays when unset.
func (self *BranchState) Append(action *Action) error {
	if err := self.CanAppend(action); err != nil {
		return err
	}
	if action.DeadlineDays == nil {
		action.DeadlineDays = self.NextDeadlineDays(action)
	}
	return self.apply(action)
}

// NextDeadlineDays computes the working-day span the action would start, or
// nil if it starts none. Clarification responses restore the suspended
// remainder of the interrupted obligee span.
func (self *BranchState) NextDeadlineDays(action *Action) *int {
	switch action.Type {
	case ActionClarificationResponse:
		if self.suspendedObligeeDays != nil {
			days := *self.suspendedObligeeDays
			return &days
		}
	case ActionDisclosure:
		if action.DisclosureLevel != nil && *action.DisclosureLevel == DisclosureFull {
			return nil
		}
	case ActionExtension:
		return nil
	}
	if days, ok := self.rules.DeadlineDays[action.Type]; ok {
		return &days
	}
	return nil
}

func (self *BranchState) firstAction() *Action {
	if len(self.Actions) == 0 {
		return nil
	}
	return self.Actions[0]
}
