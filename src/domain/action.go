package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ActionType enumerates every event that can appear in a branch. The numeric
// codes are the persisted representation and must not be reassigned.
type ActionType int16

const (
	// Applicant actions.
	ActionRequest               ActionType = 1
	ActionClarificationResponse ActionType = 12
	ActionAppeal                ActionType = 13

	// Obligee actions.
	ActionConfirmation         ActionType = 2
	ActionExtension            ActionType = 3
	ActionAdvancement          ActionType = 4
	ActionClarificationRequest ActionType = 5
	ActionDisclosure           ActionType = 6
	ActionRefusal              ActionType = 7
	ActionAffirmation          ActionType = 8
	ActionReversion            ActionType = 9
	ActionRemandment           ActionType = 10

	// Implicit actions appended by the engine itself.
	ActionAdvancedRequest  ActionType = 11
	ActionExpiration       ActionType = 14
	ActionAppealExpiration ActionType = 15

	// ActionApplicantClose records the applicant explicitly closing the
	// inforequest; appended to every branch still open at that moment.
	ActionApplicantClose ActionType = 16
)

var actionTypeNames = map[ActionType]string{
	ActionRequest:               "REQUEST",
	ActionClarificationResponse: "CLARIFICATION_RESPONSE",
	ActionAppeal:                "APPEAL",
	ActionConfirmation:          "CONFIRMATION",
	ActionExtension:             "EXTENSION",
	ActionAdvancement:           "ADVANCEMENT",
	ActionClarificationRequest:  "CLARIFICATION_REQUEST",
	ActionDisclosure:            "DISCLOSURE",
	ActionRefusal:               "REFUSAL",
	ActionAffirmation:           "AFFIRMATION",
	ActionReversion:             "REVERSION",
	ActionRemandment:            "REMANDMENT",
	ActionAdvancedRequest:       "ADVANCED_REQUEST",
	ActionExpiration:            "EXPIRATION",
	ActionAppealExpiration:      "APPEAL_EXPIRATION",
	ActionApplicantClose:        "APPLICANT_ACTION",
}

func (self ActionType) String() string {
	if name, ok := actionTypeNames[self]; ok {
		return name
	}
	return fmt.Sprintf("ActionType(%d)", int16(self))
}

func (self *ActionType) FromString(str string) error {
	for typ, name := range actionTypeNames {
		if name == str {
			*self = typ
			return nil
		}
	}
	return fmt.Errorf("unknown action type %q", str)
}

func (self ActionType) MarshalJSON() ([]byte, error) {
	return json.Marshal(self.String())
}

func (self *ActionType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	return self.FromString(str)
}

// IsApplicant reports whether the action originates with the applicant.
func (self ActionType) IsApplicant() bool {
	switch self {
	case ActionRequest, ActionClarificationResponse, ActionAppeal, ActionApplicantClose:
		return true
	}
	return false
}

// IsObligee reports whether the action originates with the obligee.
func (self ActionType) IsObligee() bool {
	switch self {
	case ActionConfirmation, ActionExtension, ActionAdvancement, ActionClarificationRequest,
		ActionDisclosure, ActionRefusal, ActionAffirmation, ActionReversion, ActionRemandment:
		return true
	}
	return false
}

// IsImplicit reports whether the action is appended by the engine itself
// rather than decided by a human.
func (self ActionType) IsImplicit() bool {
	switch self {
	case ActionAdvancedRequest, ActionExpiration, ActionAppealExpiration:
		return true
	}
	return false
}

// ContentType tags the action body encoding. HTML bodies are stored already
// sanitized; sanitization is the caller's duty.
type ContentType int16

const (
	ContentTypePlain ContentType = 1
	ContentTypeHTML  ContentType = 2
)

func (self ContentType) String() string {
	switch self {
	case ContentTypePlain:
		return "plain"
	case ContentTypeHTML:
		return "html"
	default:
		return fmt.Sprintf("ContentType(%d)", int16(self))
	}
}

// DisclosureLevel states how much of the requested information an obligee
// action disclosed. Only a full disclosure terminates the branch.
type DisclosureLevel int16

const (
	DisclosureNone    DisclosureLevel = 1
	DisclosurePartial DisclosureLevel = 2
	DisclosureFull    DisclosureLevel = 3
)

func (self DisclosureLevel) String() string {
	switch self {
	case DisclosureNone:
		return "none"
	case DisclosurePartial:
		return "partial"
	case DisclosureFull:
		return "full"
	default:
		return fmt.Sprintf("DisclosureLevel(%d)", int16(self))
	}
}

// RefusalReason is one legal ground an obligee may cite for a refusal or an
// affirmation.
type RefusalReason string

const (
	ReasonDoesNotHave    RefusalReason = "DOES_NOT_HAVE"
	ReasonDoesNotProvide RefusalReason = "DOES_NOT_PROVIDE"
	ReasonDoesNotCreate  RefusalReason = "DOES_NOT_CREATE"
	ReasonCopyright      RefusalReason = "COPYRIGHT"
	ReasonBusinessSecret RefusalReason = "BUSINESS_SECRET"
	ReasonPersonal       RefusalReason = "PERSONAL"
	ReasonConfidential   RefusalReason = "CONFIDENTIAL"
	ReasonOtherReason    RefusalReason = "OTHER_REASON"

	// ReasonNoReason records that the obligee refused without giving any
	// ground. Kept explicit so a refusal's reason set is never empty.
	ReasonNoReason RefusalReason = "NO_REASON"
)

var knownReasons = map[RefusalReason]struct{}{
	ReasonDoesNotHave:    {},
	ReasonDoesNotProvide: {},
	ReasonDoesNotCreate:  {},
	ReasonCopyright:      {},
	ReasonBusinessSecret: {},
	ReasonPersonal:       {},
	ReasonConfidential:   {},
	ReasonOtherReason:    {},
	ReasonNoReason:       {},
}

// ReasonSet is a set of refusal reasons. The canonical persisted form is the
// sorted comma-joined member list so equality is well defined. A nil ReasonSet
// means "not a refusal"; an initialized but empty one never persists - use
// ReasonNoReason instead.
type ReasonSet map[RefusalReason]struct{}

func NewReasonSet(reasons ...RefusalReason) ReasonSet {
	set := ReasonSet{}
	for _, reason := range reasons {
		set[reason] = struct{}{}
	}
	if len(set) == 0 {
		set[ReasonNoReason] = struct{}{}
	}
	return set
}

func ParseReasonSet(canonical string) (ReasonSet, error) {
	set := ReasonSet{}
	for _, part := range strings.Split(canonical, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		reason := RefusalReason(part)
		if _, known := knownReasons[reason]; !known {
			return nil, fmt.Errorf("unknown refusal reason %q", part)
		}
		set[reason] = struct{}{}
	}
	if len(set) == 0 {
		set[ReasonNoReason] = struct{}{}
	}
	return set, nil
}

func (self ReasonSet) Contains(reason RefusalReason) bool {
	_, ok := self[reason]
	return ok
}

// Canonical returns the stable persisted form: members sorted and joined by
// commas.
func (self ReasonSet) Canonical() string {
	members := make([]string, 0, len(self))
	for reason := range self {
		members = append(members, string(reason))
	}
	sort.Strings(members)
	return strings.Join(members, ",")
}

func (self ReasonSet) MarshalJSON() ([]byte, error) {
	members := make([]string, 0, len(self))
	for reason := range self {
		members = append(members, string(reason))
	}
	sort.Strings(members)
	return json.Marshal(members)
}

func (self *ReasonSet) UnmarshalJSON(data []byte) error {
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	set := ReasonSet{}
	for _, member := range members {
		reason := RefusalReason(member)
		if _, known := knownReasons[reason]; !known {
			return fmt.Errorf("unknown refusal reason %q", member)
		}
		set[reason] = struct{}{}
	}
	*self = set
	return nil
}

func (self ReasonSet) Value() (driver.Value, error) {
	if self == nil {
		return nil, nil
	}
	return self.Canonical(), nil
}

func (self *ReasonSet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*self = nil
		return nil
	case string:
		set, err := ParseReasonSet(v)
		if err != nil {
			return err
		}
		*self = set
		return nil
	case []byte:
		return self.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ReasonSet", src)
	}
}

// Action is one atomic event in a branch. Actions are append-only;
// corrections are modeled by appending a new action, never by editing.
type Action struct {
	ID       int64      `db:"id" json:"id"`
	BranchID int64      `db:"branch_id" json:"branch_id"`
	Type     ActionType `db:"type" json:"type"`

	// EmailID links the action to the message it was sent or received by;
	// nil for actions recorded from paper mail and for implicit actions.
	EmailID *int64 `db:"email_id" json:"email_id,omitempty"`

	Subject     string      `db:"subject" json:"subject"`
	Content     string      `db:"content" json:"content"`
	ContentType ContentType `db:"content_type" json:"content_type"`

	// EffectiveDate is the civil date the action was sent or received.
	EffectiveDate time.Time `db:"effective_date" json:"effective_date"`

	// FileNumber is assigned by the obligee; empty for most applicant and
	// all implicit actions.
	FileNumber string `db:"file_number" json:"file_number,omitempty"`

	// DeadlineDays is the working-day span this action started, if any.
	// Recorded at append time from the configured table (or the remaining
	// span for clarification responses) so later config changes do not
	// rewrite history.
	DeadlineDays *int `db:"deadline_days" json:"deadline_days,omitempty"`

	// ExtensionDays is set only on EXTENSION actions.
	ExtensionDays *int `db:"extension_days" json:"extension_days,omitempty"`

	// RefusalReasons is non-nil only for REFUSAL and AFFIRMATION.
	RefusalReasons ReasonSet `db:"refusal_reasons" json:"refusal_reasons,omitempty"`

	// DisclosureLevel is mandatory for DISCLOSURE and optional for
	// ADVANCEMENT, REVERSION and REMANDMENT; nil otherwise.
	DisclosureLevel *DisclosureLevel `db:"disclosure_level" json:"disclosure_level,omitempty"`

	LastDeadlineReminder *time.Time `db:"last_deadline_reminder" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Validate checks the payload fields against the action type. It does not
// know about branch state; legality against the state machine is checked by
// BranchState.CanAppend.
func (self *Action) Validate() error {
	switch self.Type {
	case ActionRefusal, ActionAffirmation:
		if self.RefusalReasons == nil {
			return MissingRequiredField(self.Type, "refusal_reasons")
		}
	default:
		if self.RefusalReasons != nil {
			return ForbiddenField(self.Type, "refusal_reasons")
		}
	}

	if self.Type == ActionExtension {
		if self.ExtensionDays == nil {
			return MissingRequiredField(self.Type, "extension_days")
		}
		if *self.ExtensionDays <= 0 {
			return MissingRequiredField(self.Type, "positive extension_days")
		}
	} else if self.ExtensionDays != nil {
		return ForbiddenField(self.Type, "extension_days")
	}

	switch self.Type {
	case ActionDisclosure:
		if self.DisclosureLevel == nil {
			return MissingRequiredField(self.Type, "disclosure_level")
		}
	case ActionAdvancement, ActionReversion, ActionRemandment:
		// Optional there.
	default:
		if self.DisclosureLevel != nil {
			return ForbiddenField(self.Type, "disclosure_level")
		}
	}

	if self.FileNumber != "" && !self.Type.IsObligee() {
		return ForbiddenField(self.Type, "file_number")
	}

	if self.EffectiveDate.IsZero() {
		return MissingRequiredField(self.Type, "effective_date")
	}

	return nil
}
