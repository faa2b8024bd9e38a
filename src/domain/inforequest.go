package domain

import (
	"fmt"
	"time"
)

// Inforequest is one citizen's freedom-of-information request, possibly
// fanned out across several obligees. Applicant contact is frozen at
// submission; the unique return address is minted once and never changes.
type Inforequest struct {
	ID          int64 `db:"id" json:"id"`
	ApplicantID int64 `db:"applicant_id" json:"applicant_id"`

	ApplicantName   string `db:"applicant_name" json:"applicant_name"`
	ApplicantStreet string `db:"applicant_street" json:"applicant_street"`
	ApplicantCity   string `db:"applicant_city" json:"applicant_city"`
	ApplicantZip    string `db:"applicant_zip" json:"applicant_zip"`
	// ApplicantEmail is where notifications and reminders about this
	// inforequest go. Frozen like the postal fields.
	ApplicantEmail string `db:"applicant_email" json:"applicant_email"`

	// UniqueEmail is the globally unique per-request return address used to
	// correlate inbound messages. The local part is an opaque token; never
	// parse it.
	UniqueEmail string `db:"unique_email" json:"unique_email"`

	Subject string `db:"subject" json:"subject"`
	Content string `db:"content" json:"content"`

	SubmissionDate time.Time `db:"submission_date" json:"submission_date"`
	Closed         bool      `db:"closed" json:"closed"`

	LastUndecidedEmailReminder *time.Time `db:"last_undecided_email_reminder" json:"-"`
}

// LinkType classifies the relation between a message and an inforequest.
type LinkType int16

const (
	// Outbound links.
	LinkOutboundApplicant LinkType = 1 // carries an applicant action to the obligee
	LinkOutboundObligee   LinkType = 6 // notification to the applicant about obligee activity

	// Inbound links.
	LinkInboundObligee   LinkType = 2 // decided as an obligee action
	LinkInboundUndecided LinkType = 3 // awaiting a human decision
	LinkInboundUnrelated LinkType = 4
	LinkInboundUnknown   LinkType = 5
)

func (self LinkType) String() string {
	switch self {
	case LinkOutboundApplicant:
		return "outbound-applicant"
	case LinkOutboundObligee:
		return "outbound-obligee"
	case LinkInboundObligee:
		return "inbound-obligee"
	case LinkInboundUndecided:
		return "inbound-undecided"
	case LinkInboundUnrelated:
		return "inbound-unrelated"
	case LinkInboundUnknown:
		return "inbound-unknown"
	default:
		return fmt.Sprintf("LinkType(%d)", int16(self))
	}
}

func (self LinkType) IsInbound() bool {
	switch self {
	case LinkInboundObligee, LinkInboundUndecided, LinkInboundUnrelated, LinkInboundUnknown:
		return true
	}
	return false
}

// InforequestEmail links a message to an inforequest. At most one inbound
// link may exist per message.
type InforequestEmail struct {
	ID            int64    `db:"id" json:"id"`
	InforequestID int64    `db:"inforequest_id" json:"inforequest_id"`
	EmailID       int64    `db:"email_id" json:"email_id"`
	Type          LinkType `db:"type" json:"type"`
}

// InforequestDraft is the applicant's scratch inforequest, freely mutable
// and deletable; materialized into permanent entities on submit.
type InforequestDraft struct {
	ID          int64  `db:"id" json:"id"`
	ApplicantID int64  `db:"applicant_id" json:"applicant_id"`
	ObligeeID   *int64 `db:"obligee_id" json:"obligee_id,omitempty"`
	Subject     string `db:"subject" json:"subject"`
	Content     string `db:"content" json:"content"`
}

// ActionDraft is a scratch action owned by the applicant.
type ActionDraft struct {
	ID            int64      `db:"id" json:"id"`
	InforequestID int64      `db:"inforequest_id" json:"inforequest_id"`
	BranchID      *int64     `db:"branch_id" json:"branch_id,omitempty"`
	Type          ActionType `db:"type" json:"type"`
	Subject       string     `db:"subject" json:"subject"`
	Content       string     `db:"content" json:"content"`
	EffectiveDate *time.Time `db:"effective_date" json:"effective_date,omitempty"`
}
