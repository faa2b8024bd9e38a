package domain

import (
	"fmt"
	"net/mail"
	"time"
)

type MessageDirection int16

const (
	MessageInbound  MessageDirection = 1
	MessageOutbound MessageDirection = 2
)

func (self MessageDirection) String() string {
	switch self {
	case MessageInbound:
		return "inbound"
	case MessageOutbound:
		return "outbound"
	default:
		return fmt.Sprintf("MessageDirection(%d)", int16(self))
	}
}

// Message is one email, inbound or outbound. The store knows nothing of
// inforequests; the linkage lives in InforequestEmail.
type Message struct {
	ID        int64            `db:"id"`
	Direction MessageDirection `db:"direction"`

	// TransportID is the transport-level unique message id. Ingress is
	// idempotent on it; empty for locally composed outbound messages until
	// a Message-ID is minted.
	TransportID string `db:"transport_id"`

	// Processed is when the message was delivered (outbound) or handed to
	// correlation (inbound); nil while still queued.
	Processed *time.Time `db:"processed"`

	FromName string `db:"from_name"`
	FromMail string `db:"from_mail"`

	Subject string `db:"subject"`
	Text    string `db:"text"`
	HTML    string `db:"html"`

	// Headers is an opaque map; the engine only ever sets Reply-To,
	// Message-ID and References on outbound mail.
	Headers map[string]string `db:"headers"`

	CreatedAt time.Time `db:"created_at"`
}

// FromFull formats the sender as a single address header value.
func (self *Message) FromFull() string {
	addr := mail.Address{Name: self.FromName, Address: self.FromMail}
	return addr.String()
}

type RecipientType int16

const (
	RecipientTo  RecipientType = 1
	RecipientCc  RecipientType = 2
	RecipientBcc RecipientType = 3
)

func (self RecipientType) String() string {
	switch self {
	case RecipientTo:
		return "to"
	case RecipientCc:
		return "cc"
	case RecipientBcc:
		return "bcc"
	default:
		return fmt.Sprintf("RecipientType(%d)", int16(self))
	}
}

// RecipientStatus is per-recipient delivery state reported by the transport.
type RecipientStatus int16

const (
	RecipientStatusUndefined RecipientStatus = 1
	RecipientStatusQueued    RecipientStatus = 2
	RecipientStatusRejected  RecipientStatus = 3
	RecipientStatusInvalid   RecipientStatus = 4
	RecipientStatusSent      RecipientStatus = 5
	RecipientStatusDelivered RecipientStatus = 6
	RecipientStatusInbound   RecipientStatus = 8
)

func (self RecipientStatus) String() string {
	switch self {
	case RecipientStatusUndefined:
		return "undefined"
	case RecipientStatusQueued:
		return "queued"
	case RecipientStatusRejected:
		return "rejected"
	case RecipientStatusInvalid:
		return "invalid"
	case RecipientStatusSent:
		return "sent"
	case RecipientStatusDelivered:
		return "delivered"
	case RecipientStatusInbound:
		return "inbound"
	default:
		return fmt.Sprintf("RecipientStatus(%d)", int16(self))
	}
}

type Recipient struct {
	ID        int64           `db:"id"`
	MessageID int64           `db:"message_id"`
	Name      string          `db:"name"`
	Mail      string          `db:"mail"`
	Type      RecipientType   `db:"type"`
	Status    RecipientStatus `db:"status"`

	// RemoteID is the transport's per-recipient delivery id, if it reports
	// one.
	RemoteID string `db:"remote_id"`
}

func (self *Recipient) Full() string {
	addr := mail.Address{Name: self.Name, Address: self.Mail}
	return addr.String()
}

// RawMessage is an inbound email as handed over by the mail collaborator.
type RawMessage struct {
	TransportID string
	FromName    string
	FromMail    string
	To          []string
	Cc          []string
	Subject     string
	Text        string
	HTML        string
	Headers     map[string]string
}
